// Package adapter provides the LLM provider clients behind query
// generation and semantic filter testing. Providers sit behind one
// interface so the generator and filter tester never know which model
// family serves them.
package adapter

import "context"

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Complete sends a prompt to the model and returns the reply text.
	Complete(ctx context.Context, model string, prompt string) (string, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}
