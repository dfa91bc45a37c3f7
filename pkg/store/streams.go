package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zen-systems/streamforge/pkg/stream"
)

// Stream definitions come from the stream creation flow; the store only
// mirrors them locally so the CLI can mount a wizard session without
// that service on hand.

// SaveStream writes a stream definition document.
func (s *Store) SaveStream(st stream.Stream) error {
	if err := st.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stream: %w", err)
	}
	path := filepath.Join(s.BasePath, st.ID+".stream.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write stream: %w", err)
	}
	return nil
}

// LoadStream reads a stream definition document.
func (s *Store) LoadStream(streamID string) (stream.Stream, error) {
	if strings.TrimSpace(streamID) == "" {
		return stream.Stream{}, fmt.Errorf("stream id is required")
	}
	data, err := os.ReadFile(filepath.Join(s.BasePath, streamID+".stream.json"))
	if err != nil {
		return stream.Stream{}, fmt.Errorf("failed to read stream %q: %w", streamID, err)
	}
	var st stream.Stream
	if err := json.Unmarshal(data, &st); err != nil {
		return stream.Stream{}, fmt.Errorf("failed to parse stream %q: %w", streamID, err)
	}
	if err := st.Validate(); err != nil {
		return stream.Stream{}, fmt.Errorf("stream %q is invalid: %w", streamID, err)
	}
	return st, nil
}
