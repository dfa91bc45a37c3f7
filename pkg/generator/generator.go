// Package generator builds source-specific query expressions for a
// channel by prompting an LLM adapter. The generator performs the
// network call; the caller dispatches the result into the workflow
// state machine.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/zen-systems/streamforge/pkg/adapter"
	"github.com/zen-systems/streamforge/pkg/catalog"
	"github.com/zen-systems/streamforge/pkg/stream"
)

// GeneratedQuery is the query generation result contract.
type GeneratedQuery struct {
	Expression string `json:"query_expression"`
	Reasoning  string `json:"reasoning"`
}

// Generator produces query expressions via an LLM adapter.
type Generator struct {
	adapter adapter.Adapter
	model   string
	logger  func(format string, args ...any)
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets a custom logger for observable output.
func WithLogger(logger func(format string, args ...any)) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New creates a generator over the given adapter and model.
func New(a adapter.Adapter, model string, opts ...Option) (*Generator, error) {
	if a == nil {
		return nil, fmt.Errorf("adapter is required")
	}
	if model == "" {
		models := a.Models()
		if len(models) == 0 {
			return nil, fmt.Errorf("model not specified and adapter %s lists none", a.Name())
		}
		model = models[0]
	}

	g := &Generator{
		adapter: a,
		model:   model,
		logger:  log.Printf,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate produces a query expression and its reasoning for one
// (channel, source) pair. Failures are transient; the user retries.
func (g *Generator) Generate(ctx context.Context, ch stream.Channel, src catalog.Source) (GeneratedQuery, error) {
	prompt := buildPrompt(ch, src)

	g.logger("[generator] generating %s query for channel %q", src.ID, ch.Name)
	reply, err := g.adapter.Complete(ctx, g.model, prompt)
	if err != nil {
		return GeneratedQuery{}, fmt.Errorf("query generation for %s/%s failed: %w", ch.ID, src.ID, err)
	}

	gq, err := parseGeneratedQuery(reply)
	if err != nil {
		return GeneratedQuery{}, fmt.Errorf("query generation for %s/%s returned malformed output: %w", ch.ID, src.ID, err)
	}
	return gq, nil
}

func buildPrompt(ch stream.Channel, src catalog.Source) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are configuring a literature monitoring channel named %q.\n", ch.Name)
	if ch.Focus != "" {
		fmt.Fprintf(&sb, "Channel focus: %s\n", ch.Focus)
	}
	if kw := ch.SortedKeywords(); len(kw) > 0 {
		fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(kw, ", "))
	}
	fmt.Fprintf(&sb, `
Write a boolean search query expression suited to the %s search syntax
that retrieves articles relevant to this channel.

Respond with JSON only, no prose:
{
  "query_expression": "the search query",
  "reasoning": "one or two sentences on why this query fits"
}`, src.Name)
	return sb.String()
}

// parseGeneratedQuery extracts the query object from a model reply,
// tolerating markdown code fences and surrounding prose.
func parseGeneratedQuery(content string) (GeneratedQuery, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var gq GeneratedQuery
	if err := json.Unmarshal([]byte(content), &gq); err != nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start >= 0 && end > start {
			content = content[start : end+1]
			if err := json.Unmarshal([]byte(content), &gq); err != nil {
				return GeneratedQuery{}, fmt.Errorf("failed to parse query JSON: %w", err)
			}
		} else {
			return GeneratedQuery{}, fmt.Errorf("failed to parse query JSON: %w", err)
		}
	}

	if strings.TrimSpace(gq.Expression) == "" {
		return GeneratedQuery{}, fmt.Errorf("model returned an empty query_expression")
	}
	return gq, nil
}
