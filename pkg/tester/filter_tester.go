package tester

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zen-systems/streamforge/pkg/adapter"
	"github.com/zen-systems/streamforge/pkg/stream"
	"github.com/zen-systems/streamforge/pkg/workflow"
)

// FilterTester scores retrieved articles against a channel's semantic
// filter criteria using an LLM adapter. The confidence model is the
// provider's; this package only consumes the score.
type FilterTester struct {
	adapter   adapter.Adapter
	model     string
	threshold float64
}

// NewFilterTester creates a filter tester. The threshold is the cutoff
// above which an article counts as passed.
func NewFilterTester(a adapter.Adapter, model string, threshold float64) (*FilterTester, error) {
	if a == nil {
		return nil, fmt.Errorf("adapter is required")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be within [0, 1], got %v", threshold)
	}
	if model == "" {
		models := a.Models()
		if len(models) == 0 {
			return nil, fmt.Errorf("model not specified and adapter %s lists none", a.Name())
		}
		model = models[0]
	}
	return &FilterTester{adapter: a, model: model, threshold: threshold}, nil
}

// Threshold returns the configured pass cutoff.
func (f *FilterTester) Threshold() float64 {
	return f.threshold
}

// TestFilter scores every article against the criteria. Articles are
// scored one at a time so results apply in order; a failed call aborts
// the whole run rather than producing a partial verdict set.
func (f *FilterTester) TestFilter(ctx context.Context, ch stream.Channel, criteria string, articles []workflow.Article) ([]workflow.FilterOutcome, error) {
	if strings.TrimSpace(criteria) == "" {
		return nil, fmt.Errorf("filter criteria is empty")
	}

	outcomes := make([]workflow.FilterOutcome, 0, len(articles))
	for i, art := range articles {
		verdict, err := f.score(ctx, ch, criteria, art)
		if err != nil {
			return nil, fmt.Errorf("filter test aborted at article %d: %w", i, err)
		}
		outcomes = append(outcomes, workflow.FilterOutcome{
			Article:    art,
			Confidence: verdict.Confidence,
			Reasoning:  verdict.Reasoning,
			Passed:     verdict.Confidence >= f.threshold,
		})
	}
	return outcomes, nil
}

type filterVerdict struct {
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

func (f *FilterTester) score(ctx context.Context, ch stream.Channel, criteria string, art workflow.Article) (filterVerdict, error) {
	prompt := buildFilterPrompt(ch, criteria, art)

	reply, err := f.adapter.Complete(ctx, f.model, prompt)
	if err != nil {
		return filterVerdict{}, err
	}

	verdict, err := parseVerdict(reply)
	if err != nil {
		return filterVerdict{}, err
	}
	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	} else if verdict.Confidence > 1 {
		verdict.Confidence = 1
	}
	return verdict, nil
}

func buildFilterPrompt(ch stream.Channel, criteria string, art workflow.Article) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Channel %q collects articles about: %s\n", ch.Name, ch.Focus)
	fmt.Fprintf(&sb, "Relevance criteria: %s\n\n", criteria)
	fmt.Fprintf(&sb, "Article title: %s\n", art.Title)
	if art.Abstract != "" {
		fmt.Fprintf(&sb, "Abstract: %s\n", art.Abstract)
	}
	sb.WriteString(`
Rate how well the article satisfies the criteria.

Respond with JSON only, no prose:
{
  "confidence": 0.0,
  "reasoning": "one sentence"
}`)
	return sb.String()
}

func parseVerdict(content string) (filterVerdict, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var v filterVerdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start >= 0 && end > start {
			if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
				return filterVerdict{}, fmt.Errorf("failed to parse verdict JSON: %w", err)
			}
			return v, nil
		}
		return filterVerdict{}, fmt.Errorf("failed to parse verdict JSON: %w", err)
	}
	return v, nil
}
