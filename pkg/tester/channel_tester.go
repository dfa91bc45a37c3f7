package tester

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/zen-systems/streamforge/pkg/catalog"
	"github.com/zen-systems/streamforge/pkg/workflow"
)

// ChannelTester runs the full channel_testing step: retrieval through
// every configured source query, then the semantic filter over the
// pooled sample articles. The output replaces the channel's ephemeral
// results wholesale; retests simply produce a new run.
type ChannelTester struct {
	queries      QueryTester
	filter       *FilterTester
	retrievalCap int
	logger       func(format string, args ...any)
}

// ChannelTesterOption configures a ChannelTester.
type ChannelTesterOption func(*ChannelTester)

// WithChannelLogger sets a custom logger for observable output.
func WithChannelLogger(logger func(format string, args ...any)) ChannelTesterOption {
	return func(t *ChannelTester) {
		t.logger = logger
	}
}

// WithRetrievalCap caps the articles requested per source.
func WithRetrievalCap(n int) ChannelTesterOption {
	return func(t *ChannelTester) {
		t.retrievalCap = n
	}
}

// NewChannelTester creates a channel tester over a query tester and a
// filter tester.
func NewChannelTester(queries QueryTester, filter *FilterTester, opts ...ChannelTesterOption) (*ChannelTester, error) {
	if queries == nil {
		return nil, fmt.Errorf("query tester is required")
	}
	if filter == nil {
		return nil, fmt.Errorf("filter tester is required")
	}

	t := &ChannelTester{
		queries:      queries,
		filter:       filter,
		retrievalCap: 20,
		logger:       log.Printf,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Run tests the channel end to end and returns the results snapshot.
// The channel must have finished its per-source phase; every selected
// source needs a query expression. A source whose retrieval fails is
// recorded with its error and contributes no articles; the run itself
// only fails when the filter pass cannot complete.
func (t *ChannelTester) Run(ctx context.Context, cs *workflow.ChannelState, sources map[string]catalog.Source, dateRange *workflow.DateRange) (workflow.ChannelTestResults, error) {
	if cs == nil {
		return workflow.ChannelTestResults{}, fmt.Errorf("channel state is required")
	}
	if !cs.HasAllQueries() {
		return workflow.ChannelTestResults{}, fmt.Errorf("channel %q has sources without queries", cs.Channel.ID)
	}
	if !cs.HasFilter() {
		return workflow.ChannelTestResults{}, fmt.Errorf("channel %q has no filter criteria", cs.Channel.ID)
	}

	results := workflow.ChannelTestResults{
		RunID:     uuid.NewString(),
		Threshold: t.filter.Threshold(),
		DateRange: dateRange,
		TestedAt:  time.Now().UTC(),
	}

	var pooled []workflow.Article
	for _, sourceID := range cs.SelectedSources {
		cfg := cs.SourceConfigs[sourceID]
		src, ok := sources[sourceID]
		if !ok {
			src = catalog.Source{ID: sourceID, Name: cfg.SourceName}
		}

		t.logger("[tester] retrieving from %s for channel %q", sourceID, cs.Channel.Name)
		retrieval := workflow.SourceRetrieval{
			SourceID:     sourceID,
			SourceName:   cfg.SourceName,
			CapRequested: t.retrievalCap,
		}

		result, err := t.queries.Test(ctx, src, cfg.QueryExpression, TestOptions{
			MaxArticles: t.retrievalCap,
			DateRange:   dateRange,
		})
		switch {
		case err != nil:
			retrieval.Error = err.Error()
		case !result.Success:
			retrieval.Error = result.ErrorMessage
		default:
			retrieval.TotalAvailable = result.ArticleCount
			retrieval.ActualRetrieved = result.ArticleCount
			retrieval.SampleArticles = result.SampleArticles
			pooled = append(pooled, result.SampleArticles...)
		}
		results.Retrievals = append(results.Retrievals, retrieval)
	}

	t.logger("[tester] filtering %d articles for channel %q", len(pooled), cs.Channel.Name)
	outcomes, err := t.filter.TestFilter(ctx, cs.Channel, cs.FilterCriteria, pooled)
	if err != nil {
		return workflow.ChannelTestResults{}, err
	}
	results.FilterResults = outcomes
	if results.FilterResults == nil {
		results.FilterResults = []workflow.FilterOutcome{}
	}

	return results, nil
}
