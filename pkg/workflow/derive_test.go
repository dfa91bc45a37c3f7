package workflow

import (
	"testing"

	"github.com/zen-systems/streamforge/pkg/catalog"
	"github.com/zen-systems/streamforge/pkg/stream"
)

func TestChannelDerivation(t *testing.T) {
	tests := []struct {
		name       string
		state      ChannelState
		hasConfig  bool
		allQueries bool
		complete   bool
		inProgress bool
	}{
		{
			name:  "untouched channel",
			state: ChannelState{},
		},
		{
			name: "sources selected, no queries",
			state: ChannelState{
				SelectedSources: []string{"pubmed"},
				SourceConfigs:   map[string]*SourceQueryConfig{"pubmed": {SourceID: "pubmed"}},
			},
			hasConfig:  true,
			inProgress: true,
		},
		{
			name: "all queries but no filter",
			state: ChannelState{
				SelectedSources: []string{"pubmed"},
				SourceConfigs: map[string]*SourceQueryConfig{
					"pubmed": {SourceID: "pubmed", QueryExpression: "q"},
				},
			},
			hasConfig:  true,
			allQueries: true,
			inProgress: true,
		},
		{
			name: "one query missing",
			state: ChannelState{
				SelectedSources: []string{"pubmed", "arxiv"},
				SourceConfigs: map[string]*SourceQueryConfig{
					"pubmed": {SourceID: "pubmed", QueryExpression: "q"},
					"arxiv":  {SourceID: "arxiv"},
				},
				FilterCriteria: "relevant",
			},
			hasConfig:  true,
			inProgress: true,
		},
		{
			name: "fully configured",
			state: ChannelState{
				SelectedSources: []string{"pubmed"},
				SourceConfigs: map[string]*SourceQueryConfig{
					"pubmed": {SourceID: "pubmed", QueryExpression: "q"},
				},
				FilterCriteria: "relevant",
			},
			hasConfig:  true,
			allQueries: true,
			complete:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := tt.state
			if got := cs.HasConfig(); got != tt.hasConfig {
				t.Errorf("HasConfig() = %v, want %v", got, tt.hasConfig)
			}
			if got := cs.HasAllQueries(); got != tt.allQueries {
				t.Errorf("HasAllQueries() = %v, want %v", got, tt.allQueries)
			}
			if got := cs.IsChannelComplete(); got != tt.complete {
				t.Errorf("IsChannelComplete() = %v, want %v", got, tt.complete)
			}
			if got := cs.IsChannelInProgress(); got != tt.inProgress {
				t.Errorf("IsChannelInProgress() = %v, want %v", got, tt.inProgress)
			}
		})
	}
}

func TestOverallProgressBounds(t *testing.T) {
	empty := NewState(stream.Stream{ID: "s", Name: "empty"}, nil, nil)
	if got := OverallProgress(empty); got != 0 {
		t.Errorf("progress with zero channels = %d, want 0", got)
	}

	// Walk a full two-channel configuration and assert the bound at
	// every step.
	s := newTestState(t)
	check := func(s *State) {
		t.Helper()
		if got := OverallProgress(s); got < 0 || got > 100 {
			t.Fatalf("progress %d out of [0,100]", got)
		}
	}

	check(s)
	s = reduce(t, s, SelectSources{ChannelID: "trials", SourceIDs: []string{"pubmed", "arxiv"}})
	check(s)
	for _, src := range []string{"pubmed", "arxiv"} {
		s = reduce(t, s, RecordGeneratedQuery{ChannelID: "trials", SourceID: src, Expression: "q"})
		s = reduce(t, s, RecordTestResult{ChannelID: "trials", SourceID: src, Result: QueryTestResult{Success: true}})
		s = reduce(t, s, ConfirmQuery{ChannelID: "trials", SourceID: src})
		check(s)
	}
	s = reduce(t, s, DefineFilter{ChannelID: "trials", Criteria: "relevant"})
	check(s)
	s = reduce(t, s, RunChannelTest{ChannelID: "trials", Results: ChannelTestResults{RunID: "r"}})
	s = reduce(t, s, CompleteChannel{ChannelID: "trials"})
	s = reduce(t, s, NextChannel{})
	check(s)
	s = completeChannel(t, s, "biomarkers", "arxiv")
	s = reduce(t, s, NextChannel{})
	if got := OverallProgress(s); got != 100 {
		t.Errorf("progress after full completion = %d, want 100", got)
	}
}

func TestOverallProgressFraction(t *testing.T) {
	// One finished channel of two, plus the second channel with one of
	// two sources confirmed and no filter: 100*(1 + 1/3)/2 = 67.
	s := completedFirstChannel(t)
	s = reduce(t, s, NextChannel{})
	s = reduce(t, s, SelectSources{ChannelID: "biomarkers", SourceIDs: []string{"arxiv", "pubmed"}})
	s = reduce(t, s, RecordGeneratedQuery{ChannelID: "biomarkers", SourceID: "arxiv", Expression: "q"})
	s = reduce(t, s, RecordTestResult{ChannelID: "biomarkers", SourceID: "arxiv", Result: QueryTestResult{Success: true}})
	s = reduce(t, s, ConfirmQuery{ChannelID: "biomarkers", SourceID: "arxiv"})

	if got := OverallProgress(s); got != 67 {
		t.Errorf("progress = %d, want 67", got)
	}
}

func TestOverallProgressHalfway(t *testing.T) {
	// Scenario: one of two channels complete, second untouched.
	s := completedFirstChannel(t)
	s = reduce(t, s, NextChannel{})

	if got := OverallProgress(s); got != 50 {
		t.Errorf("progress = %d, want 50", got)
	}
	if s.IsComplete {
		t.Error("stream must not be complete with one channel remaining")
	}
}

func TestOverallProgressIgnoresEmptySelection(t *testing.T) {
	// The cursor channel has a filter but no sources; its fractional
	// score is defined to be zero.
	s := NewState(stream.Stream{
		ID: "s", Name: "s",
		Channels: []stream.Channel{{ID: "only", Name: "Only"}},
	}, []catalog.Source{{ID: "pubmed", Name: "PubMed"}}, nil)
	s.ChannelStates["only"].FilterCriteria = "relevant"

	if got := OverallProgress(s); got != 0 {
		t.Errorf("progress = %d, want 0 for empty selection", got)
	}
}
