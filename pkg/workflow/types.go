// Package workflow implements the channel configuration state machine:
// the wizard position (channel x source x step), the legal transitions
// between steps, and the derived completion and progress views.
//
// The machine is a pure reducer. It performs no I/O; asynchronous work
// (query generation, query testing, filter testing, persistence) happens
// in the caller, and only the results are dispatched back in as events.
package workflow

import (
	"time"

	"github.com/zen-systems/streamforge/pkg/catalog"
	"github.com/zen-systems/streamforge/pkg/stream"
)

// Step is the phase a channel's configuration is in.
type Step string

const (
	StepSourceSelection  Step = "source_selection"
	StepQueryDefinition  Step = "query_definition"
	StepFilterDefinition Step = "semantic_filter_definition"
	StepChannelTesting   Step = "channel_testing"
	StepChannelComplete  Step = "channel_complete"
)

// Article is a retrieved content item, sampled from a source during a
// query or channel test.
type Article struct {
	Title       string `json:"title"`
	URL         string `json:"url,omitempty"`
	Abstract    string `json:"abstract,omitempty"`
	Source      string `json:"source,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// QueryTestResult records the outcome of testing a query expression
// against a source. A failed test is still a completed test.
type QueryTestResult struct {
	Success        bool      `json:"success"`
	ArticleCount   int       `json:"article_count"`
	SampleArticles []Article `json:"sample_articles,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// SourceQueryConfig is the per (channel, source) query lifecycle record.
//
// Invariants: IsTested resets and TestResult clears whenever the
// expression changes after a prior test, and IsConfirmed can only become
// true while IsTested is true. Confirmation does not survive an edit.
type SourceQueryConfig struct {
	SourceID        string           `json:"source_id"`
	SourceName      string           `json:"source_name"`
	QueryExpression string           `json:"query_expression"`
	QueryReasoning  string           `json:"query_reasoning,omitempty"`
	IsTested        bool             `json:"is_tested"`
	TestResult      *QueryTestResult `json:"test_result,omitempty"`
	IsConfirmed     bool             `json:"is_confirmed"`
}

// ChannelState holds one channel's configuration progress: the ordered
// selected sources, their query configs, the persisted filter criteria
// and the intra-channel cursor.
type ChannelState struct {
	Channel         stream.Channel                `json:"channel"`
	SelectedSources []string                      `json:"selected_sources"`
	SourceConfigs   map[string]*SourceQueryConfig `json:"source_configs"`
	FilterCriteria  string                        `json:"filter_criteria"`

	// CurrentSourceIndex stays within [0, len(SelectedSources)) during
	// the per-source phase; clamped to the last index afterwards.
	CurrentSourceIndex int  `json:"current_source_index"`
	CurrentStep        Step `json:"current_step"`
	IsComplete         bool `json:"is_complete"`
}

// DateRange is an optional publication window for a test run. Only
// sources that support date filtering honor it.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SourceRetrieval is the per-source retrieval record inside a channel
// test run.
type SourceRetrieval struct {
	SourceID        string    `json:"source_id"`
	SourceName      string    `json:"source_name"`
	TotalAvailable  int       `json:"total_available"`
	CapRequested    int       `json:"cap_requested"`
	ActualRetrieved int       `json:"actual_retrieved"`
	SampleArticles  []Article `json:"sample_articles,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// FilterOutcome is the relevance verdict for a single retrieved article.
type FilterOutcome struct {
	Article    Article `json:"article"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Passed     bool    `json:"passed"`
}

// ChannelTestResults is the ephemeral snapshot produced by the
// channel_testing step. It is replaced wholesale on retest and is never
// written to the persistence interface.
type ChannelTestResults struct {
	RunID         string            `json:"run_id"`
	Retrievals    []SourceRetrieval `json:"retrievals"`
	FilterResults []FilterOutcome   `json:"filter_results"`
	Threshold     float64           `json:"threshold"`
	DateRange     *DateRange        `json:"date_range,omitempty"`
	TestedAt      time.Time         `json:"tested_at"`
}

// State is the session-scoped top level: the stream under configuration,
// the catalog snapshot, every channel's state and the cross-channel
// cursor. Mutated only through Reduce.
type State struct {
	StreamID   string           `json:"stream_id"`
	StreamName string           `json:"stream_name"`
	Mission    string           `json:"mission"`
	Channels   []stream.Channel `json:"channels"`
	Sources    []catalog.Source `json:"sources"`

	// ChannelStates is keyed by channel id. Channel name edits must not
	// orphan configuration.
	ChannelStates map[string]*ChannelState `json:"channel_states"`

	// TestResults is ephemeral, keyed by channel id.
	TestResults map[string]*ChannelTestResults `json:"test_results,omitempty"`

	CurrentChannelIndex int    `json:"current_channel_index"`
	IsSaving            bool   `json:"is_saving"`
	Error               string `json:"error,omitempty"`
	IsComplete          bool   `json:"is_complete"`
}

// NewState builds the top-level state at wizard mount. Previously saved
// channel configs, if any, are reconciled in; channels without one start
// at source_selection.
func NewState(s stream.Stream, sources []catalog.Source, saved map[string]*ChannelState) *State {
	states := make(map[string]*ChannelState, len(s.Channels))
	for _, ch := range s.Channels {
		if prior, ok := saved[ch.ID]; ok {
			restored := prior.clone()
			restored.Channel = ch
			states[ch.ID] = restored
			continue
		}
		states[ch.ID] = &ChannelState{
			Channel:       ch,
			SourceConfigs: map[string]*SourceQueryConfig{},
			CurrentStep:   StepSourceSelection,
		}
	}

	return &State{
		StreamID:      s.ID,
		StreamName:    s.Name,
		Mission:       s.Mission,
		Channels:      s.Channels,
		Sources:       sources,
		ChannelStates: states,
		TestResults:   map[string]*ChannelTestResults{},
	}
}

// CurrentChannel returns the channel under the cross-channel cursor,
// or false once the cursor has moved past the last channel.
func (s *State) CurrentChannel() (stream.Channel, bool) {
	if s.CurrentChannelIndex < 0 || s.CurrentChannelIndex >= len(s.Channels) {
		return stream.Channel{}, false
	}
	return s.Channels[s.CurrentChannelIndex], true
}

// ChannelState returns the configuration state for a channel id.
func (s *State) ChannelState(channelID string) (*ChannelState, bool) {
	cs, ok := s.ChannelStates[channelID]
	return cs, ok
}

// CurrentSource returns the source id under a channel's cursor.
func (cs *ChannelState) CurrentSource() (string, bool) {
	if cs.CurrentSourceIndex < 0 || cs.CurrentSourceIndex >= len(cs.SelectedSources) {
		return "", false
	}
	return cs.SelectedSources[cs.CurrentSourceIndex], true
}

// clone returns a deep copy of the channel state. Source configs are
// copied by value so a restored session cannot alias saved data.
func (cs *ChannelState) clone() *ChannelState {
	next := *cs
	next.SelectedSources = append([]string(nil), cs.SelectedSources...)
	next.SourceConfigs = make(map[string]*SourceQueryConfig, len(cs.SourceConfigs))
	for id, cfg := range cs.SourceConfigs {
		copied := *cfg
		next.SourceConfigs[id] = &copied
	}
	return &next
}
