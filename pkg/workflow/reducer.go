package workflow

import (
	"fmt"
	"strings"

	"github.com/zen-systems/streamforge/pkg/catalog"
	"github.com/zen-systems/streamforge/pkg/stream"
)

// Reduce computes the next state for an event. It is pure: the prior
// state is never mutated, and untouched channels and source configs keep
// reference equality in the returned state so change detection stays
// cheap for any view layer. Illegal transitions return the prior state
// unchanged alongside a validation error.
func Reduce(s *State, ev Event) (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is required")
	}

	switch e := ev.(type) {
	case SelectSources:
		return reduceSelectSources(s, e)
	case RecordGeneratedQuery:
		return reduceRecordGeneratedQuery(s, e)
	case UpdateQuery:
		return reduceUpdateQuery(s, e)
	case RecordTestResult:
		return reduceRecordTestResult(s, e)
	case ConfirmQuery:
		return reduceConfirmQuery(s, e)
	case NextSource:
		return reduceNextSource(s, e)
	case DefineFilter:
		return reduceDefineFilter(s, e)
	case RunChannelTest:
		return reduceRunChannelTest(s, e)
	case CompleteChannel:
		return reduceCompleteChannel(s, e)
	case NextChannel:
		return reduceNextChannel(s)
	case UpdateStreamMeta:
		return reduceUpdateStreamMeta(s, e)
	case UpdateChannel:
		return reduceUpdateChannel(s, e)
	case SaveStarted:
		next := s.shallowClone()
		next.IsSaving = true
		next.Error = ""
		return next, nil
	case SaveSucceeded:
		next := s.shallowClone()
		next.IsSaving = false
		next.Error = ""
		return next, nil
	case SaveFailed:
		next := s.shallowClone()
		next.IsSaving = false
		next.Error = e.Err
		return next, nil
	default:
		return s, fmt.Errorf("unknown event type %T", ev)
	}
}

func reduceSelectSources(s *State, e SelectSources) (*State, error) {
	cs, ok := s.ChannelStates[e.ChannelID]
	if !ok {
		return s, fmt.Errorf("unknown channel %q", e.ChannelID)
	}
	if cs.CurrentStep != StepSourceSelection {
		return s, fmt.Errorf("channel %q is in step %s, not %s", e.ChannelID, cs.CurrentStep, StepSourceSelection)
	}
	if len(e.SourceIDs) == 0 {
		return s, fmt.Errorf("channel %q: at least one source is required", e.ChannelID)
	}

	idx := catalog.Index(s.Sources)
	seen := make(map[string]bool, len(e.SourceIDs))
	configs := make(map[string]*SourceQueryConfig, len(e.SourceIDs))
	selected := make([]string, 0, len(e.SourceIDs))
	for _, id := range e.SourceIDs {
		src, ok := idx[id]
		if !ok {
			return s, fmt.Errorf("source %q is not in the catalog", id)
		}
		if seen[id] {
			return s, fmt.Errorf("source %q selected twice", id)
		}
		seen[id] = true
		selected = append(selected, id)
		configs[id] = &SourceQueryConfig{
			SourceID:   id,
			SourceName: src.Name,
		}
	}

	next, ch := s.writeChannel(e.ChannelID)
	ch.SelectedSources = selected
	ch.SourceConfigs = configs
	ch.CurrentSourceIndex = 0
	ch.CurrentStep = StepQueryDefinition
	return next, nil
}

func reduceRecordGeneratedQuery(s *State, e RecordGeneratedQuery) (*State, error) {
	if strings.TrimSpace(e.Expression) == "" {
		return s, fmt.Errorf("generated query expression is empty")
	}
	next, cfg, err := s.writeSourceConfig(e.ChannelID, e.SourceID)
	if err != nil {
		return s, err
	}
	cfg.QueryExpression = e.Expression
	cfg.QueryReasoning = e.Reasoning
	invalidateTest(cfg)
	return next, nil
}

func reduceUpdateQuery(s *State, e UpdateQuery) (*State, error) {
	if strings.TrimSpace(e.Expression) == "" {
		return s, fmt.Errorf("query expression is empty")
	}
	next, cfg, err := s.writeSourceConfig(e.ChannelID, e.SourceID)
	if err != nil {
		return s, err
	}
	cfg.QueryExpression = e.Expression
	invalidateTest(cfg)
	return next, nil
}

func reduceRecordTestResult(s *State, e RecordTestResult) (*State, error) {
	next, cfg, err := s.writeSourceConfig(e.ChannelID, e.SourceID)
	if err != nil {
		return s, err
	}
	result := e.Result
	cfg.IsTested = true
	cfg.TestResult = &result
	return next, nil
}

func reduceConfirmQuery(s *State, e ConfirmQuery) (*State, error) {
	cs, ok := s.ChannelStates[e.ChannelID]
	if !ok {
		return s, fmt.Errorf("unknown channel %q", e.ChannelID)
	}
	if cs.CurrentStep != StepQueryDefinition {
		return s, fmt.Errorf("channel %q is in step %s, not %s", e.ChannelID, cs.CurrentStep, StepQueryDefinition)
	}
	cfg, ok := cs.SourceConfigs[e.SourceID]
	if !ok {
		return s, fmt.Errorf("channel %q has no config for source %q", e.ChannelID, e.SourceID)
	}
	if !cfg.IsTested {
		return s, fmt.Errorf("source %q query is untested and cannot be confirmed", e.SourceID)
	}

	pos := sourceIndex(cs.SelectedSources, e.SourceID)
	if pos < 0 {
		return s, fmt.Errorf("source %q is not among channel %q selected sources", e.SourceID, e.ChannelID)
	}
	for _, id := range cs.SelectedSources[:pos] {
		if prior := cs.SourceConfigs[id]; prior == nil || !prior.IsConfirmed {
			return s, fmt.Errorf("source %q cannot be confirmed before source %q", e.SourceID, id)
		}
	}

	next, ch := s.writeChannel(e.ChannelID)
	confirmed := *ch.SourceConfigs[e.SourceID]
	confirmed.IsConfirmed = true
	ch.SourceConfigs[e.SourceID] = &confirmed

	if pos == len(ch.SelectedSources)-1 {
		ch.CurrentStep = StepFilterDefinition
	} else {
		ch.CurrentSourceIndex = pos + 1
	}
	return next, nil
}

func reduceNextSource(s *State, e NextSource) (*State, error) {
	cs, ok := s.ChannelStates[e.ChannelID]
	if !ok {
		return s, fmt.Errorf("unknown channel %q", e.ChannelID)
	}
	if cs.CurrentStep == StepSourceSelection {
		return s, fmt.Errorf("channel %q has not selected sources yet", e.ChannelID)
	}
	if cs.CurrentStep != StepQueryDefinition {
		// Already past the per-source phase.
		return s, nil
	}

	next, ch := s.writeChannel(e.ChannelID)
	if ch.CurrentSourceIndex < len(ch.SelectedSources)-1 {
		ch.CurrentSourceIndex++
	} else {
		ch.CurrentStep = StepFilterDefinition
	}
	return next, nil
}

func reduceDefineFilter(s *State, e DefineFilter) (*State, error) {
	cs, ok := s.ChannelStates[e.ChannelID]
	if !ok {
		return s, fmt.Errorf("unknown channel %q", e.ChannelID)
	}
	if cs.CurrentStep != StepFilterDefinition {
		return s, fmt.Errorf("channel %q is in step %s, not %s", e.ChannelID, cs.CurrentStep, StepFilterDefinition)
	}
	if strings.TrimSpace(e.Criteria) == "" {
		return s, fmt.Errorf("filter criteria is empty")
	}

	next, ch := s.writeChannel(e.ChannelID)
	ch.FilterCriteria = e.Criteria
	ch.CurrentStep = StepChannelTesting
	return next, nil
}

func reduceRunChannelTest(s *State, e RunChannelTest) (*State, error) {
	cs, ok := s.ChannelStates[e.ChannelID]
	if !ok {
		return s, fmt.Errorf("unknown channel %q", e.ChannelID)
	}
	if cs.CurrentStep != StepChannelTesting {
		return s, fmt.Errorf("channel %q is in step %s, not %s", e.ChannelID, cs.CurrentStep, StepChannelTesting)
	}

	next := s.shallowClone()
	results := e.Results
	next.TestResults[e.ChannelID] = &results
	return next, nil
}

func reduceCompleteChannel(s *State, e CompleteChannel) (*State, error) {
	cs, ok := s.ChannelStates[e.ChannelID]
	if !ok {
		return s, fmt.Errorf("unknown channel %q", e.ChannelID)
	}
	if cs.CurrentStep != StepChannelTesting {
		return s, fmt.Errorf("channel %q is in step %s, not %s", e.ChannelID, cs.CurrentStep, StepChannelTesting)
	}
	if s.TestResults[e.ChannelID] == nil {
		return s, fmt.Errorf("channel %q has no test results", e.ChannelID)
	}

	next, ch := s.writeChannel(e.ChannelID)
	ch.CurrentStep = StepChannelComplete
	ch.IsComplete = true
	if n := len(ch.SelectedSources); n > 0 && ch.CurrentSourceIndex >= n {
		ch.CurrentSourceIndex = n - 1
	}
	return next, nil
}

func reduceNextChannel(s *State) (*State, error) {
	current, ok := s.CurrentChannel()
	if !ok {
		return s, fmt.Errorf("no current channel to advance from")
	}
	cs := s.ChannelStates[current.ID]
	if cs == nil || !cs.IsComplete {
		return s, fmt.Errorf("channel %q is not complete", current.ID)
	}

	next := s.shallowClone()
	next.CurrentChannelIndex++
	if next.CurrentChannelIndex >= len(next.Channels) {
		next.CurrentChannelIndex = len(next.Channels)
		next.IsComplete = true
	}
	return next, nil
}

func reduceUpdateStreamMeta(s *State, e UpdateStreamMeta) (*State, error) {
	if strings.TrimSpace(e.Name) == "" {
		return s, fmt.Errorf("stream name is required")
	}
	next := s.shallowClone()
	next.StreamName = e.Name
	next.Mission = e.Mission
	return next, nil
}

func reduceUpdateChannel(s *State, e UpdateChannel) (*State, error) {
	if strings.TrimSpace(e.Name) == "" {
		return s, fmt.Errorf("channel name is required")
	}
	pos := -1
	for i := range s.Channels {
		if s.Channels[i].ID == e.ChannelID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return s, fmt.Errorf("unknown channel %q", e.ChannelID)
	}
	if _, ok := s.ChannelStates[e.ChannelID]; !ok {
		return s, fmt.Errorf("channel %q has no configuration state", e.ChannelID)
	}

	next, ch := s.writeChannel(e.ChannelID)
	channels := make([]stream.Channel, len(next.Channels))
	copy(channels, next.Channels)
	channels[pos].Name = e.Name
	channels[pos].Focus = e.Focus
	channels[pos].Keywords = append([]string(nil), e.Keywords...)
	next.Channels = channels
	ch.Channel = channels[pos]
	return next, nil
}

func invalidateTest(cfg *SourceQueryConfig) {
	cfg.IsTested = false
	cfg.TestResult = nil
	cfg.IsConfirmed = false
}

func sourceIndex(selected []string, sourceID string) int {
	for i, id := range selected {
		if id == sourceID {
			return i
		}
	}
	return -1
}

// shallowClone copies the state struct and its two top-level maps;
// channel states and test results are shared until written.
func (s *State) shallowClone() *State {
	next := *s
	next.ChannelStates = make(map[string]*ChannelState, len(s.ChannelStates))
	for id, cs := range s.ChannelStates {
		next.ChannelStates[id] = cs
	}
	next.TestResults = make(map[string]*ChannelTestResults, len(s.TestResults))
	for id, tr := range s.TestResults {
		next.TestResults[id] = tr
	}
	return &next
}

// writeChannel clones the state and the named channel for writing. The
// channel's source config map is cloned too, sharing config pointers
// until an individual config is replaced.
func (s *State) writeChannel(channelID string) (*State, *ChannelState) {
	next := s.shallowClone()
	prior := next.ChannelStates[channelID]
	ch := *prior
	ch.SourceConfigs = make(map[string]*SourceQueryConfig, len(prior.SourceConfigs))
	for id, cfg := range prior.SourceConfigs {
		ch.SourceConfigs[id] = cfg
	}
	next.ChannelStates[channelID] = &ch
	return next, &ch
}

// writeSourceConfig clones the path down to one source config so it can
// be mutated without touching the prior state.
func (s *State) writeSourceConfig(channelID, sourceID string) (*State, *SourceQueryConfig, error) {
	cs, ok := s.ChannelStates[channelID]
	if !ok {
		return nil, nil, fmt.Errorf("unknown channel %q", channelID)
	}
	prior, ok := cs.SourceConfigs[sourceID]
	if !ok {
		return nil, nil, fmt.Errorf("channel %q has no config for source %q (sources not selected)", channelID, sourceID)
	}

	next, ch := s.writeChannel(channelID)
	cfg := *prior
	ch.SourceConfigs[sourceID] = &cfg
	return next, &cfg, nil
}
