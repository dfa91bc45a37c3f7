package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SchemaWorkflowV1 is the snapshot document discriminator.
const SchemaWorkflowV1 = "streamforge.workflow.v1"

// Snapshot is the debug-facing serialized form of the whole top-level
// state. Ephemeral test results are carried so a pasted snapshot
// reproduces the session exactly; transient save bookkeeping is not.
type Snapshot struct {
	Schema              string                         `json:"schema"`
	StreamID            string                         `json:"stream_id"`
	StreamName          string                         `json:"stream_name"`
	Mission             string                         `json:"mission"`
	Channels            json.RawMessage                `json:"channels"`
	Sources             json.RawMessage                `json:"sources"`
	ChannelStates       map[string]*ChannelState       `json:"channel_states"`
	TestResults         map[string]*ChannelTestResults `json:"test_results,omitempty"`
	CurrentChannelIndex int                            `json:"current_channel_index"`
	IsComplete          bool                           `json:"is_complete"`
}

// snapshotRequiredFields are the keys a document must carry to be
// imported at all. Missing keys are rejected by name, never defaulted.
var snapshotRequiredFields = []string{
	"schema",
	"stream_id",
	"stream_name",
	"mission",
	"channels",
	"sources",
	"channel_states",
	"current_channel_index",
}

// Export serializes the state to a plain structured document.
func Export(s *State) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("state is required")
	}
	doc := map[string]any{
		"schema":                SchemaWorkflowV1,
		"stream_id":             s.StreamID,
		"stream_name":           s.StreamName,
		"mission":               s.Mission,
		"channels":              s.Channels,
		"sources":               s.Sources,
		"channel_states":        s.ChannelStates,
		"current_channel_index": s.CurrentChannelIndex,
		"is_complete":           s.IsComplete,
	}
	if len(s.TestResults) > 0 {
		doc["test_results"] = s.TestResults
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Import re-hydrates a state from a pasted snapshot document. The import
// is all-or-nothing: any missing required field or malformed section
// rejects the whole document with an error naming the field.
func Import(data []byte) (*State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("snapshot is not a valid document: %w", err)
	}
	for _, field := range snapshotRequiredFields {
		if _, ok := raw[field]; !ok {
			return nil, fmt.Errorf("snapshot missing required field %q", field)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot decode failed: %w", err)
	}
	if snap.Schema != SchemaWorkflowV1 {
		return nil, fmt.Errorf("snapshot schema must be %q, got %q", SchemaWorkflowV1, snap.Schema)
	}
	if strings.TrimSpace(snap.StreamID) == "" {
		return nil, fmt.Errorf("snapshot field %q is empty", "stream_id")
	}
	if strings.TrimSpace(snap.StreamName) == "" {
		return nil, fmt.Errorf("snapshot field %q is empty", "stream_name")
	}

	state := &State{
		StreamID:            snap.StreamID,
		StreamName:          snap.StreamName,
		Mission:             snap.Mission,
		ChannelStates:       snap.ChannelStates,
		TestResults:         snap.TestResults,
		CurrentChannelIndex: snap.CurrentChannelIndex,
		IsComplete:          snap.IsComplete,
	}
	if err := json.Unmarshal(snap.Channels, &state.Channels); err != nil {
		return nil, fmt.Errorf("snapshot field %q is malformed: %w", "channels", err)
	}
	if err := json.Unmarshal(snap.Sources, &state.Sources); err != nil {
		return nil, fmt.Errorf("snapshot field %q is malformed: %w", "sources", err)
	}

	if state.CurrentChannelIndex < 0 || state.CurrentChannelIndex > len(state.Channels) {
		return nil, fmt.Errorf("snapshot field %q out of range: %d", "current_channel_index", state.CurrentChannelIndex)
	}
	if state.ChannelStates == nil {
		state.ChannelStates = map[string]*ChannelState{}
	}
	for id, cs := range state.ChannelStates {
		if cs == nil {
			return nil, fmt.Errorf("snapshot channel_states[%q] is null", id)
		}
		if err := validateChannelState(id, cs); err != nil {
			return nil, err
		}
	}
	for _, ch := range state.Channels {
		if state.ChannelStates[ch.ID] == nil {
			return nil, fmt.Errorf("snapshot channel_states missing entry for channel %q", ch.ID)
		}
	}
	if state.TestResults == nil {
		state.TestResults = map[string]*ChannelTestResults{}
	}
	return state, nil
}

func validateChannelState(id string, cs *ChannelState) error {
	switch cs.CurrentStep {
	case StepSourceSelection, StepQueryDefinition, StepFilterDefinition, StepChannelTesting, StepChannelComplete:
	default:
		return fmt.Errorf("snapshot channel_states[%q]: unknown step %q", id, cs.CurrentStep)
	}
	if cs.CurrentStep == StepQueryDefinition {
		if cs.CurrentSourceIndex < 0 || cs.CurrentSourceIndex >= len(cs.SelectedSources) {
			return fmt.Errorf("snapshot channel_states[%q]: current_source_index %d out of range", id, cs.CurrentSourceIndex)
		}
	}
	for _, sid := range cs.SelectedSources {
		cfg, ok := cs.SourceConfigs[sid]
		if !ok || cfg == nil {
			return fmt.Errorf("snapshot channel_states[%q]: selected source %q has no config", id, sid)
		}
		if cfg.IsConfirmed && !cfg.IsTested {
			return fmt.Errorf("snapshot channel_states[%q]: source %q confirmed without a test", id, sid)
		}
	}
	if cs.SourceConfigs == nil {
		cs.SourceConfigs = map[string]*SourceQueryConfig{}
	}
	return nil
}
