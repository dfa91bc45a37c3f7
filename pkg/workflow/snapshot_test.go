package workflow

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := completedFirstChannel(t)

	data, err := Export(s)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	restored, err := Import(data)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	if restored.StreamID != s.StreamID || restored.StreamName != s.StreamName || restored.Mission != s.Mission {
		t.Errorf("stream identity lost: %+v", restored)
	}
	if len(restored.Channels) != len(s.Channels) {
		t.Errorf("channels = %d, want %d", len(restored.Channels), len(s.Channels))
	}
	if restored.CurrentChannelIndex != s.CurrentChannelIndex {
		t.Errorf("cursor = %d, want %d", restored.CurrentChannelIndex, s.CurrentChannelIndex)
	}

	cs := restored.ChannelStates["trials"]
	if cs == nil {
		t.Fatal("trials channel state missing after import")
	}
	cfg := cs.SourceConfigs["pubmed"]
	if cfg == nil {
		t.Fatal("pubmed config missing after import")
	}
	if cfg.QueryExpression != "cancer AND immunotherapy" || !cfg.IsTested || !cfg.IsConfirmed {
		t.Errorf("query lifecycle fields lost: %+v", cfg)
	}
	if cfg.TestResult == nil || cfg.TestResult.ArticleCount != 42 {
		t.Errorf("test result lost: %+v", cfg.TestResult)
	}
	if cs.FilterCriteria != "must mention Phase II or III" {
		t.Errorf("filter criteria lost: %q", cs.FilterCriteria)
	}
	if restored.TestResults["trials"] == nil || restored.TestResults["trials"].RunID != "run-1" {
		t.Error("ephemeral results missing from the debug snapshot")
	}
}

func TestImportMissingRequiredFields(t *testing.T) {
	s := completedFirstChannel(t)
	data, err := Export(s)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	for _, field := range snapshotRequiredFields {
		t.Run(field, func(t *testing.T) {
			var doc map[string]json.RawMessage
			if err := json.Unmarshal(data, &doc); err != nil {
				t.Fatal(err)
			}
			delete(doc, field)
			mutated, err := json.Marshal(doc)
			if err != nil {
				t.Fatal(err)
			}

			_, err = Import(mutated)
			if err == nil {
				t.Fatalf("Import() accepted a document without %q", field)
			}
			if !strings.Contains(err.Error(), field) {
				t.Errorf("error %q does not name the missing field %q", err, field)
			}
		})
	}
}

func TestImportRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(doc map[string]any)
		wantErr string
	}{
		{
			name:    "wrong schema",
			mutate:  func(doc map[string]any) { doc["schema"] = "streamforge.workflow.v0" },
			wantErr: "schema",
		},
		{
			name:    "empty stream id",
			mutate:  func(doc map[string]any) { doc["stream_id"] = "" },
			wantErr: "stream_id",
		},
		{
			name:    "cursor out of range",
			mutate:  func(doc map[string]any) { doc["current_channel_index"] = 99 },
			wantErr: "current_channel_index",
		},
	}

	s := completedFirstChannel(t)
	data, err := Export(s)
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc map[string]any
			if err := json.Unmarshal(data, &doc); err != nil {
				t.Fatal(err)
			}
			tt.mutate(doc)
			mutated, err := json.Marshal(doc)
			if err != nil {
				t.Fatal(err)
			}

			if _, err := Import(mutated); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Import() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestImportRejectsInvalidChannelState(t *testing.T) {
	doc := `{
		"schema": "streamforge.workflow.v1",
		"stream_id": "s1",
		"stream_name": "S",
		"mission": "m",
		"channels": [{"id": "c1", "name": "C"}],
		"sources": [],
		"current_channel_index": 0,
		"channel_states": {
			"c1": {
				"channel": {"id": "c1", "name": "C"},
				"selected_sources": ["pubmed"],
				"source_configs": {
					"pubmed": {"source_id": "pubmed", "source_name": "PubMed", "query_expression": "q", "is_tested": false, "is_confirmed": true}
				},
				"filter_criteria": "",
				"current_source_index": 0,
				"current_step": "query_definition",
				"is_complete": false
			}
		}
	}`

	_, err := Import([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "confirmed without a test") {
		t.Errorf("Import() error = %v, want confirmed-without-test rejection", err)
	}
}

func TestImportRejectsChannelWithoutState(t *testing.T) {
	doc := `{
		"schema": "streamforge.workflow.v1",
		"stream_id": "s1",
		"stream_name": "S",
		"mission": "m",
		"channels": [{"id": "trials", "name": "Trials"}],
		"sources": [],
		"current_channel_index": 0,
		"channel_states": {}
	}`

	_, err := Import([]byte(doc))
	if err == nil {
		t.Fatal("Import() accepted a channel with no channel_states entry")
	}
	if !strings.Contains(err.Error(), "channel_states") || !strings.Contains(err.Error(), "trials") {
		t.Errorf("error %q does not name channel_states and the channel", err)
	}
}

func TestSnapshotKeepsEmptyFilterResults(t *testing.T) {
	s := completedFirstChannel(t)
	s.TestResults["trials"].FilterResults = []FilterOutcome{}

	data, err := Export(s)
	if err != nil {
		t.Fatal(err)
	}
	restored, err := Import(data)
	if err != nil {
		t.Fatal(err)
	}

	res := restored.TestResults["trials"]
	if res == nil {
		t.Fatal("test results lost on round trip")
	}
	// A run with zero outcomes is still a completed test, not an
	// untested channel.
	if res.FilterResults == nil {
		t.Error("empty filter results decoded as nil")
	}
}

func TestImportRejectsMalformedDocument(t *testing.T) {
	if _, err := Import([]byte("not json")); err == nil {
		t.Error("Import() accepted a non-JSON document")
	}
	if _, err := Import([]byte(`[1,2,3]`)); err == nil {
		t.Error("Import() accepted a non-object document")
	}
}
