package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zen-systems/streamforge/pkg/catalog"
	"github.com/zen-systems/streamforge/pkg/config"
	"github.com/zen-systems/streamforge/pkg/store"
	"github.com/zen-systems/streamforge/pkg/stream"
	"github.com/zen-systems/streamforge/pkg/workflow"
)

// testedSessionState builds a session mid channel_testing with results
// on hand, the point where a channel becomes completable.
func testedSessionState(t *testing.T) *workflow.State {
	t.Helper()

	strm := stream.Stream{
		ID:      "stream-1",
		Name:    "Oncology Digest",
		Mission: "track oncology research",
		Channels: []stream.Channel{
			{ID: "trials", Name: "Trials", Focus: "clinical trials"},
			{ID: "biomarkers", Name: "Biomarkers", Focus: "biomarker discovery"},
		},
	}
	state := workflow.NewState(strm, []catalog.Source{{ID: "pubmed", Name: "PubMed"}}, nil)

	var err error
	for _, ev := range []workflow.Event{
		workflow.SelectSources{ChannelID: "trials", SourceIDs: []string{"pubmed"}},
		workflow.RecordGeneratedQuery{ChannelID: "trials", SourceID: "pubmed", Expression: "cancer AND trial"},
		workflow.RecordTestResult{ChannelID: "trials", SourceID: "pubmed", Result: workflow.QueryTestResult{Success: true, ArticleCount: 3}},
		workflow.ConfirmQuery{ChannelID: "trials", SourceID: "pubmed"},
		workflow.DefineFilter{ChannelID: "trials", Criteria: "reports trial outcomes"},
		workflow.RunChannelTest{ChannelID: "trials", Results: workflow.ChannelTestResults{
			RunID:         "run-1",
			Threshold:     0.7,
			FilterResults: []workflow.FilterOutcome{},
		}},
	} {
		state, err = workflow.Reduce(state, ev)
		if err != nil {
			t.Fatalf("Reduce(%T): %v", ev, err)
		}
	}
	return state
}

func TestCompleteFromSnapshot(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("STREAMFORGE_DATA_DIR", dataDir)
	t.Setenv("STREAMFORGE_THRESHOLD", "")
	configDirFlag = t.TempDir()
	defer func() { configDirFlag = "" }()

	data, err := workflow.Export(testedSessionState(t))
	if err != nil {
		t.Fatal(err)
	}
	snapPath := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(snapPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	cmd := completeCmd()
	cmd.SetArgs([]string{"--snapshot", snapPath, "--channel", "trials"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("complete --snapshot failed: %v", err)
	}

	st, err := store.NewStore(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	saved, err := st.LoadWorkflowConfig("stream-1")
	if err != nil {
		t.Fatal(err)
	}
	cs := saved["trials"]
	if cs == nil || !cs.IsComplete || cs.CurrentStep != workflow.StepChannelComplete {
		t.Errorf("saved trials state = %+v, want completed", cs)
	}
}

func TestCompleteRequiresStreamOrSnapshot(t *testing.T) {
	cmd := completeCmd()
	cmd.SetArgs([]string{"--channel", "trials"})
	if err := cmd.Execute(); err == nil {
		t.Error("complete without --stream or --snapshot must fail")
	}
}

func TestCompleteAndAdvanceInOneSession(t *testing.T) {
	dataDir := t.TempDir()
	cfg := &config.Config{DataDir: dataDir}
	st, err := store.NewStore(cfg.DataDir)
	if err != nil {
		t.Fatal(err)
	}
	sess := &session{cfg: cfg, st: st, state: testedSessionState(t)}

	if err := completeAndAdvance(sess, "trials"); err != nil {
		t.Fatalf("completeAndAdvance: %v", err)
	}

	if next, ok := sess.state.CurrentChannel(); !ok || next.ID != "biomarkers" {
		t.Errorf("cursor did not advance: %+v", sess.state.CurrentChannelIndex)
	}
	saved, err := st.LoadWorkflowConfig("stream-1")
	if err != nil {
		t.Fatal(err)
	}
	if cs := saved["trials"]; cs == nil || !cs.IsComplete {
		t.Errorf("completion not persisted: %+v", cs)
	}
}
