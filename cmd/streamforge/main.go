package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zen-systems/streamforge/pkg/adapter"
	"github.com/zen-systems/streamforge/pkg/catalog"
	"github.com/zen-systems/streamforge/pkg/config"
	"github.com/zen-systems/streamforge/pkg/generator"
	"github.com/zen-systems/streamforge/pkg/store"
	"github.com/zen-systems/streamforge/pkg/summary"
	"github.com/zen-systems/streamforge/pkg/tester"
	"github.com/zen-systems/streamforge/pkg/workflow"
)

var (
	configDirFlag string
	adapterFlag   string
	modelFlag     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "streamforge",
		Short: "Research stream channel configuration engine",
		Long: `Streamforge configures a search-and-filter pipeline per research
	channel: select information sources, generate and test a query per
	source, define a semantic relevance filter, and aggregate test
	results into a stream-wide summary.`,
	}

	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "path to config directory (default ~/.streamforge)")
	rootCmd.PersistentFlags().StringVar(&adapterFlag, "adapter", "", "override LLM adapter (anthropic, openai, google)")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "override model id")

	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(selectCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(testQueryCmd())
	rootCmd.AddCommand(confirmCmd())
	rootCmd.AddCommand(filterCmd())
	rootCmd.AddCommand(testChannelCmd())
	rootCmd.AddCommand(completeCmd())
	rootCmd.AddCommand(progressCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the information source catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			sources, err := cat.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list sources: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE ID\tNAME\tDATE RANGE")
			for _, s := range sources {
				dates := "-"
				if s.SupportsDateRange {
					dates = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Name, dates)
			}
			return w.Flush()
		},
	}
}

func selectCmd() *cobra.Command {
	var streamID, channelID string

	cmd := &cobra.Command{
		Use:   "select [source-id...]",
		Short: "Select information sources for a channel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(streamID, func(sess *session) error {
				return sess.dispatchAndSave(workflow.SelectSources{
					ChannelID: channelID,
					SourceIDs: args,
				})
			})
		},
	}

	cmd.Flags().StringVar(&streamID, "stream", "", "stream id")
	cmd.Flags().StringVar(&channelID, "channel", "", "channel id")
	markRequired(cmd, "stream", "channel")
	return cmd
}

func generateCmd() *cobra.Command {
	var streamID, channelID, sourceID string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a query expression for a channel source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(streamID, func(sess *session) error {
				ch, ok := sess.state.ChannelState(channelID)
				if !ok {
					return fmt.Errorf("unknown channel %q", channelID)
				}

				src, ok := catalog.Index(sess.state.Sources)[sourceID]
				if !ok {
					return fmt.Errorf("source %q is not in the catalog", sourceID)
				}

				target, err := createAdapter(sess.cfg)
				if err != nil {
					return err
				}
				gen, err := generator.New(target, pickModel(sess.cfg, target))
				if err != nil {
					return err
				}

				gq, err := gen.Generate(cmd.Context(), ch.Channel, src)
				if err != nil {
					if adapter.IsTransient(err) {
						return fmt.Errorf("%w (transient; retry the command)", err)
					}
					return err
				}

				fmt.Printf("query: %s\nreasoning: %s\n", gq.Expression, gq.Reasoning)
				return sess.dispatchAndSave(workflow.RecordGeneratedQuery{
					ChannelID:  channelID,
					SourceID:   sourceID,
					Expression: gq.Expression,
					Reasoning:  gq.Reasoning,
				})
			})
		},
	}

	cmd.Flags().StringVar(&streamID, "stream", "", "stream id")
	cmd.Flags().StringVar(&channelID, "channel", "", "channel id")
	cmd.Flags().StringVar(&sourceID, "source", "", "source id")
	markRequired(cmd, "stream", "channel", "source")
	return cmd
}

func testQueryCmd() *cobra.Command {
	var streamID, channelID, sourceID, from, to string

	cmd := &cobra.Command{
		Use:   "test-query",
		Short: "Test a channel source's query against its search endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(streamID, func(sess *session) error {
				ch, ok := sess.state.ChannelState(channelID)
				if !ok {
					return fmt.Errorf("unknown channel %q", channelID)
				}
				cfg, ok := ch.SourceConfigs[sourceID]
				if !ok {
					return fmt.Errorf("channel %q has no config for source %q", channelID, sourceID)
				}
				if cfg.QueryExpression == "" {
					return fmt.Errorf("source %q has no query to test", sourceID)
				}

				src, ok := catalog.Index(sess.state.Sources)[sourceID]
				if !ok {
					src = catalog.Source{ID: sourceID, Name: cfg.SourceName}
				}

				qt, err := tester.NewHTTPQueryTester(sess.cfg.SourceEndpoints)
				if err != nil {
					return err
				}

				opts := tester.TestOptions{MaxArticles: sess.cfg.RetrievalCap}
				if from != "" || to != "" {
					opts.DateRange = &workflow.DateRange{From: from, To: to}
				}

				result, err := qt.Test(cmd.Context(), src, cfg.QueryExpression, opts)
				if err != nil {
					if adapter.IsTransient(err) {
						return fmt.Errorf("%w (transient; retry the command)", err)
					}
					return err
				}

				if result.Success {
					fmt.Printf("ok: %d articles\n", result.ArticleCount)
				} else {
					fmt.Printf("test completed with source error: %s\n", result.ErrorMessage)
				}
				return sess.dispatchAndSave(workflow.RecordTestResult{
					ChannelID: channelID,
					SourceID:  sourceID,
					Result:    result,
				})
			})
		},
	}

	cmd.Flags().StringVar(&streamID, "stream", "", "stream id")
	cmd.Flags().StringVar(&channelID, "channel", "", "channel id")
	cmd.Flags().StringVar(&sourceID, "source", "", "source id")
	cmd.Flags().StringVar(&from, "from", "", "date range start (sources that support it)")
	cmd.Flags().StringVar(&to, "to", "", "date range end (sources that support it)")
	markRequired(cmd, "stream", "channel", "source")
	return cmd
}

func confirmCmd() *cobra.Command {
	var streamID, channelID, sourceID string

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm a tested query and advance the wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(streamID, func(sess *session) error {
				return sess.dispatchAndSave(workflow.ConfirmQuery{
					ChannelID: channelID,
					SourceID:  sourceID,
				})
			})
		},
	}

	cmd.Flags().StringVar(&streamID, "stream", "", "stream id")
	cmd.Flags().StringVar(&channelID, "channel", "", "channel id")
	cmd.Flags().StringVar(&sourceID, "source", "", "source id")
	markRequired(cmd, "stream", "channel", "source")
	return cmd
}

func filterCmd() *cobra.Command {
	var streamID, channelID, criteria string

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Define the semantic filter criteria for a channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(streamID, func(sess *session) error {
				return sess.dispatchAndSave(workflow.DefineFilter{
					ChannelID: channelID,
					Criteria:  criteria,
				})
			})
		},
	}

	cmd.Flags().StringVar(&streamID, "stream", "", "stream id")
	cmd.Flags().StringVar(&channelID, "channel", "", "channel id")
	cmd.Flags().StringVar(&criteria, "criteria", "", "relevance criteria text")
	markRequired(cmd, "stream", "channel", "criteria")
	return cmd
}

func testChannelCmd() *cobra.Command {
	var streamID, channelID, from, to string
	var complete bool

	cmd := &cobra.Command{
		Use:   "test-channel",
		Short: "Run the full retrieval and filter test for a channel",
		Long: `Runs retrieval through every configured source query, then the
	semantic filter over the pooled sample articles.

	Test results are ephemeral and die with the process; pass --complete
	to mark the channel complete and advance the stream in the same
	session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(streamID, func(sess *session) error {
				ch, ok := sess.state.ChannelState(channelID)
				if !ok {
					return fmt.Errorf("unknown channel %q", channelID)
				}

				target, err := createAdapter(sess.cfg)
				if err != nil {
					return err
				}
				ft, err := tester.NewFilterTester(target, pickModel(sess.cfg, target), sess.cfg.ConfidenceThreshold)
				if err != nil {
					return err
				}
				qt, err := tester.NewHTTPQueryTester(sess.cfg.SourceEndpoints)
				if err != nil {
					return err
				}
				ct, err := tester.NewChannelTester(qt, ft, tester.WithRetrievalCap(sess.cfg.RetrievalCap))
				if err != nil {
					return err
				}

				var dateRange *workflow.DateRange
				if from != "" || to != "" {
					dateRange = &workflow.DateRange{From: from, To: to}
				}

				results, err := ct.Run(cmd.Context(), ch, catalog.Index(sess.state.Sources), dateRange)
				if err != nil {
					return err
				}

				passed, failed := 0, 0
				for _, f := range results.FilterResults {
					if f.Passed {
						passed++
					} else {
						failed++
					}
				}
				fmt.Printf("run %s: %d passed, %d failed at threshold %.2f\n",
					results.RunID, passed, failed, results.Threshold)

				if err := sess.dispatch(workflow.RunChannelTest{
					ChannelID: channelID,
					Results:   results,
				}); err != nil {
					return err
				}
				if !complete {
					return nil
				}
				return completeAndAdvance(sess, channelID)
			})
		},
	}

	cmd.Flags().StringVar(&streamID, "stream", "", "stream id")
	cmd.Flags().StringVar(&channelID, "channel", "", "channel id")
	cmd.Flags().StringVar(&from, "from", "", "date range start")
	cmd.Flags().StringVar(&to, "to", "", "date range end")
	cmd.Flags().BoolVar(&complete, "complete", false, "complete the channel and advance after the run")
	markRequired(cmd, "stream", "channel")
	return cmd
}

func completeCmd() *cobra.Command {
	var streamID, channelID, snapshotPath string

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Mark a tested channel complete and advance the stream",
		Long: `Completes a channel whose test results are on hand.

	Test results are ephemeral, so a fresh session has none; pass
	--snapshot to complete from an exported state document, or run
	test-channel --complete to test and complete in one session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if snapshotPath != "" {
				data, err := os.ReadFile(snapshotPath)
				if err != nil {
					return fmt.Errorf("failed to read snapshot: %w", err)
				}
				state, err := workflow.Import(data)
				if err != nil {
					return err
				}
				cfg, err := loadConfig()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				st, err := store.NewStore(cfg.DataDir)
				if err != nil {
					return err
				}
				return completeAndAdvance(&session{cfg: cfg, st: st, state: state}, channelID)
			}
			if streamID == "" {
				return fmt.Errorf("either --stream or --snapshot is required")
			}
			return withSession(streamID, func(sess *session) error {
				return completeAndAdvance(sess, channelID)
			})
		},
	}

	cmd.Flags().StringVar(&streamID, "stream", "", "stream id")
	cmd.Flags().StringVar(&channelID, "channel", "", "channel id")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "complete from an exported state document")
	markRequired(cmd, "channel")
	return cmd
}

// completeAndAdvance finishes a tested channel and moves the stream
// cursor, persisting through the save bookkeeping events.
func completeAndAdvance(sess *session, channelID string) error {
	if err := sess.dispatch(workflow.CompleteChannel{ChannelID: channelID}); err != nil {
		return err
	}
	if err := sess.dispatchAndSave(workflow.NextChannel{}); err != nil {
		return err
	}
	if sess.state.IsComplete {
		fmt.Println("stream configuration complete")
	} else if next, ok := sess.state.CurrentChannel(); ok {
		fmt.Printf("next channel: %s\n", next.Name)
	}
	return nil
}

func progressCmd() *cobra.Command {
	var streamID string

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show per-channel status and overall completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(streamID, func(sess *session) error {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CHANNEL\tSTEP\tSOURCES\tCONFIRMED\tSTATUS")
				for _, ch := range sess.state.Channels {
					cs := sess.state.ChannelStates[ch.ID]
					if cs == nil {
						continue
					}
					status := "pending"
					switch {
					case cs.IsComplete:
						status = "complete"
					case cs.IsChannelInProgress():
						status = "in progress"
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
						ch.Name, cs.CurrentStep, len(cs.SelectedSources), cs.ConfirmedSourceCount(), status)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Printf("\noverall: %d%%\n", workflow.OverallProgress(sess.state))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&streamID, "stream", "", "stream id")
	markRequired(cmd, "stream")
	return cmd
}

func summaryCmd() *cobra.Command {
	var streamID, snapshotPath string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Aggregate channel test results into a stream report",
		Long: `Aggregates per-channel test results into stream-wide totals.

	Test results are ephemeral; pass --snapshot to read a previously
	exported state document instead of the live session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var state *workflow.State
			if snapshotPath != "" {
				data, err := os.ReadFile(snapshotPath)
				if err != nil {
					return fmt.Errorf("failed to read snapshot: %w", err)
				}
				state, err = workflow.Import(data)
				if err != nil {
					return err
				}
			} else {
				var err error
				state, err = mountSession(streamID)
				if err != nil {
					return err
				}
			}

			report := summary.Aggregate(state.Channels, state.TestResults)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHANNEL\tRETRIEVED\tPASSED\tFAILED\tTHRESHOLD")
			for _, b := range report.Tested {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.2f\n",
					b.ChannelName, b.Retrieved, b.Passed, b.Failed, b.Threshold)
			}
			for _, name := range report.Untested {
				fmt.Fprintf(w, "%s\t-\t-\t-\tnot yet tested\n", name)
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "TOTAL\t%d\t%d\t%d\t\n",
				report.TotalRetrieved, report.TotalPassed, report.TotalFailed)
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&streamID, "stream", "", "stream id")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "read an exported state document instead of the live session")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [snapshot.json]",
		Short: "Validate an exported state document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			if _, err := workflow.Import(data); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var streamID string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the session state as a snapshot document",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := mountSession(streamID)
			if err != nil {
				return err
			}
			data, err := workflow.Export(state)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		},
	}

	cmd.Flags().StringVar(&streamID, "stream", "", "stream id")
	markRequired(cmd, "stream")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Re-hydrate session state from a snapshot document on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			state, err := workflow.Import(data)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			st, err := store.NewStore(cfg.DataDir)
			if err != nil {
				return err
			}
			if err := st.SaveWorkflowConfig(state.StreamID, state.ChannelStates); err != nil {
				return err
			}
			fmt.Printf("imported stream %s (%d channels)\n", state.StreamID, len(state.Channels))
			return nil
		},
	}
}

// session is one mounted wizard session: config, store and the live
// state tree.
type session struct {
	cfg   *config.Config
	st    *store.Store
	state *workflow.State
}

func withSession(streamID string, fn func(*session) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	st, err := store.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}

	state, err := mount(cfg, st, streamID)
	if err != nil {
		return err
	}
	return fn(&session{cfg: cfg, st: st, state: state})
}

func mountSession(streamID string) (*workflow.State, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	st, err := store.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return mount(cfg, st, streamID)
}

func mount(cfg *config.Config, st *store.Store, streamID string) (*workflow.State, error) {
	strm, err := st.LoadStream(streamID)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	sources, err := cat.List(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	saved, err := st.LoadWorkflowConfig(streamID)
	if err != nil {
		return nil, err
	}
	return workflow.NewState(strm, sources, saved), nil
}

// dispatch applies an event to the session state without persisting.
func (s *session) dispatch(ev workflow.Event) error {
	next, err := workflow.Reduce(s.state, ev)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// dispatchAndSave applies an event and persists the channel configs,
// recording save bookkeeping through the same reducer.
func (s *session) dispatchAndSave(ev workflow.Event) error {
	if err := s.dispatch(ev); err != nil {
		return err
	}
	if err := s.dispatch(workflow.SaveStarted{}); err != nil {
		return err
	}
	if err := s.st.SaveWorkflowConfig(s.state.StreamID, s.state.ChannelStates); err != nil {
		_ = s.dispatch(workflow.SaveFailed{Err: err.Error()})
		return fmt.Errorf("save failed (retry the command): %w", err)
	}
	return s.dispatch(workflow.SaveSucceeded{})
}

func loadConfig() (*config.Config, error) {
	if configDirFlag != "" {
		return config.LoadFromDir(configDirFlag)
	}
	return config.Load()
}

func loadCatalog(cfg *config.Config) (catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.DefaultCatalog(), nil
	}
	cat, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

func createAdapter(cfg *config.Config) (adapter.Adapter, error) {
	name := adapterFlag
	if name == "" {
		name = cfg.DefaultAdapter
	}

	switch name {
	case "anthropic":
		return adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
	case "openai":
		return adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
	case "google":
		return adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
	default:
		return nil, fmt.Errorf("unknown adapter %q", name)
	}
}

func pickModel(cfg *config.Config, a adapter.Adapter) string {
	if modelFlag != "" {
		return modelFlag
	}
	if cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	models := a.Models()
	if len(models) > 0 {
		return models[0]
	}
	return ""
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		_ = cmd.MarkFlagRequired(name)
	}
}
