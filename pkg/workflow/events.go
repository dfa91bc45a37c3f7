package workflow

// Event is the tagged union dispatched into Reduce. Each variant carries
// exactly the data its transition needs; results of asynchronous work
// arrive as Record* events, never as side effects inside the reducer.
type Event interface {
	event()
}

// SelectSources initializes one SourceQueryConfig per id and enters the
// per-source query definition phase.
type SelectSources struct {
	ChannelID string
	SourceIDs []string
}

// RecordGeneratedQuery applies a query generation result to an existing
// (channel, source) config.
type RecordGeneratedQuery struct {
	ChannelID  string
	SourceID   string
	Expression string
	Reasoning  string
}

// UpdateQuery overwrites a query expression after manual editing. Any
// prior test and confirmation are invalidated.
type UpdateQuery struct {
	ChannelID  string
	SourceID   string
	Expression string
}

// RecordTestResult applies a query test outcome. A failed test still
// marks the pair tested.
type RecordTestResult struct {
	ChannelID string
	SourceID  string
	Result    QueryTestResult
}

// ConfirmQuery marks a tested query as confirmed and advances the
// per-source cursor, or leaves the per-source phase at the last source.
type ConfirmQuery struct {
	ChannelID string
	SourceID  string
}

// NextSource advances the per-source cursor without confirming.
type NextSource struct {
	ChannelID string
}

// DefineFilter persists the semantic filter criteria and enters the
// channel testing phase.
type DefineFilter struct {
	ChannelID string
	Criteria  string
}

// RunChannelTest replaces the channel's ephemeral test results. The
// step does not change; channels are retestable idempotently.
type RunChannelTest struct {
	ChannelID string
	Results   ChannelTestResults
}

// CompleteChannel finishes a tested channel.
type CompleteChannel struct {
	ChannelID string
}

// NextChannel advances the cross-channel cursor. Moving past the last
// channel completes the whole stream.
type NextChannel struct{}

// UpdateStreamMeta reconciles name/mission edits made through the
// stream update flow into the in-memory state.
type UpdateStreamMeta struct {
	Name    string
	Mission string
}

// UpdateChannel reconciles a channel edit (name, focus, keywords) into
// both the channel list and the channel's configuration state.
type UpdateChannel struct {
	ChannelID string
	Name      string
	Focus     string
	Keywords  []string
}

// SaveStarted marks a persistence attempt in flight.
type SaveStarted struct{}

// SaveSucceeded clears the saving flag and any prior save error.
type SaveSucceeded struct{}

// SaveFailed records a recoverable persistence error. Nothing is rolled
// back in memory; the user may retry the save.
type SaveFailed struct {
	Err string
}

func (SelectSources) event()        {}
func (RecordGeneratedQuery) event() {}
func (UpdateQuery) event()          {}
func (RecordTestResult) event()     {}
func (ConfirmQuery) event()         {}
func (NextSource) event()           {}
func (DefineFilter) event()         {}
func (RunChannelTest) event()       {}
func (CompleteChannel) event()      {}
func (NextChannel) event()          {}
func (UpdateStreamMeta) event()     {}
func (UpdateChannel) event()        {}
func (SaveStarted) event()          {}
func (SaveSucceeded) event()        {}
func (SaveFailed) event()           {}
