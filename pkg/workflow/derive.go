package workflow

import "math"

// Derived completion views. These are pure reads over the state tree;
// nothing here is cached, and only ChannelState.IsComplete is a stored
// flag.

// HasConfig reports whether the channel has selected any sources.
func (cs *ChannelState) HasConfig() bool {
	return len(cs.SelectedSources) > 0
}

// HasAllQueries reports whether every selected source has a non-empty
// query expression.
func (cs *ChannelState) HasAllQueries() bool {
	if !cs.HasConfig() {
		return false
	}
	for _, id := range cs.SelectedSources {
		cfg := cs.SourceConfigs[id]
		if cfg == nil || cfg.QueryExpression == "" {
			return false
		}
	}
	return true
}

// HasFilter reports whether filter criteria have been defined.
func (cs *ChannelState) HasFilter() bool {
	return cs.FilterCriteria != ""
}

// IsChannelComplete reports whether the channel's configuration is
// fully specified: every query present and a filter defined.
func (cs *ChannelState) IsChannelComplete() bool {
	return cs.HasAllQueries() && cs.HasFilter()
}

// IsChannelInProgress reports whether configuration has started but not
// finished.
func (cs *ChannelState) IsChannelInProgress() bool {
	return cs.HasConfig() && !cs.IsChannelComplete()
}

// ConfirmedSourceCount counts selected sources whose query is confirmed.
func (cs *ChannelState) ConfirmedSourceCount() int {
	n := 0
	for _, id := range cs.SelectedSources {
		if cfg := cs.SourceConfigs[id]; cfg != nil && cfg.IsConfirmed {
			n++
		}
	}
	return n
}

// OverallProgress returns the stream-wide completion percentage in
// [0, 100]. Finished channels count whole; the channel under the cursor
// contributes a fractional score of confirmed sources plus the filter
// over its total step count. Zero channels yield zero, never NaN.
func OverallProgress(s *State) int {
	total := len(s.Channels)
	if total == 0 {
		return 0
	}

	finished := 0
	for _, ch := range s.Channels {
		if cs := s.ChannelStates[ch.ID]; cs != nil && cs.IsComplete {
			finished++
		}
	}

	partial := 0.0
	if current, ok := s.CurrentChannel(); ok {
		if cs := s.ChannelStates[current.ID]; cs != nil && !cs.IsComplete && cs.HasConfig() {
			score := float64(cs.ConfirmedSourceCount())
			if cs.HasFilter() {
				score++
			}
			partial = score / float64(len(cs.SelectedSources)+1)
		}
	}

	return int(math.Round(100 * (float64(finished) + partial) / float64(total)))
}
