// Package summary aggregates per-channel test results into a
// stream-wide report. It consumes only the ephemeral results map; a
// channel with no results (or no filter results yet) contributes zero
// to every total and is reported as not yet tested.
package summary

import (
	"github.com/zen-systems/streamforge/pkg/stream"
	"github.com/zen-systems/streamforge/pkg/workflow"
)

// ChannelBreakdown is the per-channel slice of the report.
type ChannelBreakdown struct {
	ChannelID   string  `json:"channel_id"`
	ChannelName string  `json:"channel_name"`
	Retrieved   int     `json:"retrieved"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Threshold   float64 `json:"threshold"`
}

// Report is the stream-wide aggregation over tested channels.
type Report struct {
	TotalRetrieved int                `json:"total_retrieved"`
	TotalPassed    int                `json:"total_passed"`
	TotalFailed    int                `json:"total_failed"`
	Tested         []ChannelBreakdown `json:"tested"`
	Untested       []string           `json:"untested,omitempty"`
}

// Aggregate computes the report for the given channels in stream order.
// An article counts as passed when its confidence meets the channel's
// own threshold for that test run.
func Aggregate(channels []stream.Channel, results map[string]*workflow.ChannelTestResults) Report {
	var report Report

	for _, ch := range channels {
		res := results[ch.ID]
		if res == nil || res.FilterResults == nil {
			report.Untested = append(report.Untested, ch.Name)
			continue
		}

		breakdown := ChannelBreakdown{
			ChannelID:   ch.ID,
			ChannelName: ch.Name,
			Threshold:   res.Threshold,
		}
		for _, r := range res.Retrievals {
			breakdown.Retrieved += r.ActualRetrieved
		}
		for _, f := range res.FilterResults {
			if f.Confidence >= res.Threshold {
				breakdown.Passed++
			} else {
				breakdown.Failed++
			}
		}

		report.TotalRetrieved += breakdown.Retrieved
		report.TotalPassed += breakdown.Passed
		report.TotalFailed += breakdown.Failed
		report.Tested = append(report.Tested, breakdown)
	}

	return report
}
