// Package stream defines the research stream and channel data model.
// A stream is the top-level configuration job; channels are its thematic
// sub-topics, each configured independently by the workflow engine.
package stream

import (
	"fmt"
	"sort"
	"strings"
)

// Stream identifies the overall configuration job.
type Stream struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Mission  string    `json:"mission"`
	Channels []Channel `json:"channels"`
}

// Channel is a thematic unit within a stream. Channels are created by the
// stream creation flow, never by the workflow engine; the engine only edits
// name, focus and keywords via pass-through updates.
type Channel struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Focus    string   `json:"focus"`
	Keywords []string `json:"keywords,omitempty"`
}

// Validate checks the structural requirements on a stream.
func (s *Stream) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("stream id required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("stream name required")
	}
	seen := make(map[string]bool, len(s.Channels))
	for i := range s.Channels {
		if err := s.Channels[i].Validate(); err != nil {
			return fmt.Errorf("channels[%d]: %w", i, err)
		}
		if seen[s.Channels[i].ID] {
			return fmt.Errorf("channels[%d]: duplicate channel id %q", i, s.Channels[i].ID)
		}
		seen[s.Channels[i].ID] = true
	}
	return nil
}

// Validate checks the structural requirements on a channel.
func (c *Channel) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("channel id required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("channel name required")
	}
	return nil
}

// ChannelByID returns the channel with the given id, if present.
func (s *Stream) ChannelByID(id string) (Channel, bool) {
	for _, c := range s.Channels {
		if c.ID == id {
			return c, true
		}
	}
	return Channel{}, false
}

// SortedKeywords returns the keyword set in deterministic order.
// The set is unordered in the model but must render identically every time.
func (c *Channel) SortedKeywords() []string {
	out := make([]string, len(c.Keywords))
	copy(out, c.Keywords)
	sort.Strings(out)
	return out
}
