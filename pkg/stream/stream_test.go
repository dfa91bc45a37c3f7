package stream

import (
	"strings"
	"testing"
)

func validStream() Stream {
	return Stream{
		ID:      "stream-1",
		Name:    "Oncology Digest",
		Mission: "track oncology research",
		Channels: []Channel{
			{ID: "trials", Name: "Trials", Focus: "clinical trials"},
			{ID: "biomarkers", Name: "Biomarkers", Focus: "biomarker discovery"},
		},
	}
}

func TestStreamValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Stream)
		wantErr string
	}{
		{"valid", func(*Stream) {}, ""},
		{"no channels", func(s *Stream) { s.Channels = nil }, ""},
		{"missing id", func(s *Stream) { s.ID = " " }, "stream id required"},
		{"missing name", func(s *Stream) { s.Name = "" }, "stream name required"},
		{"channel missing id", func(s *Stream) { s.Channels[1].ID = "" }, "channels[1]: channel id required"},
		{"channel missing name", func(s *Stream) { s.Channels[0].Name = "" }, "channels[0]: channel name required"},
		{"duplicate channel id", func(s *Stream) { s.Channels[1].ID = "trials" }, "duplicate channel id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStream()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestChannelByID(t *testing.T) {
	s := validStream()
	ch, ok := s.ChannelByID("biomarkers")
	if !ok || ch.Name != "Biomarkers" {
		t.Errorf("ChannelByID = %+v, %v", ch, ok)
	}
	if _, ok := s.ChannelByID("absent"); ok {
		t.Error("ChannelByID found a channel that does not exist")
	}
}

func TestSortedKeywords(t *testing.T) {
	c := Channel{Keywords: []string{"phase ii", "immunotherapy", "car-t"}}
	got := c.SortedKeywords()
	want := []string{"car-t", "immunotherapy", "phase ii"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortedKeywords() = %v, want %v", got, want)
		}
	}
	// The original order stays untouched.
	if c.Keywords[0] != "phase ii" {
		t.Error("SortedKeywords mutated the channel")
	}
}
