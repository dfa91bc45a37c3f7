// Package store persists workflow configuration between sessions. One
// JSON document per stream; saves are idempotent and retryable, and
// ephemeral test results are never written here.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zen-systems/streamforge/pkg/workflow"
)

// SchemaConfigV1 is the stored document discriminator.
const SchemaConfigV1 = "streamforge.config.v1"

// configDocument is the on-disk form of a stream's channel configs.
type configDocument struct {
	Schema         string                            `json:"schema"`
	StreamID       string                            `json:"stream_id"`
	SavedAt        time.Time                         `json:"saved_at"`
	ChannelConfigs map[string]*workflow.ChannelState `json:"channel_configs"`
}

// Store manages per-stream workflow config files under a base directory.
type Store struct {
	BasePath string
}

// NewStore creates a store rooted at basePath, defaulting to
// ~/.streamforge/streams.
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		basePath = filepath.Join(home, ".streamforge", "streams")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, err
	}
	return &Store{BasePath: basePath}, nil
}

// SaveWorkflowConfig writes the stream's channel configs. The write goes
// through a temp file and rename so a failed save never truncates the
// previous document.
func (s *Store) SaveWorkflowConfig(streamID string, configs map[string]*workflow.ChannelState) error {
	if streamID == "" {
		return fmt.Errorf("stream id is required")
	}

	doc := configDocument{
		Schema:         SchemaConfigV1,
		StreamID:       streamID,
		SavedAt:        time.Now().UTC(),
		ChannelConfigs: configs,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow config: %w", err)
	}

	path := s.configPath(streamID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write workflow config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit workflow config: %w", err)
	}
	return nil
}

// LoadWorkflowConfig reads the stream's channel configs. A stream with
// no saved document loads as an empty map, not an error.
func (s *Store) LoadWorkflowConfig(streamID string) (map[string]*workflow.ChannelState, error) {
	if streamID == "" {
		return nil, fmt.Errorf("stream id is required")
	}

	data, err := os.ReadFile(s.configPath(streamID))
	if os.IsNotExist(err) {
		return map[string]*workflow.ChannelState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow config: %w", err)
	}

	var doc configDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workflow config: %w", err)
	}
	if doc.Schema != SchemaConfigV1 {
		return nil, fmt.Errorf("workflow config schema must be %q, got %q", SchemaConfigV1, doc.Schema)
	}
	if doc.StreamID != streamID {
		return nil, fmt.Errorf("workflow config is for stream %q, not %q", doc.StreamID, streamID)
	}
	if doc.ChannelConfigs == nil {
		doc.ChannelConfigs = map[string]*workflow.ChannelState{}
	}
	return doc.ChannelConfigs, nil
}

func (s *Store) configPath(streamID string) string {
	return filepath.Join(s.BasePath, streamID+".json")
}
