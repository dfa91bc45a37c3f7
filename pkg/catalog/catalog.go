// Package catalog provides the information source catalog: the immutable
// list of external content sources a channel can query. The catalog is
// loaded once per session and treated as read-only afterwards.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source is a catalog entry for an external content source.
type Source struct {
	ID   string `json:"source_id" yaml:"source_id"`
	Name string `json:"name" yaml:"name"`

	// SupportsDateRange marks sources whose search API accepts a
	// publication date window. Others ignore date options.
	SupportsDateRange bool `json:"supports_date_range,omitempty" yaml:"supports_date_range,omitempty"`
}

// Catalog lists the available information sources.
type Catalog interface {
	List(ctx context.Context) ([]Source, error)
}

// StaticCatalog serves a fixed in-memory source list.
type StaticCatalog struct {
	sources []Source
}

// NewStaticCatalog creates a catalog over the given sources.
func NewStaticCatalog(sources []Source) *StaticCatalog {
	return &StaticCatalog{sources: sources}
}

// DefaultCatalog returns the built-in source list used when no catalog
// file is configured.
func DefaultCatalog() *StaticCatalog {
	return NewStaticCatalog([]Source{
		{ID: "pubmed", Name: "PubMed", SupportsDateRange: true},
		{ID: "arxiv", Name: "arXiv", SupportsDateRange: true},
		{ID: "semantic-scholar", Name: "Semantic Scholar", SupportsDateRange: true},
		{ID: "news-api", Name: "News API"},
		{ID: "hacker-news", Name: "Hacker News"},
	})
}

// List returns the catalog's sources.
func (c *StaticCatalog) List(_ context.Context) ([]Source, error) {
	out := make([]Source, len(c.sources))
	copy(out, c.sources)
	return out, nil
}

// fileCatalog is the structure of a catalog YAML file.
type fileCatalog struct {
	Sources []Source `yaml:"sources"`
}

// LoadFile reads a source catalog from a YAML file.
func LoadFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if len(fc.Sources) == 0 {
		return nil, fmt.Errorf("catalog file %s defines no sources", path)
	}
	seen := make(map[string]bool, len(fc.Sources))
	for i, s := range fc.Sources {
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("catalog sources[%d]: source_id required", i)
		}
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("catalog sources[%d]: name required", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("catalog sources[%d]: duplicate source_id %q", i, s.ID)
		}
		seen[s.ID] = true
	}

	return NewStaticCatalog(fc.Sources), nil
}

// Index builds a lookup map from a source list.
func Index(sources []Source) map[string]Source {
	idx := make(map[string]Source, len(sources))
	for _, s := range sources {
		idx[s.ID] = s
	}
	return idx
}
