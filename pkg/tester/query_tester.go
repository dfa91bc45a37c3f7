// Package tester runs query and semantic filter tests for a channel.
// Both testers are asynchronous collaborators of the workflow state
// machine: they perform the network work, and the caller feeds only
// their results back in as events.
package tester

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/zen-systems/streamforge/pkg/adapter"
	"github.com/zen-systems/streamforge/pkg/catalog"
	"github.com/zen-systems/streamforge/pkg/workflow"
)

// TestOptions tunes a single query test run.
type TestOptions struct {
	// MaxArticles caps the number of sample articles requested.
	MaxArticles int

	// DateRange restricts the publication window. Honored only by
	// sources that support date filtering; ignored otherwise.
	DateRange *workflow.DateRange
}

// QueryTester tests a query expression against an information source.
type QueryTester interface {
	Test(ctx context.Context, src catalog.Source, expression string, opts TestOptions) (workflow.QueryTestResult, error)
}

// searchRequest is the JSON body sent to a source search endpoint.
type searchRequest struct {
	Query       string              `json:"query"`
	MaxArticles int                 `json:"max_articles,omitempty"`
	DateRange   *workflow.DateRange `json:"date_range,omitempty"`
}

// searchResponse is the JSON body a source search endpoint returns.
type searchResponse struct {
	TotalCount int                `json:"total_count"`
	Articles   []workflow.Article `json:"articles"`
	Error      *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// HTTPQueryTester tests queries against per-source HTTP search
// endpoints.
type HTTPQueryTester struct {
	endpoints  map[string]string
	httpClient *http.Client
}

// NewHTTPQueryTester creates a query tester over a source_id to endpoint
// URL map.
func NewHTTPQueryTester(endpoints map[string]string) (*HTTPQueryTester, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one source endpoint is required")
	}
	for id, raw := range endpoints {
		if _, err := url.Parse(raw); err != nil || raw == "" {
			return nil, fmt.Errorf("source %q endpoint %q is not a valid URL", id, raw)
		}
	}
	return &HTTPQueryTester{
		endpoints:  endpoints,
		httpClient: &http.Client{},
	}, nil
}

// Test runs the expression against the source's search endpoint. An
// unsuccessful search (endpoint-reported error) is a completed test with
// Success=false; only transport-level failures return a Go error.
func (t *HTTPQueryTester) Test(ctx context.Context, src catalog.Source, expression string, opts TestOptions) (workflow.QueryTestResult, error) {
	endpoint, ok := t.endpoints[src.ID]
	if !ok {
		return workflow.QueryTestResult{}, fmt.Errorf("no search endpoint configured for source %q", src.ID)
	}
	if expression == "" {
		return workflow.QueryTestResult{}, fmt.Errorf("query expression is empty")
	}

	reqBody := searchRequest{
		Query:       expression,
		MaxArticles: opts.MaxArticles,
	}
	if src.SupportsDateRange {
		reqBody.DateRange = opts.DateRange
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return workflow.QueryTestResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return workflow.QueryTestResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return workflow.QueryTestResult{}, &adapter.AdapterError{Temporary: true, Err: fmt.Errorf("search request to %s failed: %w", src.ID, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return workflow.QueryTestResult{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return workflow.QueryTestResult{}, &adapter.AdapterError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("source %s returned status %d: %s", src.ID, resp.StatusCode, string(body)),
		}
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return workflow.QueryTestResult{}, fmt.Errorf("failed to parse %s response: %w", src.ID, err)
	}

	if searchResp.Error != nil {
		return workflow.QueryTestResult{
			Success:      false,
			ErrorMessage: searchResp.Error.Message,
		}, nil
	}

	return workflow.QueryTestResult{
		Success:        true,
		ArticleCount:   searchResp.TotalCount,
		SampleArticles: searchResp.Articles,
	}, nil
}
