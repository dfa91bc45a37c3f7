package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zen-systems/streamforge/pkg/catalog"
	"github.com/zen-systems/streamforge/pkg/stream"
)

// mockAdapter is a simple mock for testing.
type mockAdapter struct {
	response   string
	err        error
	lastPrompt string
}

func (m *mockAdapter) Complete(_ context.Context, _ string, prompt string) (string, error) {
	m.lastPrompt = prompt
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockAdapter) Name() string {
	return "mock"
}

func (m *mockAdapter) Models() []string {
	return []string{"mock-model"}
}

func testChannel() stream.Channel {
	return stream.Channel{
		ID:       "trials",
		Name:     "Trials",
		Focus:    "clinical trials",
		Keywords: []string{"phase ii", "immunotherapy"},
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name           string
		response       string
		wantExpression string
		wantReasoning  string
		wantErr        bool
	}{
		{
			name:           "plain JSON",
			response:       `{"query_expression": "cancer AND immunotherapy", "reasoning": "focus match"}`,
			wantExpression: "cancer AND immunotherapy",
			wantReasoning:  "focus match",
		},
		{
			name:           "fenced JSON",
			response:       "```json\n{\"query_expression\": \"cancer\", \"reasoning\": \"r\"}\n```",
			wantExpression: "cancer",
			wantReasoning:  "r",
		},
		{
			name:           "JSON wrapped in prose",
			response:       "Here is the query:\n{\"query_expression\": \"cancer\", \"reasoning\": \"r\"}\nHope that helps!",
			wantExpression: "cancer",
		},
		{
			name:     "empty expression",
			response: `{"query_expression": "  ", "reasoning": "r"}`,
			wantErr:  true,
		},
		{
			name:     "no JSON at all",
			response: "I cannot help with that.",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := New(&mockAdapter{response: tt.response}, "mock-model")
			if err != nil {
				t.Fatal(err)
			}

			gq, err := gen.Generate(context.Background(), testChannel(), catalog.Source{ID: "pubmed", Name: "PubMed"})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Generate() = %+v, want error", gq)
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate() error: %v", err)
			}
			if gq.Expression != tt.wantExpression {
				t.Errorf("Expression = %q, want %q", gq.Expression, tt.wantExpression)
			}
			if tt.wantReasoning != "" && gq.Reasoning != tt.wantReasoning {
				t.Errorf("Reasoning = %q, want %q", gq.Reasoning, tt.wantReasoning)
			}
		})
	}
}

func TestGeneratePromptContents(t *testing.T) {
	mock := &mockAdapter{response: `{"query_expression": "q", "reasoning": "r"}`}
	gen, err := New(mock, "", WithLogger(func(string, ...any) {}))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := gen.Generate(context.Background(), testChannel(), catalog.Source{ID: "pubmed", Name: "PubMed"}); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"Trials", "clinical trials", "immunotherapy, phase ii", "PubMed"} {
		if !strings.Contains(mock.lastPrompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, mock.lastPrompt)
		}
	}
}

func TestGenerateAdapterFailure(t *testing.T) {
	gen, err := New(&mockAdapter{err: errors.New("boom")}, "mock-model")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gen.Generate(context.Background(), testChannel(), catalog.Source{ID: "pubmed", Name: "PubMed"}); err == nil {
		t.Error("adapter failures must propagate")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, "m"); err == nil {
		t.Error("nil adapter must be rejected")
	}

	// Missing model falls back to the adapter's first listed model.
	gen, err := New(&mockAdapter{response: `{"query_expression": "q"}`}, "")
	if err != nil {
		t.Fatal(err)
	}
	if gen.model != "mock-model" {
		t.Errorf("model = %q, want adapter default", gen.model)
	}
}
