package request

import (
	"strings"
	"testing"

	"github.com/docdex-io/docdex/internal/domain/search/mode"
)

func TestNew_Defaults(t *testing.T) {
	r, err := New("hello", "documents", "text", "embedding", "", 0, Weights{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Mode() != mode.Hybrid {
		t.Errorf("mode = %q, want hybrid", r.Mode())
	}
	if r.TopK() != DefaultTopK {
		t.Errorf("topK = %d, want %d", r.TopK(), DefaultTopK)
	}
	if w := r.Weights(); w.Keyword != 1 || w.Semantic != 1 {
		t.Errorf("weights = %+v, want (1,1)", w)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		index       string
		textField   string
		vectorField string
		mode        mode.Mode
		weights     Weights
	}{
		{"empty query", "", "documents", "text", "embedding", mode.Hybrid, Weights{1, 1}},
		{"query too long", strings.Repeat("x", MaxQueryLength+1), "documents", "text", "embedding", mode.Hybrid, Weights{1, 1}},
		{"empty index", "q", "", "text", "embedding", mode.Hybrid, Weights{1, 1}},
		{"invalid mode", "q", "documents", "text", "embedding", "fuzzy", Weights{1, 1}},
		{"keyword without text field", "q", "documents", "", "embedding", mode.Keyword, Weights{1, 1}},
		{"hybrid without text field", "q", "documents", "", "embedding", mode.Hybrid, Weights{1, 1}},
		{"semantic without vector field", "q", "documents", "text", "", mode.Semantic, Weights{1, 1}},
		{"hybrid without vector field", "q", "documents", "text", "", mode.Hybrid, Weights{1, 1}},
		{"negative weight", "q", "documents", "text", "embedding", mode.Hybrid, Weights{-1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.query, tt.index, tt.textField, tt.vectorField, tt.mode, 5, tt.weights)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNew_TopKClamped(t *testing.T) {
	r, err := New("q", "documents", "text", "embedding", mode.Hybrid, MaxTopK+50, Weights{1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TopK() != MaxTopK {
		t.Errorf("topK = %d, want %d", r.TopK(), MaxTopK)
	}
}

func TestNew_SemanticModeAllowsMissingTextField(t *testing.T) {
	r, err := New("q", "documents", "", "embedding", mode.Semantic, 5, Weights{1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TextField() != "" {
		t.Errorf("textField = %q, want empty", r.TextField())
	}
}
