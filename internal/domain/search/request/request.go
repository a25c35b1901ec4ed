// Package request holds the validated hybrid search query. A request is
// transient: constructed per call, never persisted.
package request

import (
	"fmt"

	"github.com/docdex-io/docdex/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultTopK    = 5
	MaxTopK        = 100
)

// Weights are the relative weights of the keyword and semantic components.
// Their sum is not required to equal 1; the combination normalizes by the sum
// of whatever weights apply. A zero weight disables that component's sub-query.
type Weights struct {
	Keyword  float64
	Semantic float64
}

// Request is a validated hybrid search query.
type Request struct {
	query       string
	index       string
	textField   string
	vectorField string
	searchMode  mode.Mode
	topK        int
	weights     Weights
}

// New validates and normalizes search parameters.
// Defaults: mode=hybrid, topK=5, weights=(1,1).
func New(
	query, index, textField, vectorField string,
	m mode.Mode,
	topK int,
	weights Weights,
) (Request, error) {
	if query == "" {
		return Request{}, fmt.Errorf("query is required")
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if index == "" {
		return Request{}, fmt.Errorf("index is required")
	}
	if m == "" {
		m = mode.Hybrid
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("invalid search mode: %q", m)
	}
	if m == mode.Keyword || m == mode.Hybrid {
		if textField == "" {
			return Request{}, fmt.Errorf("text field is required for %s mode", m)
		}
	}
	if m == mode.Semantic || m == mode.Hybrid {
		if vectorField == "" {
			return Request{}, fmt.Errorf("vector field is required for %s mode", m)
		}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if weights.Keyword < 0 || weights.Semantic < 0 {
		return Request{}, fmt.Errorf("weights must be non-negative")
	}
	if weights.Keyword == 0 && weights.Semantic == 0 {
		weights = Weights{Keyword: 1, Semantic: 1}
	}

	return Request{
		query:       query,
		index:       index,
		textField:   textField,
		vectorField: vectorField,
		searchMode:  m,
		topK:        topK,
		weights:     weights,
	}, nil
}

// Query returns the raw search query text.
func (r *Request) Query() string { return r.query }

// Index returns the target index name.
func (r *Request) Index() string { return r.index }

// TextField returns the selected keyword search field.
func (r *Request) TextField() string { return r.textField }

// VectorField returns the selected vector similarity field.
func (r *Request) VectorField() string { return r.vectorField }

// Mode returns the search strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// TopK returns the result size limit.
func (r *Request) TopK() int { return r.topK }

// Weights returns the component weights.
func (r *Request) Weights() Weights { return r.weights }
