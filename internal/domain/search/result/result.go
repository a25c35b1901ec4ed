// Package result holds the scored search hit. Component scores track presence
// separately from value: a chunk found by only one sub-query carries the other
// component as absent, not as zero.
package result

// Component is one sub-query's contribution to a combined score.
type Component struct {
	score   float64
	present bool
}

// NewComponent creates a present component with the given score.
func NewComponent(score float64) Component { return Component{score: score, present: true} }

// Score returns the component score (meaningless when not present).
func (c Component) Score() float64 { return c.score }

// Present reports whether the chunk appeared in this component's result list.
func (c Component) Present() bool { return c.present }

// Result is a single search hit with a combined, normalized relevance score.
type Result struct {
	chunkID      string
	documentName string
	score        float64
	keyword      Component
	semantic     Component
	text         string
}

// New creates a search result. Text is the indexed chunk text, passed through
// unmodified.
func New(
	chunkID, documentName string,
	score float64,
	keyword, semantic Component,
	text string,
) Result {
	return Result{
		chunkID:      chunkID,
		documentName: documentName,
		score:        score,
		keyword:      keyword,
		semantic:     semantic,
		text:         text,
	}
}

// ChunkID returns the matched chunk identifier.
func (r *Result) ChunkID() string { return r.chunkID }

// DocumentName returns the source document name for attribution.
func (r *Result) DocumentName() string { return r.documentName }

// Score returns the combined relevance score, normalized to [0,1].
func (r *Result) Score() float64 { return r.score }

// Keyword returns the keyword score component.
func (r *Result) Keyword() Component { return r.keyword }

// Semantic returns the semantic score component.
func (r *Result) Semantic() Component { return r.semantic }

// Text returns the indexed chunk text, unmodified.
func (r *Result) Text() string { return r.text }
