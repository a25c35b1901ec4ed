package mode

// Mode is the search strategy.
type Mode string

// Search mode constants.
const (
	// Hybrid combines keyword and semantic scoring.
	Hybrid Mode = "hybrid"
	// Keyword uses term-statistics (BM25) scoring only.
	Keyword Mode = "keyword"
	// Semantic uses vector similarity only.
	Semantic Mode = "semantic"
)

// IsValid checks whether the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Keyword || m == Semantic
}
