package result

// Hit is a raw sub-query hit: one chunk as returned by the keyword or semantic
// sub-query, with the engine's own score on its own scale. Hits from different
// sub-queries are not comparable until normalized.
type Hit struct {
	ChunkID      string
	Score        float64
	Text         string
	DocumentName string
}
