package sdk

// Field describes one classified index field.
type Field struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Role      string `json:"role"`
	Dimension int    `json:"dimension,omitempty"`
}

// IndexFields is the classified mapping of one index.
type IndexFields struct {
	Index  string  `json:"index"`
	Fields []Field `json:"fields"`
}

// SearchRequest are the parameters of a search call. Zero values fall back to
// server-side defaults.
type SearchRequest struct {
	Query          string   `json:"query"`
	Index          string   `json:"index,omitempty"`
	TextField      string   `json:"text_field,omitempty"`
	VectorField    string   `json:"vector_field,omitempty"`
	Mode           string   `json:"mode,omitempty"`
	TopK           int      `json:"top_k,omitempty"`
	KeywordWeight  *float64 `json:"keyword_weight,omitempty"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty"`
}

// ScoreComponent is one sub-query's contribution to a hit.
type ScoreComponent struct {
	Score   float64 `json:"score"`
	Present bool    `json:"present"`
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ChunkID      string          `json:"chunk_id"`
	DocumentName string          `json:"document_name"`
	Score        float64         `json:"score"`
	Keyword      *ScoreComponent `json:"keyword,omitempty"`
	Semantic     *ScoreComponent `json:"semantic,omitempty"`
	Text         string          `json:"text"`
}

// SearchResponse is the result list of a search call.
type SearchResponse struct {
	Items []SearchResult `json:"items"`
	Total int            `json:"total"`
}

// ChunkFailure reports one chunk the server could not index.
type ChunkFailure struct {
	Ordinal int    `json:"ordinal"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}

// IngestReport is the outcome of one ingestion run.
type IngestReport struct {
	DocumentID    string         `json:"document_id"`
	DocumentName  string         `json:"document_name"`
	Status        string         `json:"status"`
	TotalChunks   int            `json:"total_chunks"`
	IndexedChunks int            `json:"indexed_chunks"`
	Failures      []ChunkFailure `json:"failures,omitempty"`
}

// DeleteResult reports a document deletion.
type DeleteResult struct {
	DocumentName  string `json:"document_name"`
	DeletedChunks int    `json:"deleted_chunks"`
}

// Health is the aggregated service health.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
