// Package db defines the storage facade over the search backend. Consumers
// depend on the narrow sub-interfaces; the facade exists for the composition
// root only.
package db

import (
	"context"
	"time"
)

// Store is the backend facade combining all sub-interfaces.
type Store interface {
	Pinger
	Cataloger
	MappingReader
	IndexManager
	Searcher
	BulkIndexer
	Deleter
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cataloger lists available indices.
type Cataloger interface {
	ListIndices(ctx context.Context) ([]string, error)
}

// FieldMapping is the raw declared mapping of one field.
type FieldMapping struct {
	Type      string
	Dimension int
}

// MappingReader retrieves index mapping metadata.
type MappingReader interface {
	GetMapping(ctx context.Context, index string) (map[string]FieldMapping, error)
}

// IndexManager provides index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, index string, body []byte) error
	IndexExists(ctx context.Context, index string) (bool, error)
}

// MatchQuery is a keyword (term-statistics) sub-query.
type MatchQuery struct {
	Index         string
	Field         string
	Query         string
	TopK          int
	ExcludeFields []string
}

// KNNQuery is a vector-similarity sub-query.
type KNNQuery struct {
	Index         string
	Field         string
	Vector        []float32
	K             int
	ExcludeFields []string
}

// Hit is one raw search hit.
type Hit struct {
	ID     string
	Score  float64
	Source map[string]any
}

// SearchResult holds raw hits in backend-returned order.
type SearchResult struct {
	Total int
	Hits  []Hit
}

// Searcher issues read queries against an index.
type Searcher interface {
	SearchMatch(ctx context.Context, q *MatchQuery) (*SearchResult, error)
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// BulkItem is one document for bulk insertion.
type BulkItem struct {
	ID  string
	Doc []byte
}

// BulkItemError records a per-item bulk failure.
type BulkItemError struct {
	ID     string
	Status int
	Reason string
}

// BulkResult reports per-item bulk outcomes.
type BulkResult struct {
	Succeeded int
	Failed    []BulkItemError
}

// BulkIndexer writes documents in bulk. Item failures are reported in the
// result, not as an error; the error return covers transport-level failure only.
type BulkIndexer interface {
	BulkIndex(ctx context.Context, index string, items []BulkItem) (*BulkResult, error)
}

// Deleter removes documents matching an exact field value. Returns the number
// of deleted documents.
type Deleter interface {
	DeleteByField(ctx context.Context, index, field, value string) (int, error)
}
