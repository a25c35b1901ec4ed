// Package search executes the keyword and semantic sub-queries against the
// backend and parses raw hits. Scoring is delegated to the engine; nothing
// here normalizes or combines scores.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/docdex-io/docdex/internal/db"
	"github.com/docdex-io/docdex/internal/domain"
	"github.com/docdex-io/docdex/internal/domain/search/result"
)

// Source field names written by the ingestion pipeline.
const (
	sourceDocumentName = "document_name"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchMatch(ctx context.Context, q *db.MatchQuery) (*db.SearchResult, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements the search sub-query contract over the backend store.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Keyword runs a term-statistics sub-query on textField. excludeField (the
// vector field) is stripped from returned sources to keep payloads small.
func (r *Repo) Keyword(
	ctx context.Context, index, textField, query string, topK int, excludeField string,
) ([]result.Hit, error) {
	q := &db.MatchQuery{
		Index: index,
		Field: textField,
		Query: query,
		TopK:  topK,
	}
	if excludeField != "" {
		q.ExcludeFields = []string{excludeField}
	}

	sr, err := r.store.SearchMatch(ctx, q)
	if err != nil {
		return nil, mapStoreErr("keyword", index, err)
	}
	return parseHits(sr, textField), nil
}

// Semantic runs a vector-similarity sub-query on vectorField. textField names
// the source field carrying the chunk text.
func (r *Repo) Semantic(
	ctx context.Context, index, vectorField string, vector []float32, topK int, textField string,
) ([]result.Hit, error) {
	q := &db.KNNQuery{
		Index:         index,
		Field:         vectorField,
		Vector:        vector,
		K:             topK,
		ExcludeFields: []string{vectorField},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, mapStoreErr("semantic", index, err)
	}
	return parseHits(sr, textField), nil
}

// parseHits converts backend hits preserving engine order. Text is passed
// through exactly as indexed.
func parseHits(sr *db.SearchResult, textField string) []result.Hit {
	if sr == nil || len(sr.Hits) == 0 {
		return nil
	}

	hits := make([]result.Hit, 0, len(sr.Hits))
	for _, h := range sr.Hits {
		text, _ := h.Source[textField].(string)
		docName, _ := h.Source[sourceDocumentName].(string)
		hits = append(hits, result.Hit{
			ChunkID:      h.ID,
			Score:        h.Score,
			Text:         text,
			DocumentName: docName,
		})
	}
	return hits
}

func mapStoreErr(sub, index string, err error) error {
	switch {
	case errors.Is(err, db.ErrIndexNotFound):
		return fmt.Errorf("%s search: index %q: %w", sub, index, domain.ErrIndexNotFound)
	case errors.Is(err, db.ErrTimeout):
		return fmt.Errorf("%s search %q: %w: %v", sub, index, domain.ErrBackendTimeout, err)
	default:
		return fmt.Errorf("%s search %q: %w: %v", sub, index, domain.ErrBackendUnavailable, err)
	}
}
