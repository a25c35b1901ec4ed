// Package document persists chunk records in the backend index and owns the
// index lifecycle for the default chunk schema.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/docdex-io/docdex/internal/db"
	"github.com/docdex-io/docdex/internal/domain"
	"github.com/docdex-io/docdex/internal/domain/chunk"
	"github.com/docdex-io/docdex/internal/domain/ingest"
)

// Canonical source field names for chunk records.
const (
	FieldText         = "text"
	FieldEmbedding    = "embedding"
	FieldDocumentID   = "document_id"
	FieldDocumentName = "document_name"
	FieldOrdinal      = "ordinal"
	FieldPage         = "page"
	FieldIngestedAt   = "ingested_at"
)

// retryInterval is the backoff base for the single chunk-write retry.
const retryInterval = 500 * time.Millisecond

// store is the consumer interface for chunk persistence (ISP).
type store interface {
	BulkIndex(ctx context.Context, index string, items []db.BulkItem) (*db.BulkResult, error)
	DeleteByField(ctx context.Context, index, field, value string) (int, error)
	CreateIndex(ctx context.Context, index string, body []byte) error
	IndexExists(ctx context.Context, index string) (bool, error)
}

// Repo writes chunk records to the backend.
type Repo struct {
	store        store
	embeddingDim int
	logger       *zap.Logger
}

// New creates a document repository.
func New(s store, embeddingDim int, logger *zap.Logger) *Repo {
	return &Repo{store: s, embeddingDim: embeddingDim, logger: logger}
}

// chunkRecord is the indexed JSON shape of one chunk.
type chunkRecord struct {
	Text         string    `json:"text"`
	Embedding    []float32 `json:"embedding"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	Ordinal      int       `json:"ordinal"`
	Page         int       `json:"page"`
	IngestedAt   time.Time `json:"ingested_at"`
}

// WriteChunks bulk-writes embedded chunks in ordinal order. Items that fail
// are retried once with backoff; persistent failures are reported per chunk,
// not raised. The error return covers transport failure and the fatal case of
// a vector with the wrong dimension.
func (r *Repo) WriteChunks(
	ctx context.Context, index string, chunks []chunk.Chunk,
) ([]ingest.ChunkFailure, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	items := make([]db.BulkItem, 0, len(chunks))
	byID := make(map[string]*chunk.Chunk, len(chunks))

	for i := range chunks {
		c := &chunks[i]
		if len(c.Vector()) != r.embeddingDim {
			return nil, fmt.Errorf(
				"chunk %s: vector length %d, want %d: %w",
				c.ID(), len(c.Vector()), r.embeddingDim, domain.ErrVectorDimMismatch,
			)
		}

		doc, err := json.Marshal(chunkRecord{
			Text:         c.Text(),
			Embedding:    c.Vector(),
			DocumentID:   c.DocumentID(),
			DocumentName: c.Metadata().DocumentName,
			Ordinal:      c.Ordinal(),
			Page:         c.Metadata().Page,
			IngestedAt:   c.Metadata().IngestedAt.UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("marshal chunk %s: %w", c.ID(), err)
		}

		items = append(items, db.BulkItem{ID: c.ID(), Doc: doc})
		byID[c.ID()] = c
	}

	res, err := r.bulkWithRetry(ctx, index, items)
	if err != nil {
		return nil, mapStoreErr(index, err)
	}

	var failures []ingest.ChunkFailure
	for _, f := range res.Failed {
		c, ok := byID[f.ID]
		if !ok {
			continue
		}
		r.logger.Warn("chunk write failed",
			zap.String("index", index),
			zap.String("chunk_id", f.ID),
			zap.Int("status", f.Status),
			zap.String("reason", f.Reason),
		)
		failures = append(failures, ingest.ChunkFailure{
			Ordinal: c.Ordinal(),
			Stage:   ingest.StageIndexed,
			Err:     fmt.Errorf("write chunk %s: %s", f.ID, f.Reason),
		})
	}
	return failures, nil
}

// bulkWithRetry issues the bulk write, then retries only the failed items one
// more time after a backoff interval.
func (r *Repo) bulkWithRetry(
	ctx context.Context, index string, items []db.BulkItem,
) (*db.BulkResult, error) {
	var res *db.BulkResult

	op := func() error {
		var err error
		res, err = r.store.BulkIndex(ctx, index, items)
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), 1), ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}

	if len(res.Failed) == 0 {
		return res, nil
	}

	// One more attempt for the failed subset only.
	retryItems := make([]db.BulkItem, 0, len(res.Failed))
	want := make(map[string]bool, len(res.Failed))
	for _, f := range res.Failed {
		want[f.ID] = true
	}
	for _, item := range items {
		if want[item.ID] {
			retryItems = append(retryItems, item)
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryInterval):
	}

	retryRes, err := r.store.BulkIndex(ctx, index, retryItems)
	if err != nil {
		// Keep the first-pass outcome; the retry transport failure leaves
		// those items failed.
		return res, nil
	}

	merged := &db.BulkResult{
		Succeeded: res.Succeeded + retryRes.Succeeded,
		Failed:    retryRes.Failed,
	}
	return merged, nil
}

// DeleteByName removes every chunk of the named document. Returns the number
// of deleted chunks.
func (r *Repo) DeleteByName(ctx context.Context, index, documentName string) (int, error) {
	n, err := r.store.DeleteByField(ctx, index, FieldDocumentName, documentName)
	if err != nil {
		return 0, mapStoreErr(index, err)
	}
	return n, nil
}

// EnsureIndex creates the default chunk index with a knn_vector mapping sized
// to the configured embedding dimension, if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context, index string) error {
	exists, err := r.store.IndexExists(ctx, index)
	if err != nil {
		return mapStoreErr(index, err)
	}
	if exists {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				FieldText:         map[string]any{"type": "text"},
				FieldEmbedding:    map[string]any{"type": "knn_vector", "dimension": r.embeddingDim},
				FieldDocumentID:   map[string]any{"type": "keyword"},
				FieldDocumentName: map[string]any{"type": "keyword"},
				FieldOrdinal:      map[string]any{"type": "integer"},
				FieldPage:         map[string]any{"type": "integer"},
				FieldIngestedAt:   map[string]any{"type": "date"},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal index body: %w", err)
	}

	if err := r.store.CreateIndex(ctx, index, body); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return mapStoreErr(index, err)
	}
	r.logger.Info("created index", zap.String("index", index), zap.Int("dimension", r.embeddingDim))
	return nil
}

func mapStoreErr(index string, err error) error {
	switch {
	case errors.Is(err, db.ErrIndexNotFound):
		return fmt.Errorf("index %q: %w", index, domain.ErrIndexNotFound)
	case errors.Is(err, db.ErrTimeout):
		return fmt.Errorf("index %q: %w: %v", index, domain.ErrBackendTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("index %q: %w: %v", index, domain.ErrBackendUnavailable, err)
	}
}
