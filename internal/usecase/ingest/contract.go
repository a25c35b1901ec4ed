package ingest

import (
	"context"

	"github.com/docdex-io/docdex/internal/domain"
	"github.com/docdex-io/docdex/internal/domain/chunk"
	"github.com/docdex-io/docdex/internal/domain/ingest"
	"github.com/docdex-io/docdex/internal/extract"
)

// Extractor turns a raw file into text pages.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (extract.Document, error)
}

// Embedder vectorizes chunk batches. The document-side embedder.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Repository persists chunks and owns the chunk index lifecycle.
type Repository interface {
	WriteChunks(ctx context.Context, index string, chunks []chunk.Chunk) ([]ingest.ChunkFailure, error)
	DeleteByName(ctx context.Context, index, documentName string) (int, error)
	EnsureIndex(ctx context.Context, index string) error
}
