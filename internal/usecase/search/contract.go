package search

import (
	"context"

	"github.com/docdex-io/docdex/internal/domain"
	domidx "github.com/docdex-io/docdex/internal/domain/index"
	"github.com/docdex-io/docdex/internal/domain/search/result"
)

// Repository defines the sub-query contract for search operations. Each method
// returns raw engine-scored hits in engine order.
type Repository interface {
	Keyword(
		ctx context.Context, index, textField, query string,
		topK int, excludeField string,
	) ([]result.Hit, error)

	Semantic(
		ctx context.Context, index, vectorField string, vector []float32,
		topK int, textField string,
	) ([]result.Hit, error)
}

// Inspector reads index field descriptors for selection validation.
type Inspector interface {
	Inspect(ctx context.Context, index string) (domidx.Descriptor, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
