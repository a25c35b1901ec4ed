package catalog

import (
	"context"

	domidx "github.com/docdex-io/docdex/internal/domain/index"
)

// Lister enumerates indices available on the backend.
type Lister interface {
	ListIndices(ctx context.Context) ([]string, error)
}

// Inspector reads and classifies an index mapping.
type Inspector interface {
	Inspect(ctx context.Context, index string) (domidx.Descriptor, error)
}

// IndexEnsurer creates the default chunk index if missing.
type IndexEnsurer interface {
	EnsureIndex(ctx context.Context, index string) error
}
