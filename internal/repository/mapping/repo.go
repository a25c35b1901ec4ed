// Package mapping implements the field mapping inspector: it reads an index's
// declared mapping from the backend and classifies every field into a role.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/docdex-io/docdex/internal/db"
	"github.com/docdex-io/docdex/internal/domain"
	domidx "github.com/docdex-io/docdex/internal/domain/index"
	"github.com/docdex-io/docdex/internal/domain/index/field"
)

// store is the consumer interface for mapping retrieval (ISP).
type store interface {
	GetMapping(ctx context.Context, index string) (map[string]db.FieldMapping, error)
}

// Repo implements the inspector over the backend store.
type Repo struct {
	store        store
	embeddingDim int
}

// New creates a mapping repository. embeddingDim is the configured embedding
// dimension every vector field must match.
func New(s store, embeddingDim int) *Repo {
	return &Repo{store: s, embeddingDim: embeddingDim}
}

// Inspect reads the mapping of an index and returns a classified descriptor.
// The descriptor is a snapshot: the live mapping may change after this call.
// A vector field whose dimension differs from the configured embedding
// dimension is an error, never silently accepted.
func (r *Repo) Inspect(ctx context.Context, indexName string) (domidx.Descriptor, error) {
	raw, err := r.store.GetMapping(ctx, indexName)
	if err != nil {
		return domidx.Descriptor{}, mapStoreErr(indexName, err)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]field.Descriptor, 0, len(names))
	for _, name := range names {
		fm := raw[name]
		role := field.Classify(fm.Type, fm.Dimension)

		if role == field.Vector && fm.Dimension != r.embeddingDim {
			return domidx.Descriptor{}, fmt.Errorf(
				"index %q field %q: declared dimension %d does not match configured embedding dimension %d: %w",
				indexName, name, fm.Dimension, r.embeddingDim, domain.ErrVectorDimMismatch,
			)
		}

		dim := 0
		if role == field.Vector {
			dim = fm.Dimension
		}
		fd, err := field.New(name, fm.Type, role, dim)
		if err != nil {
			return domidx.Descriptor{}, fmt.Errorf("index %q: %w", indexName, err)
		}
		fields = append(fields, fd)
	}

	return domidx.New(indexName, fields), nil
}

// mapStoreErr translates store errors into the domain taxonomy. Timeouts stay
// distinct; other retrieval failures surface as mapping-unavailable, which is
// not the same as an index with no fields.
func mapStoreErr(indexName string, err error) error {
	switch {
	case errors.Is(err, db.ErrIndexNotFound):
		return fmt.Errorf("index %q: %w", indexName, domain.ErrIndexNotFound)
	case errors.Is(err, db.ErrTimeout):
		return fmt.Errorf("get mapping %q: %w: %v", indexName, domain.ErrBackendTimeout, err)
	default:
		return fmt.Errorf("get mapping %q: %w: %v", indexName, domain.ErrMappingUnavailable, err)
	}
}
