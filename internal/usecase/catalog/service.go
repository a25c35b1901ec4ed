// Package catalog implements the index catalog: listing searchable indices and
// inspecting their field mappings.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	domidx "github.com/docdex-io/docdex/internal/domain/index"
)

// Service handles index catalog operations.
type Service struct {
	lister    Lister
	inspector Inspector
	ensurer   IndexEnsurer
	logger    *zap.Logger
}

// New creates a catalog service.
func New(lister Lister, inspector Inspector, ensurer IndexEnsurer, logger *zap.Logger) *Service {
	return &Service{lister: lister, inspector: inspector, ensurer: ensurer, logger: logger}
}

// List returns user-searchable index names in sorted order. System indices
// (dot-prefixed) are filtered out.
func (s *Service) List(ctx context.Context) ([]string, error) {
	names, err := s.lister.ListIndices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, ".") {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// Inspect returns the classified field descriptor of an index.
func (s *Service) Inspect(ctx context.Context, index string) (domidx.Descriptor, error) {
	return s.inspector.Inspect(ctx, index)
}

// EnsureIndex creates the named index with the default chunk schema if it does
// not exist. Idempotent.
func (s *Service) EnsureIndex(ctx context.Context, index string) error {
	if err := s.ensurer.EnsureIndex(ctx, index); err != nil {
		return err
	}
	s.logger.Debug("index ensured", zap.String("index", index))
	return nil
}
