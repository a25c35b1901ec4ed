// Package search implements the hybrid query engine: keyword and semantic
// sub-queries run against the backend, scores are normalized per list, and a
// weighted combination produces one ranked result set.
package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/docdex-io/docdex/internal/domain"
	domidx "github.com/docdex-io/docdex/internal/domain/index"
	"github.com/docdex-io/docdex/internal/domain/index/field"
	"github.com/docdex-io/docdex/internal/domain/search/mode"
	"github.com/docdex-io/docdex/internal/domain/search/request"
	"github.com/docdex-io/docdex/internal/domain/search/result"
)

// Service handles chunk search across keyword, semantic, and hybrid modes.
type Service struct {
	repo      Repository
	inspector Inspector
	embed     Embedder
}

// New creates a search service. embed is the query-side embedder.
func New(repo Repository, inspector Inspector, embed Embedder) *Service {
	return &Service{repo: repo, inspector: inspector, embed: embed}
}

// Search executes a search in the requested mode. Field selections are
// validated against the index mapping before any sub-query is issued, so a bad
// selection fails fast instead of surfacing as a backend query error.
//
// A zero weight disables its sub-query entirely: hybrid with weights (1,0) is
// keyword search, (0,1) is semantic search, both in behavior and in cost.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	desc, err := s.inspector.Inspect(ctx, req.Index())
	if err != nil {
		return nil, fmt.Errorf("inspect index: %w", err)
	}

	m := effectiveMode(req)

	if err := validateSelection(desc, req, m); err != nil {
		return nil, err
	}

	textField := req.TextField()
	if textField == "" {
		textField = defaultTextField(desc)
	}

	switch m {
	case mode.Keyword:
		hits, err := s.repo.Keyword(ctx, req.Index(), textField, req.Query(), req.TopK(), req.VectorField())
		if err != nil {
			return nil, err
		}
		return singleList(hits, true, req.TopK()), nil

	case mode.Semantic:
		emb, err := s.embed.Embed(ctx, req.Query())
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		hits, err := s.repo.Semantic(ctx, req.Index(), req.VectorField(), emb.Embedding, req.TopK(), textField)
		if err != nil {
			return nil, err
		}
		return singleList(hits, false, req.TopK()), nil

	case mode.Hybrid:
		return s.searchHybrid(ctx, req, textField)

	default:
		return nil, fmt.Errorf("unsupported search mode %q: %w", m, domain.ErrValidation)
	}
}

// effectiveMode collapses hybrid requests with a zero weight into the single
// remaining mode.
func effectiveMode(req *request.Request) mode.Mode {
	if req.Mode() != mode.Hybrid {
		return req.Mode()
	}
	w := req.Weights()
	switch {
	case w.Semantic == 0:
		return mode.Keyword
	case w.Keyword == 0:
		return mode.Semantic
	default:
		return mode.Hybrid
	}
}

// searchHybrid runs both sub-queries concurrently and fuses the result lists.
func (s *Service) searchHybrid(
	ctx context.Context, req *request.Request, textField string,
) ([]result.Result, error) {
	var kwHits, semHits []result.Hit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := s.repo.Keyword(gctx, req.Index(), textField, req.Query(), req.TopK(), req.VectorField())
		if err != nil {
			return fmt.Errorf("keyword sub-query: %w", err)
		}
		kwHits = hits
		return nil
	})
	g.Go(func() error {
		emb, err := s.embed.Embed(gctx, req.Query())
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		hits, err := s.repo.Semantic(gctx, req.Index(), req.VectorField(), emb.Embedding, req.TopK(), textField)
		if err != nil {
			return fmt.Errorf("semantic sub-query: %w", err)
		}
		semHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := fuse(kwHits, semHits, req.Weights())
	if len(results) > req.TopK() {
		results = results[:req.TopK()]
	}
	return results, nil
}

// validateSelection checks the selected fields against the classified mapping.
// A selected field must exist; a field classified into a contradicting role is
// rejected, while an Unknown role is allowed (classification is advisory).
func validateSelection(desc domidx.Descriptor, req *request.Request, m mode.Mode) error {
	// Keyword and hybrid requests always carry a text field; semantic requests
	// may name one for result payloads.
	if req.TextField() != "" {
		fd, ok := desc.FieldByName(req.TextField())
		if !ok {
			return fmt.Errorf("text field %q not found in index %q: %w",
				req.TextField(), req.Index(), domain.ErrInvalidFieldSelection)
		}
		if fd.Role() != field.Text && fd.Role() != field.Unknown {
			return fmt.Errorf("field %q has role %s, not usable for keyword search: %w",
				req.TextField(), fd.Role(), domain.ErrInvalidFieldSelection)
		}
	}

	if m == mode.Semantic || m == mode.Hybrid {
		fd, ok := desc.FieldByName(req.VectorField())
		if !ok {
			return fmt.Errorf("vector field %q not found in index %q: %w",
				req.VectorField(), req.Index(), domain.ErrInvalidFieldSelection)
		}
		if fd.Role() != field.Vector && fd.Role() != field.Unknown {
			return fmt.Errorf("field %q has role %s, not usable for semantic search: %w",
				req.VectorField(), fd.Role(), domain.ErrInvalidFieldSelection)
		}
	}
	return nil
}

// defaultTextField picks the first text-role field from the mapping. Used when
// a semantic-only request does not name a text field for result payloads.
func defaultTextField(desc domidx.Descriptor) string {
	if names := desc.FieldsByRole(field.Text); len(names) > 0 {
		return names[0]
	}
	return ""
}
