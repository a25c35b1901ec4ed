package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/docdex-io/docdex/internal/db"
)

// ListIndices returns all index names known to the backend, sorted.
func (s *Store) ListIndices(ctx context.Context) ([]string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := opensearchapi.CatIndicesRequest{
		Format: "json",
		H:      []string{"index"},
	}.Do(ctx, s.client)
	if err != nil {
		return nil, classify(db.OpCatIndices, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, responseError(db.OpCatIndices, res)
	}

	var rows []struct {
		Index string `json:"index"`
	}
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, &db.Error{Op: db.OpCatIndices, Err: fmt.Errorf("decode response: %w", err)}
	}

	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Index)
	}
	sort.Strings(names)
	return names, nil
}

// GetMapping retrieves the declared field mappings for an index.
// Returns db.ErrIndexNotFound when the index does not exist.
func (s *Store) GetMapping(ctx context.Context, index string) (map[string]db.FieldMapping, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := opensearchapi.IndicesGetMappingRequest{
		Index: []string{index},
	}.Do(ctx, s.client)
	if err != nil {
		return nil, classify(db.OpGetMapping, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, responseError(db.OpGetMapping, res)
	}

	var raw map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Type      string `json:"type"`
				Dimension int    `json:"dimension"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, &db.Error{Op: db.OpGetMapping, Err: fmt.Errorf("decode response: %w", err)}
	}

	entry, ok := raw[index]
	if !ok {
		// Index resolved through an alias: take the single entry.
		for _, v := range raw {
			entry = v
			break
		}
		if len(raw) == 0 {
			return nil, &db.Error{Op: db.OpGetMapping, Err: db.ErrIndexNotFound}
		}
	}

	fields := make(map[string]db.FieldMapping, len(entry.Mappings.Properties))
	for name, prop := range entry.Mappings.Properties {
		fields[name] = db.FieldMapping{Type: prop.Type, Dimension: prop.Dimension}
	}
	return fields, nil
}

// CreateIndex creates an index with the given settings and mappings body.
func (s *Store) CreateIndex(ctx context.Context, index string, body []byte) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := opensearchapi.IndicesCreateRequest{
		Index: index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return classify(db.OpCreateIndex, err)
	}
	defer closeBody(res)

	if res.IsError() {
		// A 400 is only the already-exists race when the backend says so;
		// a malformed index body comes back 400 as well.
		if res.StatusCode == http.StatusBadRequest {
			body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
			if strings.Contains(string(body), "resource_already_exists_exception") {
				return &db.Error{Op: db.OpCreateIndex, Err: db.ErrIndexExists}
			}
			return &db.Error{Op: db.OpCreateIndex, Err: fmt.Errorf("status %d: %s", res.StatusCode, string(body))}
		}
		return responseError(db.OpCreateIndex, res)
	}
	return nil
}

// IndexExists reports whether an index exists.
func (s *Store) IndexExists(ctx context.Context, index string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := opensearchapi.IndicesExistsRequest{
		Index: []string{index},
	}.Do(ctx, s.client)
	if err != nil {
		return false, classify(db.OpIndexExists, err)
	}
	defer closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, responseError(db.OpIndexExists, res)
	}
}

// DeleteByField removes all documents whose field exactly matches value.
func (s *Store) DeleteByField(ctx context.Context, index, field, value string) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"term": map[string]any{field: value},
		},
	})
	if err != nil {
		return 0, &db.Error{Op: db.OpDeleteByQuery, Err: err}
	}

	res, err := opensearchapi.DeleteByQueryRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return 0, classify(db.OpDeleteByQuery, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return 0, responseError(db.OpDeleteByQuery, res)
	}

	var out struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, &db.Error{Op: db.OpDeleteByQuery, Err: fmt.Errorf("decode response: %w", err)}
	}
	return out.Deleted, nil
}

// isIndexNotFound checks an error body for the backend's index-missing marker.
func isIndexNotFound(body []byte) bool {
	return strings.Contains(string(body), "index_not_found_exception")
}
