package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/docdex-io/docdex/internal/db"
)

// SearchMatch issues a keyword (BM25) sub-query. Scoring is delegated to the
// engine; hits come back in engine order with raw scores.
func (s *Store) SearchMatch(ctx context.Context, q *db.MatchQuery) (*db.SearchResult, error) {
	body := map[string]any{
		"size": q.TopK,
		"query": map[string]any{
			"match": map[string]any{
				q.Field: map[string]any{"query": q.Query},
			},
		},
	}
	if len(q.ExcludeFields) > 0 {
		body["_source"] = map[string]any{"excludes": q.ExcludeFields}
	}
	return s.search(ctx, q.Index, body)
}

// SearchKNN issues a vector-similarity sub-query against a dense-vector field.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	body := map[string]any{
		"size": q.K,
		"query": map[string]any{
			"knn": map[string]any{
				q.Field: map[string]any{
					"vector": q.Vector,
					"k":      q.K,
				},
			},
		},
	}
	if len(q.ExcludeFields) > 0 {
		body["_source"] = map[string]any{"excludes": q.ExcludeFields}
	}
	return s.search(ctx, q.Index, body)
}

func (s *Store) search(ctx context.Context, index string, body map[string]any) (*db.SearchResult, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(payload),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, classify(db.OpSearch, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, responseError(db.OpSearch, res)
	}

	var sr struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string         `json:"_id"`
				Score  float64        `json:"_score"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("decode response: %w", err)}
	}

	out := &db.SearchResult{Total: sr.Hits.Total.Value}
	for _, h := range sr.Hits.Hits {
		out.Hits = append(out.Hits, db.Hit{ID: h.ID, Score: h.Score, Source: h.Source})
	}
	return out, nil
}
