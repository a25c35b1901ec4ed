package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/docdex-io/docdex/internal/db"
)

// BulkIndex writes documents in one bulk request. Per-item failures land in
// the result; the error return covers transport-level failure only.
func (s *Store) BulkIndex(ctx context.Context, index string, items []db.BulkItem) (*db.BulkResult, error) {
	if len(items) == 0 {
		return &db.BulkResult{}, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var buf bytes.Buffer
	for _, item := range items {
		action, err := json.Marshal(map[string]any{
			"index": map[string]any{"_index": index, "_id": item.ID},
		})
		if err != nil {
			return nil, &db.Error{Op: db.OpBulk, Err: err}
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(item.Doc)
		buf.WriteByte('\n')
	}

	res, err := opensearchapi.BulkRequest{
		Index:   index,
		Body:    &buf,
		Refresh: "true",
	}.Do(ctx, s.client)
	if err != nil {
		return nil, classify(db.OpBulk, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, responseError(db.OpBulk, res)
	}

	var br struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return nil, &db.Error{Op: db.OpBulk, Err: fmt.Errorf("decode response: %w", err)}
	}

	out := &db.BulkResult{}
	for _, item := range br.Items {
		// Each bulk item is keyed by its action ("index").
		for _, entry := range item {
			if entry.Error != nil {
				out.Failed = append(out.Failed, db.BulkItemError{
					ID:     entry.ID,
					Status: entry.Status,
					Reason: fmt.Sprintf("%s: %s", entry.Error.Type, entry.Error.Reason),
				})
			} else {
				out.Succeeded++
			}
		}
	}
	return out, nil
}
