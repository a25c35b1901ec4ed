package document

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/docdex-io/docdex/internal/db"
	"github.com/docdex-io/docdex/internal/domain"
	"github.com/docdex-io/docdex/internal/domain/chunk"
	"github.com/docdex-io/docdex/internal/domain/ingest"
)

// --- Mocks ---

type bulkCall struct {
	index string
	ids   []string
}

type mockStore struct {
	bulkResults []*db.BulkResult
	bulkErrs    []error
	bulkCalls   []bulkCall

	deleted   int
	deleteErr error

	exists    bool
	existsErr error
	createErr error
	created   [][]byte
}

func (m *mockStore) BulkIndex(_ context.Context, index string, items []db.BulkItem) (*db.BulkResult, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	m.bulkCalls = append(m.bulkCalls, bulkCall{index: index, ids: ids})

	call := len(m.bulkCalls) - 1
	var err error
	if call < len(m.bulkErrs) {
		err = m.bulkErrs[call]
	}
	if err != nil {
		return nil, err
	}
	if call < len(m.bulkResults) {
		return m.bulkResults[call], nil
	}
	return &db.BulkResult{Succeeded: len(items)}, nil
}

func (m *mockStore) DeleteByField(_ context.Context, _, _, _ string) (int, error) {
	return m.deleted, m.deleteErr
}

func (m *mockStore) CreateIndex(_ context.Context, _ string, body []byte) error {
	m.created = append(m.created, body)
	return m.createErr
}

func (m *mockStore) IndexExists(_ context.Context, _ string) (bool, error) {
	return m.exists, m.existsErr
}

// --- Helpers ---

func testChunks(t *testing.T, n, dim int) []chunk.Chunk {
	t.Helper()
	chunks := make([]chunk.Chunk, 0, n)
	for i := 0; i < n; i++ {
		c, err := chunk.New("doc-1", i, "some text", chunk.Metadata{
			DocumentName: "a.pdf",
			Page:         1,
			IngestedAt:   time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
		c.SetVector(make([]float32, dim))
		chunks = append(chunks, c)
	}
	return chunks
}

// --- Tests ---

func TestWriteChunks_AllSucceed(t *testing.T) {
	store := &mockStore{}
	repo := New(store, 4, zap.NewNop())

	failures, err := repo.WriteChunks(context.Background(), "documents", testChunks(t, 3, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failures) != 0 {
		t.Errorf("failures = %v, want none", failures)
	}
	if len(store.bulkCalls) != 1 {
		t.Errorf("bulk calls = %d, want 1", len(store.bulkCalls))
	}
}

func TestWriteChunks_RetriesOnlyFailedSubset(t *testing.T) {
	store := &mockStore{
		bulkResults: []*db.BulkResult{
			{Succeeded: 3, Failed: []db.BulkItemError{
				{ID: "doc-1:1", Status: 429, Reason: "too many requests"},
			}},
			{Succeeded: 1},
		},
	}
	repo := New(store, 4, zap.NewNop())

	failures, err := repo.WriteChunks(context.Background(), "documents", testChunks(t, 4, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failures) != 0 {
		t.Errorf("failures = %v, want none after retry", failures)
	}
	if len(store.bulkCalls) != 2 {
		t.Fatalf("bulk calls = %d, want 2", len(store.bulkCalls))
	}
	if len(store.bulkCalls[1].ids) != 1 || store.bulkCalls[1].ids[0] != "doc-1:1" {
		t.Errorf("retry ids = %v, want [doc-1:1]", store.bulkCalls[1].ids)
	}
}

func TestWriteChunks_PersistentFailureReported(t *testing.T) {
	failed := []db.BulkItemError{{ID: "doc-1:2", Status: 400, Reason: "mapper_parsing_exception"}}
	store := &mockStore{
		bulkResults: []*db.BulkResult{
			{Succeeded: 2, Failed: failed},
			{Succeeded: 0, Failed: failed},
		},
	}
	repo := New(store, 4, zap.NewNop())

	failures, err := repo.WriteChunks(context.Background(), "documents", testChunks(t, 3, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("failures = %v, want 1", failures)
	}
	if failures[0].Ordinal != 2 || failures[0].Stage != ingest.StageIndexed {
		t.Errorf("failure = %+v, want ordinal 2 at stage indexed", failures[0])
	}
}

func TestWriteChunks_RetryTransportFailureKeepsFirstPass(t *testing.T) {
	store := &mockStore{
		bulkResults: []*db.BulkResult{
			{Succeeded: 2, Failed: []db.BulkItemError{
				{ID: "doc-1:1", Status: 503, Reason: "unavailable"},
			}},
		},
		bulkErrs: []error{nil, db.ErrUnavailable},
	}
	repo := New(store, 4, zap.NewNop())

	failures, err := repo.WriteChunks(context.Background(), "documents", testChunks(t, 3, 4))
	if err != nil {
		t.Fatalf("retry transport failure must not fail the whole write, got %v", err)
	}
	if len(failures) != 1 || failures[0].Ordinal != 1 {
		t.Errorf("failures = %v, want the first-pass failure for ordinal 1", failures)
	}
}

func TestWriteChunks_DimensionMismatchIsFatal(t *testing.T) {
	store := &mockStore{}
	repo := New(store, 768, zap.NewNop())

	_, err := repo.WriteChunks(context.Background(), "documents", testChunks(t, 1, 4))
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("err = %v, want ErrVectorDimMismatch", err)
	}
	if len(store.bulkCalls) != 0 {
		t.Error("nothing must be written on dimension mismatch")
	}
}

func TestWriteChunks_TransportErrorMapped(t *testing.T) {
	store := &mockStore{bulkErrs: []error{db.ErrTimeout, db.ErrTimeout}}
	repo := New(store, 4, zap.NewNop())

	_, err := repo.WriteChunks(context.Background(), "documents", testChunks(t, 1, 4))
	if !errors.Is(err, domain.ErrBackendTimeout) {
		t.Fatalf("err = %v, want ErrBackendTimeout", err)
	}
}

func TestEnsureIndex_SkipsExisting(t *testing.T) {
	store := &mockStore{exists: true}
	repo := New(store, 768, zap.NewNop())

	if err := repo.EnsureIndex(context.Background(), "documents"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.created) != 0 {
		t.Error("existing index must not be recreated")
	}
}

func TestEnsureIndex_CreatesWithConfiguredDimension(t *testing.T) {
	store := &mockStore{}
	repo := New(store, 768, zap.NewNop())

	if err := repo.EnsureIndex(context.Background(), "documents"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.created) != 1 {
		t.Fatalf("create calls = %d, want 1", len(store.created))
	}

	var body struct {
		Mappings struct {
			Properties map[string]struct {
				Type      string `json:"type"`
				Dimension int    `json:"dimension"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.Unmarshal(store.created[0], &body); err != nil {
		t.Fatalf("invalid index body: %v", err)
	}
	emb := body.Mappings.Properties["embedding"]
	if emb.Type != "knn_vector" || emb.Dimension != 768 {
		t.Errorf("embedding mapping = %+v, want knn_vector/768", emb)
	}
}

func TestEnsureIndex_ConcurrentCreateIsIdempotent(t *testing.T) {
	store := &mockStore{createErr: db.ErrIndexExists}
	repo := New(store, 768, zap.NewNop())

	if err := repo.EnsureIndex(context.Background(), "documents"); err != nil {
		t.Fatalf("create racing with another writer must succeed, got %v", err)
	}
}

func TestDeleteByName(t *testing.T) {
	repo := New(&mockStore{deleted: 7}, 768, zap.NewNop())

	n, err := repo.DeleteByName(context.Background(), "documents", "a.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("deleted = %d, want 7", n)
	}
}

func TestDeleteByName_IndexNotFound(t *testing.T) {
	repo := New(&mockStore{deleteErr: db.ErrIndexNotFound}, 768, zap.NewNop())

	_, err := repo.DeleteByName(context.Background(), "missing", "a.pdf")
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Errorf("err = %v, want ErrIndexNotFound", err)
	}
}
