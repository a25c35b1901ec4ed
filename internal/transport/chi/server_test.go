package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/docdex-io/docdex/internal/domain"
	"github.com/docdex-io/docdex/internal/domain/chunk"
	domidx "github.com/docdex-io/docdex/internal/domain/index"
	"github.com/docdex-io/docdex/internal/domain/index/field"
	"github.com/docdex-io/docdex/internal/domain/ingest"
	"github.com/docdex-io/docdex/internal/domain/search/result"
	"github.com/docdex-io/docdex/internal/extract"
	cataloguc "github.com/docdex-io/docdex/internal/usecase/catalog"
	healthuc "github.com/docdex-io/docdex/internal/usecase/health"
	ingestuc "github.com/docdex-io/docdex/internal/usecase/ingest"
	searchuc "github.com/docdex-io/docdex/internal/usecase/search"
)

// --- Mocks ---

type stubLister struct {
	names []string
	err   error
}

func (s *stubLister) ListIndices(_ context.Context) ([]string, error) { return s.names, s.err }

type stubInspector struct {
	desc domidx.Descriptor
	err  error
}

func (s *stubInspector) Inspect(_ context.Context, _ string) (domidx.Descriptor, error) {
	return s.desc, s.err
}

type stubSearchRepo struct {
	kwHits  []result.Hit
	semHits []result.Hit
	err     error
}

func (s *stubSearchRepo) Keyword(
	_ context.Context, _, _, _ string, _ int, _ string,
) ([]result.Hit, error) {
	return s.kwHits, s.err
}

func (s *stubSearchRepo) Semantic(
	_ context.Context, _, _ string, _ []float32, _ int, _ string,
) ([]result.Hit, error) {
	return s.semHits, s.err
}

type stubEmbedder struct{ vector []float32 }

func (s *stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: s.vector}, nil
}

type stubExtractor struct {
	doc extract.Document
	err error
}

func (s *stubExtractor) Extract(_ context.Context, _ string, _ []byte) (extract.Document, error) {
	return s.doc, s.err
}

type stubBatchEmbedder struct{ dim int }

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, s.dim)
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

type stubDocRepo struct {
	writeFailures []ingest.ChunkFailure
	deleted       int
	deleteErr     error
}

func (s *stubDocRepo) WriteChunks(_ context.Context, _ string, _ []chunk.Chunk) ([]ingest.ChunkFailure, error) {
	return s.writeFailures, nil
}

func (s *stubDocRepo) DeleteByName(_ context.Context, _, _ string) (int, error) {
	return s.deleted, s.deleteErr
}

func (s *stubDocRepo) EnsureIndex(_ context.Context, _ string) error { return nil }

type stubPinger struct{ err error }

func (s *stubPinger) Ping(_ context.Context) error { return s.err }

// --- Helpers ---

type serverMocks struct {
	lister     *stubLister
	inspector  *stubInspector
	searchRepo *stubSearchRepo
	extractor  *stubExtractor
	docRepo    *stubDocRepo
	pinger     *stubPinger
}

func newTestServer(t *testing.T, m serverMocks) *httptest.Server {
	t.Helper()

	if m.lister == nil {
		m.lister = &stubLister{}
	}
	if m.inspector == nil {
		m.inspector = &stubInspector{desc: testDescriptor(t)}
	}
	if m.searchRepo == nil {
		m.searchRepo = &stubSearchRepo{}
	}
	if m.extractor == nil {
		m.extractor = &stubExtractor{doc: extract.Document{
			Format: extract.FormatText,
			Pages:  []extract.Page{{Number: 1, Text: "page text"}},
		}}
	}
	if m.docRepo == nil {
		m.docRepo = &stubDocRepo{}
	}
	if m.pinger == nil {
		m.pinger = &stubPinger{}
	}

	logger := zap.NewNop()
	srv := NewServer(
		cataloguc.New(m.lister, m.inspector, m.docRepo, logger),
		searchuc.New(m.searchRepo, m.inspector, &stubEmbedder{vector: []float32{1}}),
		ingestuc.New(m.extractor, &stubBatchEmbedder{dim: 4}, m.docRepo, ingestuc.Config{
			UploadDir:   t.TempDir(),
			ChunkSize:   1200,
			BatchSize:   4,
			Workers:     2,
			MaxFileSize: 1 << 20,
		}, logger),
		healthuc.New(m.pinger, nil),
		Defaults{Index: "documents", TopK: 5},
		logger,
	)

	r := chi.NewRouter()
	srv.Routes(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func testDescriptor(t *testing.T) domidx.Descriptor {
	t.Helper()
	var fields []field.Descriptor
	for _, spec := range []struct {
		name, declared string
		role           field.Role
		dim            int
	}{
		{"text", "text", field.Text, 0},
		{"embedding", "knn_vector", field.Vector, 768},
		{"document_name", "keyword", field.Metadata, 0},
	} {
		fd, err := field.New(spec.name, spec.declared, spec.role, spec.dim)
		if err != nil {
			t.Fatal(err)
		}
		fields = append(fields, fd)
	}
	return domidx.New("documents", fields)
}

func decodeBody(t *testing.T, res *http.Response, v any) {
	t.Helper()
	defer func() { _ = res.Body.Close() }()
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func multipartUpload(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	res, err := http.Post(url+"/ingest", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

// --- Tests ---

func TestListIndicesEndpoint(t *testing.T) {
	ts := newTestServer(t, serverMocks{lister: &stubLister{names: []string{"documents", "manuals"}}})

	res, err := http.Get(ts.URL + "/indices")
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	var body indicesResponse
	decodeBody(t, res, &body)
	if len(body.Indices) != 2 {
		t.Errorf("indices = %v", body.Indices)
	}
}

func TestInspectIndexEndpoint(t *testing.T) {
	ts := newTestServer(t, serverMocks{})

	res, err := http.Get(ts.URL + "/indices/documents/fields")
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	var body inspectResponse
	decodeBody(t, res, &body)
	if body.Index != "documents" || len(body.Fields) != 3 {
		t.Fatalf("body = %+v", body)
	}
	for _, f := range body.Fields {
		if f.Name == "embedding" && (f.Role != "vector" || f.Dimension != 768) {
			t.Errorf("embedding field = %+v", f)
		}
	}
}

func TestInspectIndexEndpoint_NotFound(t *testing.T) {
	ts := newTestServer(t, serverMocks{inspector: &stubInspector{err: domain.ErrIndexNotFound}})

	res, err := http.Get(ts.URL + "/indices/missing/fields")
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}

	var body errorResponse
	decodeBody(t, res, &body)
	if body.Code != codeIndexNotFound {
		t.Errorf("code = %q, want %q", body.Code, codeIndexNotFound)
	}
}

func TestSearchEndpoint(t *testing.T) {
	ts := newTestServer(t, serverMocks{searchRepo: &stubSearchRepo{
		kwHits:  []result.Hit{{ChunkID: "d:0", Score: 3, Text: "hit text", DocumentName: "a.pdf"}},
		semHits: []result.Hit{{ChunkID: "d:0", Score: 0.9}},
	}})

	payload := `{"query": "what is hybrid search", "text_field": "text", "vector_field": "embedding"}`
	res, err := http.Post(ts.URL+"/search", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	var body searchResponse
	decodeBody(t, res, &body)
	if body.Total != 1 || len(body.Items) != 1 {
		t.Fatalf("body = %+v", body)
	}
	item := body.Items[0]
	if item.ChunkID != "d:0" || item.DocumentName != "a.pdf" || item.Text != "hit text" {
		t.Errorf("item = %+v", item)
	}
	if item.Keyword == nil || item.Semantic == nil {
		t.Error("both score components must be present for a fused hit")
	}
}

func TestSearchEndpoint_EmptyQuery(t *testing.T) {
	ts := newTestServer(t, serverMocks{})

	res, err := http.Post(ts.URL+"/search", "application/json", strings.NewReader(`{"query": ""}`))
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}

	var body errorResponse
	decodeBody(t, res, &body)
	if body.Code != codeValidationFailed {
		t.Errorf("code = %q, want %q", body.Code, codeValidationFailed)
	}
}

func TestSearchEndpoint_MalformedBody(t *testing.T) {
	ts := newTestServer(t, serverMocks{})

	res, err := http.Post(ts.URL+"/search", "application/json", strings.NewReader(`{"query": `))
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
}

func TestIngestEndpoint_FullSuccess(t *testing.T) {
	ts := newTestServer(t, serverMocks{})

	res := multipartUpload(t, ts.URL, "doc.txt", "plain content")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", res.StatusCode)
	}

	var body ingestResponse
	decodeBody(t, res, &body)
	if body.Status != string(ingest.StatusIndexed) {
		t.Errorf("status = %q, want indexed", body.Status)
	}
	if body.DocumentID == "" || body.DocumentName != "doc.txt" {
		t.Errorf("body = %+v", body)
	}
}

func TestIngestEndpoint_PartialSuccessIsMultiStatus(t *testing.T) {
	ts := newTestServer(t, serverMocks{docRepo: &stubDocRepo{
		writeFailures: []ingest.ChunkFailure{
			{Ordinal: 0, Stage: ingest.StageIndexed, Err: errors.New("write failed")},
		},
	}, extractor: &stubExtractor{doc: extract.Document{
		Format: extract.FormatText,
		Pages:  []extract.Page{{Number: 1, Text: "one"}, {Number: 2, Text: "two"}},
	}}})

	res := multipartUpload(t, ts.URL, "doc.txt", "plain content")
	if res.StatusCode != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207", res.StatusCode)
	}

	var body ingestResponse
	decodeBody(t, res, &body)
	if body.Status != string(ingest.StatusPartiallyIndexed) {
		t.Errorf("status = %q, want partially_indexed", body.Status)
	}
	if len(body.Failures) != 1 || body.Failures[0].Ordinal != 0 {
		t.Errorf("failures = %+v", body.Failures)
	}
}

func TestIngestEndpoint_UnsupportedFormat(t *testing.T) {
	ts := newTestServer(t, serverMocks{extractor: &stubExtractor{
		err: domain.ErrUnsupportedFormat,
	}})

	res := multipartUpload(t, ts.URL, "image.png", "\x89PNG")
	if res.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", res.StatusCode)
	}
}

func TestDeleteDocumentEndpoint(t *testing.T) {
	ts := newTestServer(t, serverMocks{docRepo: &stubDocRepo{deleted: 9}})

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/documents/documents/a.pdf", nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	var body deleteResponse
	decodeBody(t, res, &body)
	if body.DeletedChunks != 9 || body.DocumentName != "a.pdf" {
		t.Errorf("body = %+v", body)
	}
}

func TestDeleteDocumentEndpoint_NotFound(t *testing.T) {
	ts := newTestServer(t, serverMocks{docRepo: &stubDocRepo{deleted: 0}})

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/documents/documents/missing.pdf", nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, serverMocks{})

	res, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
}

func TestHealthEndpoint_Degraded(t *testing.T) {
	ts := newTestServer(t, serverMocks{pinger: &stubPinger{err: errors.New("down")}})

	res, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", res.StatusCode)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"timeout", domain.ErrBackendTimeout, http.StatusGatewayTimeout, codeBackendTimeout, ""},
		{"unavailable", domain.ErrBackendUnavailable, http.StatusBadGateway, codeBackendUnavailable, ""},
		{"mapping", domain.ErrMappingUnavailable, http.StatusBadGateway, codeMappingUnavailable, ""},
		{"field selection", domain.ErrInvalidFieldSelection, http.StatusBadRequest, codeInvalidField, ""},
		{"dim mismatch", domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch, ""},
		{
			"not found names the index",
			fmt.Errorf("index %q: %w", "manuals", domain.ErrIndexNotFound),
			http.StatusNotFound, codeIndexNotFound, `"manuals"`,
		},
		{
			"field selection names the field",
			fmt.Errorf("field %q is not searchable text: %w", "embedding", domain.ErrInvalidFieldSelection),
			http.StatusBadRequest, codeInvalidField, `"embedding"`,
		},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, codeInternalError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, serverMocks{inspector: &stubInspector{err: tt.err}})

			res, err := http.Get(ts.URL + "/indices/documents/fields")
			if err != nil {
				t.Fatal(err)
			}
			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}

			var body errorResponse
			decodeBody(t, res, &body)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if tt.wantMsg != "" && !strings.Contains(body.Message, tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", body.Message, tt.wantMsg)
			}
			if tt.wantCode == codeInternalError && strings.Contains(body.Message, "boom") {
				t.Error("internal error details must not leak to the client")
			}
		})
	}
}
