// Package chi implements the HTTP API over the chi router.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/docdex-io/docdex/internal/domain"
	domidx "github.com/docdex-io/docdex/internal/domain/index"
	"github.com/docdex-io/docdex/internal/domain/ingest"
	"github.com/docdex-io/docdex/internal/domain/search/mode"
	"github.com/docdex-io/docdex/internal/domain/search/request"
	"github.com/docdex-io/docdex/internal/domain/search/result"
	cataloguc "github.com/docdex-io/docdex/internal/usecase/catalog"
	healthuc "github.com/docdex-io/docdex/internal/usecase/health"
	ingestuc "github.com/docdex-io/docdex/internal/usecase/ingest"
	searchuc "github.com/docdex-io/docdex/internal/usecase/search"
)

// Error response codes.
const (
	codeBadRequest          = "bad_request"
	codeValidationFailed    = "validation_failed"
	codeIndexNotFound       = "index_not_found"
	codeDocumentNotFound    = "document_not_found"
	codeInvalidField        = "invalid_field_selection"
	codeUnsupportedFormat   = "unsupported_format"
	codeExtractionFailed    = "extraction_failed"
	codeVectorDimMismatch   = "vector_dim_mismatch"
	codeEmbeddingProvider   = "embedding_provider_error"
	codeBackendUnavailable  = "backend_unavailable"
	codeBackendTimeout      = "backend_timeout"
	codeMappingUnavailable  = "mapping_unavailable"
	codeInternalError       = "internal_error"
)

// Defaults are server-side fallbacks applied to requests that omit them.
type Defaults struct {
	Index       string
	TopK        int
	Weights     request.Weights
	MaxBodySize int64
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the use case services into HTTP handlers.
type Server struct {
	catalog       *cataloguc.Service
	search        *searchuc.Service
	ingest        *ingestuc.Service
	health        *healthuc.Service
	defaults      Defaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	catalog *cataloguc.Service,
	search *searchuc.Service,
	ing *ingestuc.Service,
	health *healthuc.Service,
	defaults Defaults,
	logger *zap.Logger,
) *Server {
	s := &Server{
		catalog:  catalog,
		search:   search,
		ingest:   ing,
		health:   health,
		defaults: defaults,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrIndexNotFound, http.StatusNotFound, codeIndexNotFound),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrInvalidFieldSelection, http.StatusBadRequest, codeInvalidField),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, codeUnsupportedFormat),
		sentinelHandler(domain.ErrExtraction, http.StatusUnprocessableEntity, codeExtractionFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrEmbeddingModelUnavailable, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrMappingUnavailable, http.StatusBadGateway, codeMappingUnavailable),
		sentinelHandler(domain.ErrBackendTimeout, http.StatusGatewayTimeout, codeBackendTimeout),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusBadGateway, codeBackendUnavailable),
	}
	return s
}

// Routes mounts all API routes on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/indices", s.ListIndices)
	r.Get("/indices/{index}/fields", s.InspectIndex)
	r.Post("/indices/{index}/ensure", s.EnsureIndex)
	r.Post("/search", s.Search)
	r.Post("/ingest", s.Ingest)
	r.Delete("/documents/{index}/{name}", s.DeleteDocument)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type indicesResponse struct {
	Indices []string `json:"indices"`
}

type fieldResponse struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Role      string `json:"role"`
	Dimension int    `json:"dimension,omitempty"`
}

type inspectResponse struct {
	Index  string          `json:"index"`
	Fields []fieldResponse `json:"fields"`
}

type searchRequestBody struct {
	Query          string   `json:"query"`
	Index          string   `json:"index,omitempty"`
	TextField      string   `json:"text_field,omitempty"`
	VectorField    string   `json:"vector_field,omitempty"`
	Mode           string   `json:"mode,omitempty"`
	TopK           int      `json:"top_k,omitempty"`
	KeywordWeight  *float64 `json:"keyword_weight,omitempty"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty"`
}

type scoreComponent struct {
	Score   float64 `json:"score"`
	Present bool    `json:"present"`
}

type searchResultItem struct {
	ChunkID      string          `json:"chunk_id"`
	DocumentName string          `json:"document_name"`
	Score        float64         `json:"score"`
	Keyword      *scoreComponent `json:"keyword,omitempty"`
	Semantic     *scoreComponent `json:"semantic,omitempty"`
	Text         string          `json:"text"`
}

type searchResponse struct {
	Items []searchResultItem `json:"items"`
	Total int                `json:"total"`
}

type chunkFailureItem struct {
	Ordinal int    `json:"ordinal"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}

type ingestResponse struct {
	DocumentID    string             `json:"document_id"`
	DocumentName  string             `json:"document_name"`
	Status        string             `json:"status"`
	TotalChunks   int                `json:"total_chunks"`
	IndexedChunks int                `json:"indexed_chunks"`
	Failures      []chunkFailureItem `json:"failures,omitempty"`
}

type deleteResponse struct {
	DocumentName  string `json:"document_name"`
	DeletedChunks int    `json:"deleted_chunks"`
}

// ListIndices handles GET /indices.
func (s *Server) ListIndices(w http.ResponseWriter, r *http.Request) {
	names, err := s.catalog.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indicesResponse{Indices: names})
}

// InspectIndex handles GET /indices/{index}/fields.
func (s *Server) InspectIndex(w http.ResponseWriter, r *http.Request) {
	index := chi.URLParam(r, "index")

	desc, err := s.catalog.Inspect(r.Context(), index)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inspectToResponse(desc))
}

// EnsureIndex handles POST /indices/{index}/ensure.
func (s *Server) EnsureIndex(w http.ResponseWriter, r *http.Request) {
	index := chi.URLParam(r, "index")

	if err := s.catalog.EnsureIndex(r.Context(), index); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := s.searchRequestFromBody(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	results, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(results))
	for i := range results {
		items[i] = searchResultToItem(&results[i])
	}
	writeJSON(w, http.StatusOK, searchResponse{Items: items, Total: len(items)})
}

// Ingest handles POST /ingest. Expects multipart form data with a "file" part
// and an optional "index" field.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	if s.defaults.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.defaults.MaxBodySize)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Missing file part: "+err.Error())
		return
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Failed to read file: "+err.Error())
		return
	}

	index := r.FormValue("index")
	if index == "" {
		index = s.defaults.Index
	}

	report, err := s.ingest.Ingest(r.Context(), index, header.Filename, content)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if report.Status() != ingest.StatusIndexed {
		// Partial success is still a success, but the client must see it.
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, reportToResponse(report))
}

// DeleteDocument handles DELETE /documents/{index}/{name}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	index := chi.URLParam(r, "index")
	name := chi.URLParam(r, "name")

	n, err := s.ingest.Delete(r.Context(), index, name)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{DocumentName: name, DeletedChunks: n})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": string(report.Status),
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) searchRequestFromBody(body searchRequestBody) (request.Request, error) {
	index := body.Index
	if index == "" {
		index = s.defaults.Index
	}

	topK := body.TopK
	if topK == 0 {
		topK = s.defaults.TopK
	}

	weights := s.defaults.Weights
	if body.KeywordWeight != nil {
		weights.Keyword = *body.KeywordWeight
	}
	if body.SemanticWeight != nil {
		weights.Semantic = *body.SemanticWeight
	}

	return request.New(
		body.Query, index, body.TextField, body.VectorField,
		mode.Mode(body.Mode), topK, weights,
	)
}

func inspectToResponse(desc domidx.Descriptor) inspectResponse {
	fields := make([]fieldResponse, 0, len(desc.Fields()))
	for _, f := range desc.Fields() {
		fields = append(fields, fieldResponse{
			Name:      f.Name(),
			Type:      f.DeclaredType(),
			Role:      string(f.Role()),
			Dimension: f.Dimension(),
		})
	}
	return inspectResponse{Index: desc.Name(), Fields: fields}
}

func searchResultToItem(r *result.Result) searchResultItem {
	item := searchResultItem{
		ChunkID:      r.ChunkID(),
		DocumentName: r.DocumentName(),
		Score:        r.Score(),
		Text:         r.Text(),
	}
	if r.Keyword().Present() {
		item.Keyword = &scoreComponent{Score: r.Keyword().Score(), Present: true}
	}
	if r.Semantic().Present() {
		item.Semantic = &scoreComponent{Score: r.Semantic().Score(), Present: true}
	}
	return item
}

func reportToResponse(report ingest.Report) ingestResponse {
	resp := ingestResponse{
		DocumentID:    report.DocumentID(),
		DocumentName:  report.DocumentName(),
		Status:        string(report.Status()),
		TotalChunks:   report.TotalChunks(),
		IndexedChunks: report.IndexedChunks(),
	}
	for _, f := range report.Failures() {
		item := chunkFailureItem{Ordinal: f.Ordinal, Stage: string(f.Stage)}
		if f.Err != nil {
			item.Error = f.Err.Error()
		}
		resp.Failures = append(resp.Failures, item)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns the client-facing message for err. Known domain
// errors keep their full message, so the response names the index, document,
// or field involved; anything unrecognized is masked.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrIndexNotFound,
		domain.ErrDocumentNotFound,
		domain.ErrInvalidFieldSelection,
		domain.ErrValidation,
		domain.ErrUnsupportedFormat,
		domain.ErrExtraction,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingModelUnavailable,
		domain.ErrMappingUnavailable,
		domain.ErrBackendTimeout,
		domain.ErrBackendUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
