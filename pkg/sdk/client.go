// Package sdk is a thin HTTP client for the docdex API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Client calls the docdex HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the Bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListIndices returns the searchable index names.
func (c *Client) ListIndices(ctx context.Context) ([]string, error) {
	var resp struct {
		Indices []string `json:"indices"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/indices", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Indices, nil
}

// InspectIndex returns the classified field mapping of an index.
func (c *Client) InspectIndex(ctx context.Context, index string) (IndexFields, error) {
	var resp IndexFields
	path := "/indices/" + url.PathEscape(index) + "/fields"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return IndexFields{}, err
	}
	return resp, nil
}

// EnsureIndex creates the index with the default chunk schema if missing.
func (c *Client) EnsureIndex(ctx context.Context, index string) error {
	path := "/indices/" + url.PathEscape(index) + "/ensure"
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

// Search runs a keyword, semantic, or hybrid search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	var resp SearchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/search", req, &resp); err != nil {
		return SearchResponse{}, err
	}
	return resp, nil
}

// Ingest uploads a document for indexing. index may be empty to use the
// server default.
func (c *Client) Ingest(ctx context.Context, index, filename string, content []byte) (IngestReport, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if index != "" {
		if err := mw.WriteField("index", index); err != nil {
			return IngestReport{}, fmt.Errorf("docdex: build form: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return IngestReport{}, fmt.Errorf("docdex: build form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return IngestReport{}, fmt.Errorf("docdex: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return IngestReport{}, fmt.Errorf("docdex: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest", &body)
	if err != nil {
		return IngestReport{}, fmt.Errorf("docdex: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuth(req)

	var report IngestReport
	if err := c.do(req, &report); err != nil {
		return IngestReport{}, err
	}
	return report, nil
}

// DeleteDocument removes every chunk of the named document.
func (c *Client) DeleteDocument(ctx context.Context, index, documentName string) (DeleteResult, error) {
	var resp DeleteResult
	path := "/documents/" + url.PathEscape(index) + "/" + url.PathEscape(documentName)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return DeleteResult{}, err
	}
	return resp, nil
}

// Health returns the aggregated service health. A degraded service responds
// with 503 but still carries a report; that is not treated as a client error.
func (c *Client) Health(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{}, fmt.Errorf("docdex: build request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return Health{}, fmt.Errorf("docdex: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	var h Health
	if err := json.NewDecoder(res.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("docdex: decode response: %w", err)
	}
	return h, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("docdex: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("docdex: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("docdex: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= 400 {
		return decodeAPIError(res)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("docdex: decode response: %w", err)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func decodeAPIError(res *http.Response) error {
	apiErr := &APIError{StatusCode: res.StatusCode}

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = res.Status
	}
	return apiErr
}
