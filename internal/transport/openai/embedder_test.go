package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/docdex-io/docdex/internal/domain"
)

// --- Helpers ---

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) *Embedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewEmbedder(&Config{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		Model:      "test-model",
		Dimensions: 3,
		Logger:     zap.NewNop(),
	})
}

func writeAPIError(w http.ResponseWriter, status int, errType, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"message":"` + msg + `","type":"` + errType + `"}}`))
}

// --- Tests ---

func TestBatchEmbed_ReordersByProviderIndex(t *testing.T) {
	emb := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.4, 0.5, 0.6]},
				{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}
			],
			"model": "test-model",
			"usage": {"prompt_tokens": 7, "total_tokens": 7}
		}`))
	})

	res, err := emb.BatchEmbed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("got %d embeddings, want 2", len(res.Embeddings))
	}
	if res.Embeddings[0][0] != 0.1 || res.Embeddings[1][0] != 0.4 {
		t.Errorf("embeddings not reordered by index: %v", res.Embeddings)
	}
	if res.TotalTokens != 7 {
		t.Errorf("total tokens = %d, want 7", res.TotalTokens)
	}
}

func TestBatchEmbed_InputErrorIsNotFatal(t *testing.T) {
	emb := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusBadRequest, "invalid_request_error",
			"input exceeds maximum context length")
	})

	_, err := emb.BatchEmbed(context.Background(), []string{"oversized"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, domain.ErrEmbeddingModelUnavailable) {
		t.Errorf("input rejection must not be classified as provider outage: %v", err)
	}
	if !strings.Contains(err.Error(), "input exceeds maximum context length") {
		t.Errorf("err = %v, want provider message preserved", err)
	}
}

func TestBatchEmbed_ProviderDownStatuses(t *testing.T) {
	for _, status := range []int{
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable,
	} {
		emb := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
			writeAPIError(w, status, "server_error", "unavailable")
		})

		_, err := emb.BatchEmbed(context.Background(), []string{"text"})
		if !errors.Is(err, domain.ErrEmbeddingModelUnavailable) {
			t.Errorf("status %d: err = %v, want ErrEmbeddingModelUnavailable", status, err)
		}
	}
}

func TestBatchEmbed_TransportErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	emb := NewEmbedder(&Config{
		APIKey: "sk-test", BaseURL: srv.URL, Model: "test-model", Logger: zap.NewNop(),
	})

	_, err := emb.BatchEmbed(context.Background(), []string{"text"})
	if !errors.Is(err, domain.ErrEmbeddingModelUnavailable) {
		t.Errorf("err = %v, want ErrEmbeddingModelUnavailable", err)
	}
}

func TestBatchEmbed_DimensionMismatch(t *testing.T) {
	emb := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.1, 0.2]}],
			"model": "test-model",
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	})

	_, err := emb.BatchEmbed(context.Background(), []string{"text"})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("err = %v, want ErrVectorDimMismatch", err)
	}
}

func TestBatchEmbed_CountMismatchIsFatal(t *testing.T) {
	emb := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}],
			"model": "test-model",
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	})

	_, err := emb.BatchEmbed(context.Background(), []string{"one", "two"})
	if !errors.Is(err, domain.ErrEmbeddingModelUnavailable) {
		t.Errorf("err = %v, want ErrEmbeddingModelUnavailable", err)
	}
}
