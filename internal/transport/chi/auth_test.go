package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authedHandler(keys []string) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return BearerAuthMiddleware(keys)(ok)
}

func TestBearerAuth_DisabledWithoutKeys(t *testing.T) {
	h := authedHandler(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/indices", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}

func TestBearerAuth_ValidKey(t *testing.T) {
	h := authedHandler([]string{"secret-key"})

	req := httptest.NewRequest(http.MethodGet, "/indices", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestBearerAuth_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"invalid key", "Bearer wrong-key"},
		{"bare token", "secret-key"},
	}

	h := authedHandler([]string{"secret-key"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/indices", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestBearerAuth_ExemptPaths(t *testing.T) {
	h := authedHandler([]string{"secret-key"})

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusOK {
			t.Errorf("path %s: status = %d, want 200 without credentials", path, rec.Code)
		}
	}
}

func TestBearerAuth_EmptyKeyIgnored(t *testing.T) {
	// A blank entry in the key list must not disable auth for everyone
	// holding an empty token, and the list still counts as configured.
	h := authedHandler([]string{"secret-key", ""})

	req := httptest.NewRequest(http.MethodGet, "/indices", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for an empty token", rec.Code)
	}
}
