// Package opensearch implements the db.Store facade over an OpenSearch HTTP
// endpoint. One Store holds one pooled client: it is created once in main,
// shared by every in-flight request, and torn down only on process shutdown.
package opensearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/docdex-io/docdex/internal/db"
)

// DefaultRequestTimeout bounds every backend call unless configured otherwise.
const DefaultRequestTimeout = 30 * time.Second

// Config holds OpenSearch connection settings.
type Config struct {
	Addrs          []string
	Username       string
	Password       string
	RequestTimeout time.Duration
	MaxRetries     int

	// Transport overrides the HTTP transport; used by tests.
	Transport http.RoundTripper
}

// Store is a pooled OpenSearch client implementing db.Store.
type Store struct {
	client    *opensearch.Client
	transport *http.Transport
	timeout   time.Duration
}

// NewStore creates a Store. The connection pool is owned by the embedded HTTP
// transport; concurrent use is safe.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("at least one backend address is required")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	var ownTransport *http.Transport
	rt := cfg.Transport
	if rt == nil {
		ownTransport = &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: timeout,
		}
		rt = ownTransport
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:  cfg.Addrs,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
		Transport:  rt,
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	return &Store{client: client, transport: ownTransport, timeout: timeout}, nil
}

// Ping checks backend connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := opensearchapi.PingRequest{}.Do(ctx, s.client)
	if err != nil {
		return classify(db.OpInfo, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return &db.Error{Op: db.OpInfo, Err: fmt.Errorf("%w: status %d", db.ErrUnavailable, res.StatusCode)}
	}
	return nil
}

// WaitForReady polls the backend until it responds or the timeout elapses.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error

	for time.Now().Before(deadline) {
		if lastErr = s.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("backend not ready after %s: %w", timeout, lastErr)
}

// Close releases pooled connections. Safe to call once on shutdown.
func (s *Store) Close() {
	if s.transport != nil {
		s.transport.CloseIdleConnections()
	}
}

// opCtx attaches the per-call timeout unless the caller already set a deadline.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// classify maps transport errors onto the db sentinel taxonomy. Timeouts are
// reported distinctly, never as an empty result.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &db.Error{Op: op, Err: fmt.Errorf("%w: %v", db.ErrTimeout, err)}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &db.Error{Op: op, Err: fmt.Errorf("%w: %v", db.ErrTimeout, err)}
	}
	return &db.Error{Op: op, Err: fmt.Errorf("%w: %v", db.ErrUnavailable, err)}
}

// responseError converts a non-2xx backend response into a db error.
func responseError(op string, res *opensearchapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	if res.StatusCode == http.StatusNotFound && isIndexNotFound(body) {
		return &db.Error{Op: op, Err: db.ErrIndexNotFound}
	}
	return &db.Error{Op: op, Err: fmt.Errorf("status %d: %s", res.StatusCode, string(body))}
}

func closeBody(res *opensearchapi.Response) {
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
}
