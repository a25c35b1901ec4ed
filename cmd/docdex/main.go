package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/docdex-io/docdex/internal/config"
	dbOpensearch "github.com/docdex-io/docdex/internal/db/opensearch"
	dbRedis "github.com/docdex-io/docdex/internal/db/redis"
	"github.com/docdex-io/docdex/internal/domain"
	"github.com/docdex-io/docdex/internal/domain/search/request"
	"github.com/docdex-io/docdex/internal/extract"
	logpkg "github.com/docdex-io/docdex/internal/logger"
	"github.com/docdex-io/docdex/internal/metrics"
	documentrepo "github.com/docdex-io/docdex/internal/repository/document"
	"github.com/docdex-io/docdex/internal/repository/embcache"
	mappingrepo "github.com/docdex-io/docdex/internal/repository/mapping"
	searchrepo "github.com/docdex-io/docdex/internal/repository/search"
	chiTransport "github.com/docdex-io/docdex/internal/transport/chi"
	openaiEmb "github.com/docdex-io/docdex/internal/transport/openai"
	cataloguc "github.com/docdex-io/docdex/internal/usecase/catalog"
	embeddinguc "github.com/docdex-io/docdex/internal/usecase/embedding"
	healthuc "github.com/docdex-io/docdex/internal/usecase/health"
	ingestuc "github.com/docdex-io/docdex/internal/usecase/ingest"
	searchuc "github.com/docdex-io/docdex/internal/usecase/search"
	"github.com/docdex-io/docdex/internal/version"
)

func main() {
	// Local development convenience; absence of .env is not an error.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("backend_addrs", cfg.Backend.Addrs),
		zap.String("default_index", cfg.Backend.DefaultIndex),
	)

	store, err := dbOpensearch.NewStore(dbOpensearch.Config{
		Addrs:          cfg.Backend.Addrs,
		Username:       cfg.Backend.Username,
		Password:       cfg.Backend.Password,
		RequestTimeout: time.Duration(cfg.Backend.RequestTimeout) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create backend store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Backend.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Backend not ready", zap.Error(err))
	}
	logger.Info("Connected to search backend")

	// Register business metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()

	// Embedding cache is optional: no cache addrs, no cache layer.
	var cache *dbRedis.Store
	if len(cfg.Cache.Addrs) > 0 {
		cache, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cache.Close()
		logger.Info("Embedding cache enabled", zap.Strings("cache_addrs", cfg.Cache.Addrs))
	}

	cacheTTL := time.Duration(cfg.Cache.TTLHours) * time.Hour
	docEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, cache, cacheTTL, logger)
	queryEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.QueryInstruction, cache, cacheTTL, logger)
	logger.Info("Embedders created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	extractor := extract.New(extract.NewTesseract(), logger)

	mappingRepo := mappingrepo.New(store, cfg.Embedding.Dimensions)
	searchRepo := searchrepo.New(store)
	docRepo := documentrepo.New(store, cfg.Embedding.Dimensions, logger)

	catalogSvc := cataloguc.New(store, mappingRepo, docRepo, logger)
	searchSvc := searchuc.New(searchRepo, mappingRepo, queryEmbedder)
	ingestSvc := ingestuc.New(extractor, docEmbedder, docRepo, ingestuc.Config{
		UploadDir:   cfg.Ingest.UploadDir,
		ChunkSize:   cfg.Ingest.ChunkSize,
		BatchSize:   cfg.Embedding.BatchSize,
		Workers:     cfg.Ingest.Workers,
		MaxFileSize: int64(cfg.Ingest.MaxFileSizeMB) << 20,
	}, logger)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(docEmbedder))

	server := chiTransport.NewServer(catalogSvc, searchSvc, ingestSvc, healthSvc, chiTransport.Defaults{
		Index: cfg.Backend.DefaultIndex,
		TopK:  cfg.Search.DefaultTopK,
		Weights: request.Weights{
			Keyword:  cfg.Search.KeywordWeight,
			Semantic: cfg.Search.SemanticWeight,
		},
		// Multipart overhead on top of the file itself.
		MaxBodySize: int64(cfg.Ingest.MaxFileSizeMB)<<20 + 1<<20,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
// The instruction decorator sits outermost so the cache key includes the prefix.
func buildEmbedder(
	embCfg config.EmbeddingConfig,
	instruction string,
	cache *dbRedis.Store,
	cacheTTL time.Duration,
	logger *zap.Logger,
) domain.BatchingEmbedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     embCfg.APIKey,
		BaseURL:    embCfg.BaseURL,
		Model:      embCfg.Model,
		Dimensions: embCfg.Dimensions,
		Logger:     logger,
	})

	var embedder domain.BatchingEmbedder = base
	if cache != nil {
		embedder = embcache.New(base, cache, embCfg.Model, cacheTTL, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, embCfg.Model, logger)

	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// embeddingHealthChecker unwraps the decorator chain down to the provider's
// health check, if it exposes one.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
