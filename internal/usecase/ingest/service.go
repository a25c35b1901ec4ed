// Package ingest implements the document ingestion pipeline: store the upload,
// extract text, chunk it, embed chunk batches, and write the chunks to the
// index. Per-chunk failures past extraction are collected into the report
// instead of aborting the run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docdex-io/docdex/internal/domain"
	"github.com/docdex-io/docdex/internal/domain/chunk"
	"github.com/docdex-io/docdex/internal/domain/ingest"
	"github.com/docdex-io/docdex/internal/extract"
	"github.com/docdex-io/docdex/internal/metrics"
)

// embedRetryInterval is the backoff base for the single embedding batch retry.
const embedRetryInterval = 500 * time.Millisecond

// Config holds ingestion pipeline settings.
type Config struct {
	UploadDir   string
	ChunkSize   int
	BatchSize   int
	Workers     int
	MaxFileSize int64
}

// Service runs the ingestion pipeline.
type Service struct {
	extractor Extractor
	embed     Embedder
	repo      Repository
	cfg       Config
	logger    *zap.Logger
}

// New creates an ingestion service. embed is the document-side embedder.
func New(extractor Extractor, embed Embedder, repo Repository, cfg Config, logger *zap.Logger) *Service {
	return &Service{extractor: extractor, embed: embed, repo: repo, cfg: cfg, logger: logger}
}

// Ingest stores the uploaded file and runs the pipeline against the given
// index. Re-ingesting the same filename mints a fresh document identifier;
// chunks of earlier runs are superseded, never mutated.
func (s *Service) Ingest(ctx context.Context, index, filename string, content []byte) (ingest.Report, error) {
	path, err := securePath(s.cfg.UploadDir, filename)
	if err != nil {
		return ingest.Report{}, err
	}
	if s.cfg.MaxFileSize > 0 && int64(len(content)) > s.cfg.MaxFileSize {
		return ingest.Report{}, fmt.Errorf("file %q exceeds size limit of %d bytes: %w",
			filename, s.cfg.MaxFileSize, domain.ErrValidation)
	}
	if len(content) == 0 {
		return ingest.Report{}, fmt.Errorf("file %q is empty: %w", filename, domain.ErrValidation)
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return ingest.Report{}, fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return ingest.Report{}, fmt.Errorf("store upload %q: %w", filename, err)
	}

	report, err := s.run(ctx, index, filename, content)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues("failed").Inc()
		return ingest.Report{}, err
	}
	metrics.IngestDocumentsTotal.WithLabelValues(string(report.Status())).Inc()
	return report, nil
}

// IngestFile runs the pipeline for a file already present in the upload
// directory.
func (s *Service) IngestFile(ctx context.Context, index, filename string) (ingest.Report, error) {
	path, err := securePath(s.cfg.UploadDir, filename)
	if err != nil {
		return ingest.Report{}, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ingest.Report{}, fmt.Errorf("file %q: %w", filename, domain.ErrDocumentNotFound)
		}
		return ingest.Report{}, fmt.Errorf("read upload %q: %w", filename, err)
	}

	report, err := s.run(ctx, index, filename, content)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues("failed").Inc()
		return ingest.Report{}, err
	}
	metrics.IngestDocumentsTotal.WithLabelValues(string(report.Status())).Inc()
	return report, nil
}

// Delete removes every chunk of the named document from the index and the
// stored upload, if any. Returns the number of deleted chunks.
func (s *Service) Delete(ctx context.Context, index, documentName string) (int, error) {
	if _, err := securePath(s.cfg.UploadDir, documentName); err != nil {
		return 0, err
	}

	n, err := s.repo.DeleteByName(ctx, index, documentName)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("document %q: %w", documentName, domain.ErrDocumentNotFound)
	}

	// The stored upload is a convenience copy; failing to remove it does not
	// undo the index deletion.
	path := filepath.Join(s.cfg.UploadDir, documentName)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove stored upload", zap.String("file", documentName), zap.Error(err))
	}

	s.logger.Info("document deleted",
		zap.String("index", index), zap.String("document", documentName), zap.Int("chunks", n))
	return n, nil
}

// run executes extract, chunk, embed, and write for one document.
func (s *Service) run(ctx context.Context, index, filename string, content []byte) (ingest.Report, error) {
	start := time.Now()
	doc, err := s.extractor.Extract(ctx, filename, content)
	if err != nil {
		return ingest.Report{}, err
	}
	metrics.ExtractionDuration.WithLabelValues(string(doc.Format)).Observe(time.Since(start).Seconds())

	documentID := uuid.NewString()
	now := time.Now().UTC()

	chunks, err := s.chunkPages(documentID, filename, doc, now)
	if err != nil {
		return ingest.Report{}, err
	}
	if len(chunks) == 0 {
		return ingest.Report{}, fmt.Errorf("file %q produced no chunks: %w", filename, domain.ErrExtraction)
	}

	failures, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return ingest.Report{}, err
	}

	if err := s.repo.EnsureIndex(ctx, index); err != nil {
		return ingest.Report{}, err
	}

	failed := make(map[int]bool, len(failures))
	for _, f := range failures {
		failed[f.Ordinal] = true
	}
	toWrite := make([]chunk.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !failed[c.Ordinal()] {
			toWrite = append(toWrite, c)
		}
	}

	writeFailures, err := s.repo.WriteChunks(ctx, index, toWrite)
	if err != nil {
		return ingest.Report{}, err
	}
	failures = append(failures, writeFailures...)
	sort.Slice(failures, func(i, j int) bool { return failures[i].Ordinal < failures[j].Ordinal })

	metrics.IngestChunksTotal.WithLabelValues("indexed").Add(float64(len(chunks) - len(failures)))
	metrics.IngestChunksTotal.WithLabelValues("failed").Add(float64(len(failures)))

	report := ingest.NewReport(documentID, filename, len(chunks), failures)
	s.logger.Info("document ingested",
		zap.String("index", index),
		zap.String("document", filename),
		zap.String("document_id", documentID),
		zap.String("status", string(report.Status())),
		zap.Int("chunks", report.TotalChunks()),
		zap.Int("indexed", report.IndexedChunks()),
		zap.Ints("failed_ordinals", report.FailedOrdinals()),
	)
	return report, nil
}

// chunkPages splits every page and assigns document-wide ordinals, so chunk
// identity stays stable across the whole document rather than per page.
func (s *Service) chunkPages(
	documentID, filename string, doc extract.Document, ingestedAt time.Time,
) ([]chunk.Chunk, error) {
	var chunks []chunk.Chunk
	ordinal := 0
	for _, page := range doc.Pages {
		for _, segment := range splitText(page.Text, s.cfg.ChunkSize) {
			c, err := chunk.New(documentID, ordinal, segment, chunk.Metadata{
				DocumentName: filename,
				Page:         page.Number,
				IngestedAt:   ingestedAt,
			})
			if err != nil {
				return nil, fmt.Errorf("chunk %d of %q: %w", ordinal, filename, err)
			}
			chunks = append(chunks, c)
			ordinal++
		}
	}
	return chunks, nil
}

// embedChunks embeds all chunks in parallel batches and attaches vectors in
// place. A provider outage aborts the whole run; any other batch failure is
// retried once, and a batch that still fails marks just its chunks failed
// while the run continues.
func (s *Service) embedChunks(ctx context.Context, chunks []chunk.Chunk) ([]ingest.ChunkFailure, error) {
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	var mu sync.Mutex
	var failures []ingest.ChunkFailure

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Workers > 0 {
		g.SetLimit(s.cfg.Workers)
	}

	for lo := 0; lo < len(chunks); lo += batchSize {
		hi := lo + batchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}
		batch := chunks[lo:hi]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].Text()
			}

			res, err := s.embedBatchWithRetry(gctx, texts)
			if err != nil {
				if errors.Is(err, domain.ErrEmbeddingModelUnavailable) || gctx.Err() != nil {
					return err
				}
				mu.Lock()
				for i := range batch {
					failures = append(failures, ingest.ChunkFailure{
						Ordinal: batch[i].Ordinal(),
						Stage:   ingest.StageEmbedded,
						Err:     err,
					})
				}
				mu.Unlock()
				return nil
			}

			for i := range batch {
				batch[i].SetVector(res.Embeddings[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	return failures, nil
}

// embedBatchWithRetry embeds one batch, retrying once after a backoff
// interval. A provider outage is not retried here; the caller aborts the run
// on it.
func (s *Service) embedBatchWithRetry(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	var res domain.BatchEmbeddingResult

	op := func() error {
		var err error
		res, err = s.embed.BatchEmbed(ctx, texts)
		if err != nil && errors.Is(err, domain.ErrEmbeddingModelUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(embedRetryInterval), 1), ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return res, nil
}

// securePath confines filename to the upload root. Any name carrying path
// separators or parent references is rejected before touching the filesystem.
func securePath(root, filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename is required: %w", domain.ErrValidation)
	}
	if strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return "", fmt.Errorf("invalid filename %q: %w", filename, domain.ErrValidation)
	}

	path := filepath.Join(root, filename)
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve upload dir: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve upload path: %w", err)
	}
	if absPath != absRoot && !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("filename %q escapes upload dir: %w", filename, domain.ErrValidation)
	}
	return path, nil
}
