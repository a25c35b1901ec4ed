// Package ingest holds the outcome types of the document ingestion pipeline.
// Failures past the extraction stage are reported as data in the Report, not
// raised as errors, so a run can continue past recoverable per-chunk failures.
package ingest

// Stage is a step of the per-file ingestion state machine.
type Stage string

// Pipeline stages. Failed is terminal and reachable from any step.
const (
	StageReceived      Stage = "received"
	StageTextExtracted Stage = "text_extracted"
	StageChunked       Stage = "chunked"
	StageEmbedded      Stage = "embedded"
	StageIndexed       Stage = "indexed"
	StageFailed        Stage = "failed"
)

// DocumentStatus is the overall outcome of one ingestion run.
type DocumentStatus string

// Document status values.
const (
	// StatusIndexed means every chunk was embedded and written.
	StatusIndexed DocumentStatus = "indexed"
	// StatusPartiallyIndexed means at least one chunk failed but others were written.
	StatusPartiallyIndexed DocumentStatus = "partially_indexed"
	StatusFailed           DocumentStatus = "failed"
)

// ChunkFailure records one chunk that could not be embedded or written.
type ChunkFailure struct {
	Ordinal int
	Stage   Stage
	Err     error
}

// Report is the outcome of ingesting one file.
type Report struct {
	documentID   string
	documentName string
	status       DocumentStatus
	totalChunks  int
	indexed      int
	failures     []ChunkFailure
}

// NewReport assembles the run outcome. Status derives from the failure count:
// no failures is indexed, all chunks failed is failed, anything between is
// partially indexed.
func NewReport(documentID, documentName string, totalChunks int, failures []ChunkFailure) Report {
	status := StatusIndexed
	switch {
	case totalChunks == 0 || len(failures) >= totalChunks:
		status = StatusFailed
	case len(failures) > 0:
		status = StatusPartiallyIndexed
	}
	return Report{
		documentID:   documentID,
		documentName: documentName,
		status:       status,
		totalChunks:  totalChunks,
		indexed:      totalChunks - len(failures),
		failures:     failures,
	}
}

// DocumentID returns the identifier minted for this run.
func (r Report) DocumentID() string { return r.documentID }

// DocumentName returns the source file name.
func (r Report) DocumentName() string { return r.documentName }

// Status returns the overall document status.
func (r Report) Status() DocumentStatus { return r.status }

// TotalChunks returns the number of chunks produced by the chunking step.
func (r Report) TotalChunks() int { return r.totalChunks }

// IndexedChunks returns the number of chunks written to the index.
func (r Report) IndexedChunks() int { return r.indexed }

// Failures returns the per-chunk failures, in ordinal order.
func (r Report) Failures() []ChunkFailure { return r.failures }

// FailedOrdinals returns just the ordinals of the failed chunks.
func (r Report) FailedOrdinals() []int {
	out := make([]int, len(r.failures))
	for i, f := range r.failures {
		out[i] = f.Ordinal
	}
	return out
}
