package domain

import "errors"

var (
	// ErrIndexNotFound signals that the target index does not exist on the backend.
	ErrIndexNotFound = errors.New("index not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrMappingUnavailable signals that index mapping metadata could not be retrieved.
	// Distinct from an index that simply has no fields.
	ErrMappingUnavailable = errors.New("mapping unavailable")
	// ErrValidation signals malformed input: bad file type, path traversal, invalid parameters.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidFieldSelection signals a text or vector field absent from the index mapping.
	ErrInvalidFieldSelection = errors.New("invalid field selection")
	// ErrBackendUnavailable signals that the search backend cannot be reached.
	ErrBackendUnavailable = errors.New("search backend unavailable")
	// ErrBackendTimeout signals a timed-out backend call. Never folded into "no results".
	ErrBackendTimeout = errors.New("search backend timeout")
	// ErrUnsupportedFormat signals an unrecognized input file type.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrExtraction signals corrupt or unreadable input during text extraction.
	ErrExtraction = errors.New("text extraction failed")
	// ErrEmbeddingModelUnavailable signals that the embedding backend cannot be reached
	// or the model cannot be served. Fatal for a whole ingestion run.
	ErrEmbeddingModelUnavailable = errors.New("embedding model unavailable")
	// ErrVectorDimMismatch signals an embedding vector of the wrong dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)
