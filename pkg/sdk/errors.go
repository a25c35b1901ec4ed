package sdk

import (
	"errors"
	"fmt"
)

// Sentinel errors matching the API error codes.
var (
	ErrIndexNotFound         = errors.New("index not found")
	ErrDocumentNotFound      = errors.New("document not found")
	ErrInvalidFieldSelection = errors.New("invalid field selection")
	ErrValidation            = errors.New("validation failed")
	ErrUnsupportedFormat     = errors.New("unsupported document format")
	ErrExtraction            = errors.New("text extraction failed")
	ErrServerUnavailable     = errors.New("server dependency unavailable")
	ErrUnauthorized          = errors.New("unauthorized")
)

// APIError is the decoded error payload of a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("docdex: %s (code=%s, status=%d)", e.Message, e.Code, e.StatusCode)
}

// Unwrap maps the API error code onto a sentinel for errors.Is checks.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "index_not_found":
		return ErrIndexNotFound
	case "document_not_found":
		return ErrDocumentNotFound
	case "invalid_field_selection":
		return ErrInvalidFieldSelection
	case "validation_failed", "bad_request", "vector_dim_mismatch":
		return ErrValidation
	case "unsupported_format":
		return ErrUnsupportedFormat
	case "extraction_failed":
		return ErrExtraction
	case "backend_unavailable", "backend_timeout", "embedding_provider_error", "mapping_unavailable":
		return ErrServerUnavailable
	default:
		if e.StatusCode == 401 {
			return ErrUnauthorized
		}
		return nil
	}
}
