package db

import "errors"

// Sentinel errors for backend operations.
var (
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
	ErrUnavailable   = errors.New("db: backend unavailable")
	ErrTimeout       = errors.New("db: backend timeout")
	ErrKeyNotFound   = errors.New("db: key not found")
)

// Op constants name the backend API calls for error context.
const (
	OpInfo          = "info"
	OpCatIndices    = "cat.indices"
	OpGetMapping    = "indices.get_mapping"
	OpCreateIndex   = "indices.create"
	OpIndexExists   = "indices.exists"
	OpSearch        = "search"
	OpBulk          = "bulk"
	OpDeleteByQuery = "delete_by_query"
	OpGet           = "GET"
	OpSet           = "SET"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
