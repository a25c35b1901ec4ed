// Package chunk holds the unit of indexing and retrieval: a bounded-length
// segment of a document's text. Chunks are immutable once written to the index;
// re-ingestion supersedes them under fresh identifiers instead of mutating.
package chunk

import (
	"fmt"
	"time"
)

// Metadata carries provenance for a chunk.
type Metadata struct {
	DocumentName string
	Page         int
	IngestedAt   time.Time
}

// Chunk is one indexed text segment of a document.
type Chunk struct {
	id         string
	documentID string
	ordinal    int
	text       string
	vector     []float32
	meta       Metadata
}

// New validates and creates a Chunk. The vector is attached later by SetVector
// once the embedding step has run.
func New(documentID string, ordinal int, text string, meta Metadata) (Chunk, error) {
	if documentID == "" {
		return Chunk{}, fmt.Errorf("document id is required")
	}
	if ordinal < 0 {
		return Chunk{}, fmt.Errorf("ordinal must be non-negative, got %d", ordinal)
	}
	if text == "" {
		return Chunk{}, fmt.Errorf("chunk text must not be empty")
	}
	return Chunk{
		id:         fmt.Sprintf("%s:%d", documentID, ordinal),
		documentID: documentID,
		ordinal:    ordinal,
		text:       text,
		meta:       meta,
	}, nil
}

// ID returns the chunk identifier, unique within the document.
func (c *Chunk) ID() string { return c.id }

// DocumentID returns the owning document identifier.
func (c *Chunk) DocumentID() string { return c.documentID }

// Ordinal returns the chunk position within the document.
func (c *Chunk) Ordinal() int { return c.ordinal }

// Text returns the chunk text content.
func (c *Chunk) Text() string { return c.text }

// Vector returns the embedding vector, nil before the embedding step.
func (c *Chunk) Vector() []float32 { return c.vector }

// Metadata returns the chunk provenance.
func (c *Chunk) Metadata() Metadata { return c.meta }

// SetVector attaches the embedding vector produced for this chunk.
func (c *Chunk) SetVector(v []float32) { c.vector = v }
