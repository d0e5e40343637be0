// ABOUTME: DocumentChunk is the retrievable unit of text held by the vector index
// ABOUTME: ChunkInput is what ingestion hands over; SourceSummary groups chunks per document
package models

import (
	"errors"
	"time"
)

// DocumentChunk is a bounded slice of a source document's text.
// EmbeddingIndex equals the chunk's row offset in the vector index and is
// renumbered for every surviving chunk whenever the index is rebuilt.
type DocumentChunk struct {
	Text                 string            `json:"text"`
	Source               string            `json:"source"`
	ChunkIndex           int               `json:"chunk_index"`
	EmbeddingIndex       int               `json:"embedding_index"`
	HasFinancialKeywords bool              `json:"has_financial_keywords"`
	AddedAt              time.Time         `json:"added_at"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

// Validate checks the fields that must be set on a stored chunk
func (c *DocumentChunk) Validate() error {
	if c.Source == "" {
		return errors.New("chunk source cannot be empty")
	}
	if c.ChunkIndex < 0 {
		return errors.New("chunk index cannot be negative")
	}
	if c.EmbeddingIndex < 0 {
		return errors.New("embedding index cannot be negative")
	}
	return nil
}

// ChunkInput is a chunk produced by the chunker, before embedding
type ChunkInput struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SourceSummary is one document as seen by list operations
type SourceSummary struct {
	Source     string    `json:"source"`
	ChunkCount int       `json:"chunk_count"`
	AddedAt    time.Time `json:"added_at"`
}
