// ABOUTME: LoadFile turns a document on disk into chunk inputs with provenance metadata
// ABOUTME: The file's base name becomes the source identifier
package ingest

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/harper/finrag/internal/models"
)

// Metadata keys attached to every chunk
const (
	MetaFilename     = "filename"
	MetaUploadDate   = "upload_date"
	MetaDocumentType = "document_type"

	documentType = "financial_document"
)

// LoadFile extracts and chunks path, returning its source name and chunks
func LoadFile(path string, chunker *Chunker, now time.Time) (string, []models.ChunkInput, error) {
	source := filepath.Base(path)
	text, err := ExtractText(path)
	if err != nil {
		return source, nil, err
	}

	chunks := chunker.Chunk(text, Metadata(source, now))
	if len(chunks) == 0 {
		return source, nil, fmt.Errorf("%w: no indexable text in %s", models.ErrValidation, source)
	}
	return source, chunks, nil
}

// Metadata is the provenance attached to every chunk of source
func Metadata(source string, now time.Time) map[string]string {
	return map[string]string{
		MetaFilename:     source,
		MetaUploadDate:   now.Format(time.RFC3339),
		MetaDocumentType: documentType,
	}
}
