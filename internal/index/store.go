// ABOUTME: Chunk half of the on-disk snapshot, stored in SQLite
// ABOUTME: Uses modernc.org/sqlite for pure-Go SQLite support
package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harper/finrag/internal/models"
	_ "modernc.org/sqlite"
)

// chunkSchema has one row per live chunk keyed by its embedding index
const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
    embedding_index INTEGER PRIMARY KEY,
    source TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    text TEXT NOT NULL,
    has_financial_keywords INTEGER NOT NULL DEFAULT 0,
    metadata TEXT,
    added_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

// chunkStore wraps the SQLite connection holding chunk records
type chunkStore struct {
	conn *sql.DB
	path string
}

// openChunkStore opens or creates the chunk database at path
func openChunkStore(path string) (*chunkStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk database: %w", err)
	}
	// single writer, serialised by the index mutex
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping chunk database: %w", err)
	}
	if _, err := conn.Exec(chunkSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &chunkStore{conn: conn, path: path}, nil
}

func (s *chunkStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// replaceAll rewrites the table to exactly chunks in one transaction
func (s *chunkStore) replaceAll(chunks []models.DocumentChunk) (err error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (embedding_index, source, chunk_index, text, has_financial_keywords, metadata, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		meta, merr := encodeMetadata(c.Metadata)
		if merr != nil {
			err = merr
			return err
		}
		if _, err = stmt.Exec(c.EmbeddingIndex, c.Source, c.ChunkIndex, c.Text,
			boolToInt(c.HasFinancialKeywords), meta, c.AddedAt.UTC()); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.EmbeddingIndex, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// loadAll returns every chunk ordered by embedding index
func (s *chunkStore) loadAll() ([]models.DocumentChunk, error) {
	rows, err := s.conn.Query(`
		SELECT embedding_index, source, chunk_index, text, has_financial_keywords, metadata, added_at
		FROM chunks
		ORDER BY embedding_index ASC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chunks []models.DocumentChunk
	for rows.Next() {
		var (
			c       models.DocumentChunk
			flag    int
			meta    sql.NullString
			addedAt time.Time
		)
		if err := rows.Scan(&c.EmbeddingIndex, &c.Source, &c.ChunkIndex, &c.Text, &flag, &meta, &addedAt); err != nil {
			return nil, err
		}
		c.HasFinancialKeywords = flag != 0
		c.AddedAt = addedAt
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &c.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for chunk %d: %w", c.EmbeddingIndex, err)
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func encodeMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// chunkStoreExists reports whether a chunk database file is present
func chunkStoreExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
