// ABOUTME: Vector half of the on-disk snapshot, GOB encoded
// ABOUTME: Written to a temp file and renamed so readers never see a partial file
package index

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// VectorFileName holds the vector rows
	VectorFileName = "index.gob"

	// ChunkFileName holds the chunk records
	ChunkFileName = "chunks.db"

	// CurrentSnapshotVersion is bumped on breaking changes to the vector file
	CurrentSnapshotVersion = 1
)

// Errors returned by snapshot operations.
var (
	ErrSnapshotNotFound   = errors.New("index snapshot not found")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

type vectorSnapshot struct {
	Version   int
	Dimension int
	SavedAt   time.Time
	Rows      [][]float32
}

func saveVectors(dir string, dim int, rows [][]float32) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	path := filepath.Join(dir, VectorFileName)
	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	snap := vectorSnapshot{
		Version:   CurrentSnapshotVersion,
		Dimension: dim,
		SavedAt:   time.Now(),
		Rows:      rows,
	}
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("encoding vectors: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func loadVectors(dir string) (*vectorSnapshot, error) {
	f, err := os.Open(filepath.Join(dir, VectorFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("opening vector file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var snap vectorSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding vectors: %w", err)
	}
	if snap.Version != CurrentSnapshotVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, snap.Version, CurrentSnapshotVersion)
	}
	return &snap, nil
}
