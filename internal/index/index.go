// ABOUTME: VectorIndex owns the chunk arena and its nearest-neighbour structure
// ABOUTME: Readers load an immutable state lock-free; writers swap in a rebuilt copy
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harper/finrag/internal/llm"
	"github.com/harper/finrag/internal/models"
)

// Options configures a VectorIndex
type Options struct {
	// Dir holds the snapshot pair; empty keeps the index in memory only
	Dir string
	// Dimension overrides the embedder's dimension when positive
	Dimension int
	Logger    *slog.Logger
	// Now is the clock used for AddedAt (defaults to time.Now)
	Now func() time.Time
}

// state is one immutable version of the index.
// chunks[i].EmbeddingIndex == i and flat.rows[i] is its vector.
type state struct {
	chunks []models.DocumentChunk
	flat   *flatL2
}

// VectorIndex is safe for concurrent use
type VectorIndex struct {
	embedder llm.Embedder
	dir      string
	logger   *slog.Logger
	now      func() time.Time

	dim   int
	cur   atomic.Pointer[state]
	mu    sync.Mutex // serialises Add, Replace and Delete
	store *chunkStore
}

// New creates an index; call Initialize before use
func New(embedder llm.Embedder, opts Options) *VectorIndex {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &VectorIndex{
		embedder: embedder,
		dir:      opts.Dir,
		logger:   logger,
		now:      now,
		dim:      opts.Dimension,
	}
}

// Initialize validates the embedder and loads the snapshot pair if present
func (x *VectorIndex) Initialize(ctx context.Context) error {
	if x.embedder == nil {
		return fmt.Errorf("%w: no embedding model configured", models.ErrValidation)
	}
	if x.dim <= 0 {
		x.dim = x.embedder.Dimensions()
	}
	if x.dim <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive, got %d", models.ErrValidation, x.dim)
	}

	empty := &state{flat: newFlatL2(x.dim, nil)}
	x.cur.Store(empty)

	if x.dir == "" {
		return nil
	}

	chunkPath := filepath.Join(x.dir, ChunkFileName)
	hadChunks := chunkStoreExists(chunkPath)
	store, err := openChunkStore(chunkPath)
	if err != nil {
		return err
	}
	x.store = store

	if !hadChunks {
		x.logger.Info("no index snapshot found, starting empty", "dir", x.dir)
		return nil
	}

	loaded, err := x.loadSnapshot()
	if errors.Is(err, ErrSnapshotNotFound) {
		x.logger.Info("no vector snapshot found, starting empty", "dir", x.dir)
		return nil
	}
	if err != nil {
		x.logger.Warn("ignoring index snapshot", "dir", x.dir, "error", err)
		return nil
	}
	x.cur.Store(loaded)
	x.logger.Info("loaded index snapshot", "chunks", len(loaded.chunks), "dimension", x.dim)
	return nil
}

func (x *VectorIndex) loadSnapshot() (*state, error) {
	snap, err := loadVectors(x.dir)
	if err != nil {
		return nil, err
	}
	if snap.Dimension != x.dim {
		return nil, fmt.Errorf("snapshot dimension %d does not match %d", snap.Dimension, x.dim)
	}
	chunks, err := x.store.loadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}
	if len(chunks) != len(snap.Rows) {
		return nil, fmt.Errorf("snapshot has %d vectors but %d chunks", len(snap.Rows), len(chunks))
	}
	for i, c := range chunks {
		if c.EmbeddingIndex != i {
			return nil, fmt.Errorf("chunk embedding index %d out of sequence at row %d", c.EmbeddingIndex, i)
		}
		if len(snap.Rows[i]) != x.dim {
			return nil, fmt.Errorf("row %d has dimension %d", i, len(snap.Rows[i]))
		}
	}
	return &state{chunks: chunks, flat: newFlatL2(x.dim, snap.Rows)}, nil
}

// Close releases the chunk database
func (x *VectorIndex) Close() error {
	if x.store == nil {
		return nil
	}
	return x.store.Close()
}

func (x *VectorIndex) load() *state {
	if s := x.cur.Load(); s != nil {
		return s
	}
	return &state{flat: newFlatL2(x.dim, nil)}
}

// Dimension returns the vector dimension
func (x *VectorIndex) Dimension() int {
	return x.dim
}

// Count returns the number of live chunks
func (x *VectorIndex) Count() int {
	return len(x.load().chunks)
}

// View returns the current immutable state
func (x *VectorIndex) View() View {
	return View{s: x.load()}
}

// Add embeds inputs and appends them as chunks of source.
// Returns the number of chunks added.
func (x *VectorIndex) Add(ctx context.Context, inputs []models.ChunkInput, source string) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	vectors, err := x.embedInputs(ctx, inputs, source)
	if err != nil {
		return 0, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	prev := x.load()
	existing := 0
	for _, c := range prev.chunks {
		if c.Source == source {
			existing++
		}
	}

	chunks := make([]models.DocumentChunk, len(prev.chunks), len(prev.chunks)+len(inputs))
	copy(chunks, prev.chunks)
	chunks = x.appendChunks(chunks, inputs, source, existing)

	next := &state{chunks: chunks, flat: prev.flat.with(vectors)}
	x.cur.Store(next)
	x.persist(next)

	x.logger.Info("added chunks", "source", source, "count", len(inputs), "total", len(chunks))
	return len(inputs), nil
}

// Replace swaps every chunk of source for inputs in a single state change.
// The new chunks are embedded first; on failure the index is untouched.
func (x *VectorIndex) Replace(ctx context.Context, inputs []models.ChunkInput, source string) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	vectors, err := x.embedInputs(ctx, inputs, source)
	if err != nil {
		return 0, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	prev := x.load()
	chunks := make([]models.DocumentChunk, 0, len(prev.chunks)+len(inputs))
	rows := make([][]float32, 0, len(prev.chunks)+len(inputs))
	for i, c := range prev.chunks {
		if c.Source == source {
			continue
		}
		c.EmbeddingIndex = len(chunks)
		chunks = append(chunks, c)
		rows = append(rows, prev.flat.rows[i])
	}
	removed := len(prev.chunks) - len(chunks)
	chunks = x.appendChunks(chunks, inputs, source, 0)
	rows = append(rows, vectors...)

	next := &state{chunks: chunks, flat: newFlatL2(x.dim, rows)}
	x.cur.Store(next)
	x.persist(next)

	x.logger.Info("replaced source", "source", source, "removed", removed, "count", len(inputs), "total", len(chunks))
	return len(inputs), nil
}

// embedInputs validates inputs and embeds them outside the writer lock
func (x *VectorIndex) embedInputs(ctx context.Context, inputs []models.ChunkInput, source string) ([][]float32, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: source is required", models.ErrValidation)
	}
	texts := make([]string, len(inputs))
	for i, in := range inputs {
		if in.Text == "" {
			return nil, fmt.Errorf("%w: chunk %d has empty text", models.ErrValidation, i)
		}
		texts[i] = in.Text
	}

	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		if errors.Is(err, models.ErrUpstream) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: embedding chunks: %w", models.ErrUpstream, err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", models.ErrUpstream, len(inputs), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != x.dim {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, want %d", models.ErrValidation, i, len(v), x.dim)
		}
	}
	return vectors, nil
}

// appendChunks appends inputs as chunks of source, numbering chunk indexes
// from firstChunk and embedding indexes from len(chunks)
func (x *VectorIndex) appendChunks(chunks []models.DocumentChunk, inputs []models.ChunkInput, source string, firstChunk int) []models.DocumentChunk {
	addedAt := x.now()
	base := len(chunks)
	for i, in := range inputs {
		chunks = append(chunks, models.DocumentChunk{
			Text:                 in.Text,
			Source:               source,
			ChunkIndex:           firstChunk + i,
			EmbeddingIndex:       base + i,
			HasFinancialKeywords: HasFinancialKeywords(in.Text),
			AddedAt:              addedAt,
			Metadata:             in.Metadata,
		})
	}
	return chunks
}

// Delete removes every chunk of source and rebuilds the index from the
// retained vectors. Returns false when nothing matched.
func (x *VectorIndex) Delete(ctx context.Context, source string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	prev := x.load()
	chunks := make([]models.DocumentChunk, 0, len(prev.chunks))
	rows := make([][]float32, 0, len(prev.chunks))
	for i, c := range prev.chunks {
		if c.Source == source {
			continue
		}
		c.EmbeddingIndex = len(chunks)
		chunks = append(chunks, c)
		rows = append(rows, prev.flat.rows[i])
	}
	if len(chunks) == len(prev.chunks) {
		return false, nil
	}

	next := &state{chunks: chunks, flat: newFlatL2(x.dim, rows)}
	x.cur.Store(next)
	x.persist(next)

	x.logger.Info("deleted source", "source", source, "removed", len(prev.chunks)-len(chunks), "total", len(chunks))
	return true, nil
}

// Search embeds query and returns up to k nearest chunks
func (x *VectorIndex) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	return x.View().Search(ctx, x.embedder, query, k)
}

// SearchVector returns up to k nearest chunks to vec
func (x *VectorIndex) SearchVector(vec []float32, k int) ([]models.SearchResult, error) {
	return x.View().SearchVector(vec, k)
}

// ListSources groups chunks by source in order of first appearance
func (x *VectorIndex) ListSources() []models.SourceSummary {
	return x.View().Sources()
}

// persist writes both halves of the snapshot; failures are logged only
func (x *VectorIndex) persist(s *state) {
	if x.dir == "" || x.store == nil {
		return
	}
	if err := x.store.replaceAll(s.chunks); err != nil {
		x.logger.Error("failed to write chunk snapshot", "error", err)
		return
	}
	if err := saveVectors(x.dir, x.dim, s.flat.rows); err != nil {
		x.logger.Error("failed to write vector snapshot", "error", err)
	}
}
