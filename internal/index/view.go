// ABOUTME: View is a read-only handle on one version of the index
// ABOUTME: Requests pin a View so every retrieval pass sees the same chunks
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/harper/finrag/internal/llm"
	"github.com/harper/finrag/internal/models"
)

// View is cheap to copy and safe for concurrent use
type View struct {
	s *state
}

// Len returns the number of chunks in the view
func (v View) Len() int {
	if v.s == nil {
		return 0
	}
	return len(v.s.chunks)
}

// Chunk returns the chunk at embedding index i
func (v View) Chunk(i int) models.DocumentChunk {
	return v.s.chunks[i]
}

// Search embeds query with embedder and searches this view
func (v View) Search(ctx context.Context, embedder llm.Embedder, query string, k int) ([]models.SearchResult, error) {
	if v.Len() == 0 || k <= 0 {
		return []models.SearchResult{}, nil
	}
	vecs, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		if errors.Is(err, models.ErrUpstream) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: embedding query: %w", models.ErrUpstream, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query embedding, got %d", models.ErrUpstream, len(vecs))
	}
	return v.SearchVector(vecs[0], k)
}

// SearchVector returns up to k chunks by ascending distance to vec
func (v View) SearchVector(vec []float32, k int) ([]models.SearchResult, error) {
	if v.Len() == 0 || k <= 0 {
		return []models.SearchResult{}, nil
	}
	if len(vec) != v.s.flat.dim {
		return nil, fmt.Errorf("%w: query vector has dimension %d, want %d", models.ErrValidation, len(vec), v.s.flat.dim)
	}

	hits := v.s.flat.search(vec, k)
	results := make([]models.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = models.SearchResult{
			DocumentChunk:   v.s.chunks[h.row],
			SimilarityScore: 1 / (1 + h.dist),
			Distance:        h.dist,
			Method:          models.MethodSemantic,
		}
	}
	return results, nil
}

// Sources groups chunks by source in order of first appearance
func (v View) Sources() []models.SourceSummary {
	if v.Len() == 0 {
		return []models.SourceSummary{}
	}
	pos := make(map[string]int)
	var out []models.SourceSummary
	for _, c := range v.s.chunks {
		i, ok := pos[c.Source]
		if !ok {
			i = len(out)
			pos[c.Source] = i
			out = append(out, models.SourceSummary{Source: c.Source, AddedAt: c.AddedAt})
		}
		out[i].ChunkCount++
	}
	return out
}
