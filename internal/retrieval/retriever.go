// ABOUTME: HybridRetriever runs semantic, keyword, and fused searches over the index
// ABOUTME: A pinned retriever answers every pass from the same index version
package retrieval

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/harper/finrag/internal/index"
	"github.com/harper/finrag/internal/llm"
	"github.com/harper/finrag/internal/models"
)

// Default fusion weights
const (
	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3
)

// Weights scale the two components of a hybrid score
type Weights struct {
	Semantic float64
	Keyword  float64
}

// DefaultWeights returns 0.7 semantic, 0.3 keyword
func DefaultWeights() Weights {
	return Weights{Semantic: DefaultSemanticWeight, Keyword: DefaultKeywordWeight}
}

// HybridRetriever searches a VectorIndex
type HybridRetriever struct {
	idx      *index.VectorIndex
	embedder llm.Embedder
}

// New creates a retriever over idx
func New(idx *index.VectorIndex, embedder llm.Embedder) *HybridRetriever {
	return &HybridRetriever{idx: idx, embedder: embedder}
}

// Pin binds a retriever to the index version current at the time of the call
func (r *HybridRetriever) Pin() *Pinned {
	return &Pinned{view: r.idx.View(), embedder: r.embedder}
}

// Semantic searches the current index version
func (r *HybridRetriever) Semantic(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	return r.Pin().Semantic(ctx, query, k)
}

// Keyword searches the current index version
func (r *HybridRetriever) Keyword(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	return r.Pin().Keyword(ctx, query, k)
}

// Hybrid searches the current index version
func (r *HybridRetriever) Hybrid(ctx context.Context, query string, k int, w Weights) ([]models.SearchResult, error) {
	return r.Pin().Hybrid(ctx, query, k, w)
}

// Pinned is a retriever bound to one index version
type Pinned struct {
	view     index.View
	embedder llm.Embedder
}

// Len returns the number of chunks visible to this retriever
func (p *Pinned) Len() int {
	return p.view.Len()
}

// Semantic returns up to k chunks nearest to the query embedding
func (p *Pinned) Semantic(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	return p.view.Search(ctx, p.embedder, query, k)
}

// Keyword scores each chunk by the fraction of distinct query terms it contains.
// Chunks with no matching term are excluded; ties keep index order.
func (p *Pinned) Keyword(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := termSet(query)
	if len(terms) == 0 || k <= 0 || p.view.Len() == 0 {
		return []models.SearchResult{}, nil
	}

	var scored []models.SearchResult
	for i := 0; i < p.view.Len(); i++ {
		c := p.view.Chunk(i)
		chunkTerms := termSet(c.Text)
		matched := 0
		for t := range terms {
			if _, ok := chunkTerms[t]; ok {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		scored = append(scored, models.SearchResult{
			DocumentChunk: c,
			KeywordScore:  float64(matched) / float64(len(terms)),
			Method:        models.MethodKeyword,
		})
	}

	slices.SortStableFunc(scored, func(a, b models.SearchResult) int {
		return cmp.Compare(b.KeywordScore, a.KeywordScore)
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	if scored == nil {
		scored = []models.SearchResult{}
	}
	return scored, nil
}

// Hybrid fuses semantic and keyword results, each oversampled to 2k,
// into CombinedScore = w.Semantic*similarity + w.Keyword*keyword
func (p *Pinned) Hybrid(ctx context.Context, query string, k int, w Weights) ([]models.SearchResult, error) {
	if k <= 0 {
		return []models.SearchResult{}, nil
	}
	semantic, err := p.Semantic(ctx, query, 2*k)
	if err != nil {
		return nil, err
	}
	keyword, err := p.Keyword(ctx, query, 2*k)
	if err != nil {
		return nil, err
	}

	byIndex := make(map[int]int, len(semantic)+len(keyword))
	merged := make([]models.SearchResult, 0, len(semantic)+len(keyword))
	for _, r := range semantic {
		byIndex[r.EmbeddingIndex] = len(merged)
		merged = append(merged, r)
	}
	for _, r := range keyword {
		if i, ok := byIndex[r.EmbeddingIndex]; ok {
			merged[i].KeywordScore = r.KeywordScore
			continue
		}
		byIndex[r.EmbeddingIndex] = len(merged)
		merged = append(merged, r)
	}

	for i := range merged {
		merged[i].Method = models.MethodHybrid
		merged[i].CombinedScore = w.Semantic*merged[i].SimilarityScore + w.Keyword*merged[i].KeywordScore
	}
	slices.SortStableFunc(merged, func(a, b models.SearchResult) int {
		return cmp.Compare(b.CombinedScore, a.CombinedScore)
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// termSet lowercases and splits on whitespace; duplicates collapse
func termSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
