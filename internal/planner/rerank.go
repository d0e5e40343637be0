// ABOUTME: Reranker implementations: existing-score ordering and an LLM relevance judge
// ABOUTME: The LLM judge scores candidates in parallel with bounded concurrency
package planner

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/harper/finrag/internal/llm"
	"github.com/harper/finrag/internal/models"
	"golang.org/x/sync/errgroup"
)

// ScoreReranker keeps the retrieval scores as they are
type ScoreReranker struct{}

func (ScoreReranker) Rerank(_ context.Context, _ string, candidates []models.SearchResult) ([]models.SearchResult, error) {
	SortByRelevance(candidates)
	return candidates, nil
}

const rerankPrompt = `Score how relevant this document chunk is to answering the user's question.
Consider: relevance, specificity, completeness of information.

Question: %s

Document: %s

Return only a relevance score from 0.0 to 1.0`

// DefaultRerankParallelism bounds concurrent judge calls
const DefaultRerankParallelism = 4

// LLMReranker asks the model to score each candidate from 0.0 to 1.0 and
// orders by that judgement. Retrieval scores on the results are left intact;
// a candidate with an unparsable reply is ordered by its existing relevance.
type LLMReranker struct {
	Completer   llm.Completer
	Parallelism int
	Logger      *slog.Logger
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []models.SearchResult) ([]models.SearchResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := r.Parallelism
	if limit <= 0 {
		limit = DefaultRerankParallelism
	}

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.Relevance()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range candidates {
		g.Go(func() error {
			raw, err := r.Completer.CompleteShort(gctx, fmt.Sprintf(rerankPrompt, query, candidates[i].Text))
			if err != nil {
				return fmt.Errorf("judging candidate %d: %w", candidates[i].EmbeddingIndex, err)
			}
			score, ok := ParseScore(raw)
			if !ok {
				logger.Debug("unparsable relevance score", "reply", raw)
				return nil
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})
	out := make([]models.SearchResult, len(candidates))
	for i, j := range order {
		out[i] = candidates[j]
	}
	return out, nil
}

// ParseScore reads a score in [0, 1] from the start of a model reply
func ParseScore(raw string) (float64, bool) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimRight(fields[0], ".,;"), 64)
	if err != nil || v < 0 || v > 1 {
		return 0, false
	}
	return v, true
}
