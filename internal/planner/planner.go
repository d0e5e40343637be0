// ABOUTME: QueryPlanner expands questions, merges retrieval passes, and re-ranks candidates
// ABOUTME: Expansion and re-ranking degrade to no-ops instead of failing a request
package planner

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/harper/finrag/internal/llm"
	"github.com/harper/finrag/internal/models"
)

// MaxExpansions is how many expansions feed extra retrieval passes
const MaxExpansions = 2

const expansionPrompt = `You are an expert at expanding financial research queries.
Given a user's question, generate 2-3 related questions that would help retrieve more comprehensive information.
Focus on different aspects, perspectives, or related concepts.

User Question: %s

Return only the expanded queries as a JSON array, like: ["query1", "query2", "query3"]`

// Reranker reorders a candidate window; it may rescore but must not add candidates
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []models.SearchResult) ([]models.SearchResult, error)
}

// QueryPlanner is safe for concurrent use
type QueryPlanner struct {
	completer llm.Completer
	reranker  Reranker
	logger    *slog.Logger
}

// New creates a planner; a nil reranker means ScoreReranker
func New(completer llm.Completer, reranker Reranker, logger *slog.Logger) *QueryPlanner {
	if reranker == nil {
		reranker = ScoreReranker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryPlanner{completer: completer, reranker: reranker, logger: logger}
}

// Expand asks the model for related queries. It never fails: any upstream
// error or malformed reply yields no expansions.
func (p *QueryPlanner) Expand(ctx context.Context, query string) []string {
	if p.completer == nil {
		return nil
	}
	raw, err := p.completer.CompleteShort(ctx, fmt.Sprintf(expansionPrompt, query))
	if err != nil {
		p.logger.Warn("query expansion failed", "error", fmt.Errorf("%w: %w", models.ErrDegraded, err))
		return nil
	}

	expansions, err := ParseExpansions(raw, query)
	if err != nil {
		p.logger.Warn("query expansion unparsable", "error", fmt.Errorf("%w: %w", models.ErrDegraded, err))
		return nil
	}
	return expansions
}

// ParseExpansions accepts only a JSON array of strings. Empty entries,
// repeats, and case-insensitive copies of the original query are dropped.
func ParseExpansions(raw, original string) ([]string, error) {
	var items []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &items); err != nil {
		return nil, fmt.Errorf("expected a JSON array of strings: %w", err)
	}

	orig := strings.ToLower(strings.TrimSpace(original))
	seen := map[string]bool{orig: true}
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out, nil
}

// ForRetrieval returns the expansions that get their own retrieval pass
func ForRetrieval(expansions []string) []string {
	if len(expansions) > MaxExpansions {
		return expansions[:MaxExpansions]
	}
	return expansions
}

// Dedup concatenates lists keeping the first occurrence of each embedding index
func Dedup(lists ...[]models.SearchResult) []models.SearchResult {
	seen := make(map[int]bool)
	var out []models.SearchResult
	for _, list := range lists {
		for _, r := range list {
			if seen[r.EmbeddingIndex] {
				continue
			}
			seen[r.EmbeddingIndex] = true
			out = append(out, r)
		}
	}
	return out
}

// Rerank narrows candidates to k. Lists of k or fewer come back unchanged.
// Otherwise the top 2k by existing relevance go to the reranker; if it
// fails, those top k are returned.
func (p *QueryPlanner) Rerank(ctx context.Context, query string, candidates []models.SearchResult, k int) []models.SearchResult {
	if len(candidates) <= k {
		return candidates
	}

	window := slices.Clone(candidates)
	SortByRelevance(window)
	if len(window) > 2*k {
		window = window[:2*k]
	}

	reranked, err := p.reranker.Rerank(ctx, query, slices.Clone(window))
	if err != nil {
		p.logger.Warn("re-ranking failed, using retrieval order", "error", fmt.Errorf("%w: %w", models.ErrDegraded, err))
		return window[:k]
	}
	if len(reranked) > k {
		reranked = reranked[:k]
	}
	return reranked
}

// SortByRelevance orders results by descending Relevance, keeping ties in place
func SortByRelevance(results []models.SearchResult) {
	slices.SortStableFunc(results, func(a, b models.SearchResult) int {
		return cmp.Compare(b.Relevance(), a.Relevance())
	})
}
