// ABOUTME: Query runs the expand, retrieve, rerank, generate pipeline behind the response cache
// ABOUTME: The index state is pinned once per request and no lock is held across model calls
package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harper/finrag/internal/conversation"
	"github.com/harper/finrag/internal/models"
	"github.com/harper/finrag/internal/planner"
	"github.com/harper/finrag/internal/retrieval"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Query answers req from the indexed documents
func (s *Service) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	start := s.now()
	ctx, span := tracer.Start(ctx, "rag.query")
	defer span.End()

	req = req.WithDefaults(s.settings.DefaultTopK, s.settings.DefaultTemperature)
	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("rag.top_k", req.TopK),
		attribute.Bool("rag.hybrid", req.Hybrid()),
	)

	key := CacheKey(req)
	if resp, ok := s.fromCache(ctx, key, req); ok {
		resp.ProcessingTime = s.now().Sub(start).Seconds()
		span.SetAttributes(attribute.Bool("rag.cached", true))
		return resp, nil
	}

	// Retrieval observes the index as of request start, not after expansion
	pinned := s.retriever.Pin()

	var expansions []string
	if s.settings.Expansion {
		expansions = s.expand(ctx, req.Query)
	}

	candidates, err := s.retrieve(ctx, pinned, req, expansions)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := s.rerank(ctx, req.Query, candidates, req.TopK)

	convID := req.ConversationID
	history := s.conversations.ContextWindow(convID, conversation.DefaultWindow)
	docContext := BuildContext(results)

	answer, tokens, err := s.generate(ctx, SystemPrompt(docContext, history), req.Query, *req.Temperature)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if convID == "" {
		convID = NewConversationID(s.now())
	}
	s.conversations.Append(convID, req.Query, answer)

	sources := make([]models.SourceCitation, len(results))
	for i, r := range results {
		sources[i] = models.NewSourceCitation(r)
	}
	resp := &models.QueryResponse{
		Answer:         answer,
		Sources:        sources,
		ConversationID: convID,
		TokensUsed:     tokens,
		SearchStrategy: searchStrategy(req.Hybrid(), len(expansions) > 0),
		ProcessingTime: s.now().Sub(start).Seconds(),
	}
	s.store(ctx, key, resp)

	span.SetAttributes(
		attribute.Int("rag.sources", len(sources)),
		attribute.Int("rag.tokens", tokens),
	)
	s.logger.Info("query answered",
		"conversation_id", convID,
		"sources", len(sources),
		"tokens", tokens,
		"strategy", resp.SearchStrategy,
		"duration_s", resp.ProcessingTime)
	return resp, nil
}

// fromCache returns a cached response re-attributed to the caller's conversation
func (s *Service) fromCache(ctx context.Context, key string, req models.QueryRequest) (*models.QueryResponse, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("response cache read failed", "error", fmt.Errorf("%w: %w", models.ErrDegraded, err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var resp models.QueryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		s.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		_ = s.cache.Delete(ctx, key)
		return nil, false
	}

	resp.ConversationID = req.ConversationID
	if resp.ConversationID == "" {
		resp.ConversationID = NewConversationID(s.now())
	}
	resp.Cached = true
	s.conversations.Append(resp.ConversationID, req.Query, resp.Answer)
	s.logger.Debug("response cache hit", "conversation_id", resp.ConversationID)
	return &resp, true
}

func (s *Service) store(ctx context.Context, key string, resp *models.QueryResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("response not cached", "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.settings.CacheTTL); err != nil {
		s.logger.Warn("response cache write failed", "error", fmt.Errorf("%w: %w", models.ErrDegraded, err))
	}
}

func (s *Service) expand(ctx context.Context, query string) []string {
	ctx, span := tracer.Start(ctx, "rag.expand")
	defer span.End()

	expansions := planner.ForRetrieval(s.planner.Expand(ctx, query))
	span.SetAttributes(attribute.Int("rag.expansions", len(expansions)))
	return expansions
}

// retrieve searches the original query and each expansion against the pinned
// index state and merges the lists in that order, first occurrence winning
func (s *Service) retrieve(ctx context.Context, pinned *retrieval.Pinned, req models.QueryRequest, expansions []string) ([]models.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "rag.retrieve", trace.WithAttributes(attribute.Int("rag.queries", 1+len(expansions))))
	defer span.End()

	lists := make([][]models.SearchResult, 1+len(expansions))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results, err := s.search(gctx, pinned, req.Query, req.TopK, req.Hybrid())
		if err != nil {
			return fmt.Errorf("retrieving %q: %w", req.Query, err)
		}
		lists[0] = results
		return nil
	})
	for i, q := range expansions {
		g.Go(func() error {
			results, err := s.search(gctx, pinned, q, s.settings.ExpansionTopK, req.Hybrid())
			if err != nil {
				s.logger.Warn("expansion retrieval skipped", "query", q, "error", fmt.Errorf("%w: %w", models.ErrDegraded, err))
				return nil
			}
			lists[i+1] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := planner.Dedup(lists...)
	span.SetAttributes(attribute.Int("rag.candidates", len(merged)))
	return merged, nil
}

func (s *Service) search(ctx context.Context, pinned *retrieval.Pinned, query string, k int, hybrid bool) ([]models.SearchResult, error) {
	if hybrid {
		return pinned.Hybrid(ctx, query, k, s.settings.Weights)
	}
	return pinned.Semantic(ctx, query, k)
}

func (s *Service) rerank(ctx context.Context, query string, candidates []models.SearchResult, k int) []models.SearchResult {
	ctx, span := tracer.Start(ctx, "rag.rerank", trace.WithAttributes(attribute.Int("rag.candidates", len(candidates))))
	defer span.End()
	return s.planner.Rerank(ctx, query, candidates, k)
}

func (s *Service) generate(ctx context.Context, system, user string, temperature float64) (string, int, error) {
	ctx, span := tracer.Start(ctx, "rag.generate")
	defer span.End()

	answer, tokens, err := s.completer.Complete(ctx, system, user, temperature, s.settings.MaxTokens)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, models.ErrUpstream) {
			return "", 0, fmt.Errorf("generating answer: %w", err)
		}
		return "", 0, fmt.Errorf("%w: generating answer: %w", models.ErrUpstream, err)
	}
	return answer, tokens, nil
}
