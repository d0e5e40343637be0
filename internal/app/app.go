// ABOUTME: Wires configuration into a ready-to-use rag.Service and its resources
// ABOUTME: Chooses the cache backend and reranker, sets up logging and tracing
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harper/finrag/internal/cache"
	"github.com/harper/finrag/internal/config"
	"github.com/harper/finrag/internal/conversation"
	"github.com/harper/finrag/internal/index"
	"github.com/harper/finrag/internal/ingest"
	"github.com/harper/finrag/internal/llm"
	"github.com/harper/finrag/internal/logging"
	"github.com/harper/finrag/internal/planner"
	"github.com/harper/finrag/internal/rag"
	"github.com/harper/finrag/internal/retrieval"
	"github.com/harper/finrag/internal/tracing"
)

// Options override pieces of the wiring
type Options struct {
	// Embedder and Completer default to an OpenAI client built from Config
	Embedder  llm.Embedder
	Completer llm.Completer
	// Logger defaults to logging.Setup with the configured level and format
	Logger *slog.Logger
	// Ephemeral keeps the index in memory and never touches the snapshot pair
	Ephemeral bool
	// Version is reported to the tracing backend
	Version string
}

// App owns the long-lived engine and everything that must be closed with it
type App struct {
	Config  *config.Config
	Service *rag.Service
	Index   *index.VectorIndex
	Logger  *slog.Logger

	closers []func(context.Context) error
}

// New builds the engine from cfg and initializes the index
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.Setup(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return nil, err
		}
	}
	a := &App{Config: cfg, Logger: logger}

	shutdown, err := tracing.Setup(ctx, cfg.OTLPEndpoint, opts.Version)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	embedder, completer := opts.Embedder, opts.Completer
	if embedder == nil || completer == nil {
		clientCfg := llm.ConfigFrom(cfg)
		clientCfg.Logger = logger
		client, err := llm.NewOpenAIClientWithConfig(clientCfg)
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		if embedder == nil {
			embedder = client
		}
		if completer == nil {
			completer = client
		}
	}

	idxOpts := index.Options{Dimension: cfg.VectorDimension, Logger: logger}
	if !opts.Ephemeral {
		idxOpts.Dir = cfg.IndexDir()
	}
	idx := index.New(embedder, idxOpts)
	if err := idx.Initialize(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize index: %w", err)
	}
	a.Index = idx
	a.closers = append(a.closers, func(context.Context) error { return idx.Close() })

	respCache, err := newCache(ctx, cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if c, ok := respCache.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func(context.Context) error { return c.Close() })
	}

	svc, err := rag.New(rag.Deps{
		Index:         idx,
		Retriever:     retrieval.New(idx, embedder),
		Planner:       planner.New(completer, newReranker(cfg, completer, logger), logger),
		Conversations: conversation.New(),
		Cache:         respCache,
		Completer:     completer,
		Chunker:       ingest.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		Logger:        logger,
	}, rag.SettingsFrom(cfg))
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.Service = svc

	logger.Debug("engine ready",
		"chunks", idx.Count(),
		"cache", cfg.CacheBackend,
		"reranker", cfg.Reranker,
		"ephemeral", opts.Ephemeral)
	return a, nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		c, err := cache.NewRedis(ctx, cfg.RedisURL, rag.CacheKeyPrefix, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return c, nil
	default:
		c, err := cache.NewMemory(cfg.CacheMaxEntries, cache.WithDefaultTTL(cfg.CacheTTL))
		if err != nil {
			return nil, fmt.Errorf("failed to create response cache: %w", err)
		}
		return c, nil
	}
}

func newReranker(cfg *config.Config, completer llm.Completer, logger *slog.Logger) planner.Reranker {
	if cfg.Reranker == config.RerankerLLM {
		return &planner.LLMReranker{Completer: completer, Logger: logger}
	}
	return planner.ScoreReranker{}
}
