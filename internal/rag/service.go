// ABOUTME: Service is the long-lived question answering engine over the document index
// ABOUTME: It owns the index, retriever, planner, conversation store, response cache and completer
package rag

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harper/finrag/internal/cache"
	"github.com/harper/finrag/internal/config"
	"github.com/harper/finrag/internal/conversation"
	"github.com/harper/finrag/internal/index"
	"github.com/harper/finrag/internal/ingest"
	"github.com/harper/finrag/internal/llm"
	"github.com/harper/finrag/internal/planner"
	"github.com/harper/finrag/internal/retrieval"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/harper/finrag/internal/rag")

// Settings are the tunables of the query pipeline
type Settings struct {
	Weights            retrieval.Weights
	ExpansionTopK      int
	MaxTokens          int
	DefaultTopK        int
	DefaultTemperature float64
	CacheTTL           time.Duration
	Expansion          bool
}

// DefaultSettings matches config.Default
func DefaultSettings() Settings {
	return Settings{
		Weights:            retrieval.DefaultWeights(),
		ExpansionTopK:      3,
		MaxTokens:          2000,
		DefaultTopK:        5,
		DefaultTemperature: 0.7,
		CacheTTL:           cache.DefaultTTL,
		Expansion:          true,
	}
}

// SettingsFrom extracts pipeline settings from the loaded configuration
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		Weights:            retrieval.Weights{Semantic: cfg.SemanticWeight, Keyword: cfg.KeywordWeight},
		ExpansionTopK:      cfg.ExpansionTopK,
		MaxTokens:          cfg.MaxTokens,
		DefaultTopK:        cfg.DefaultTopK,
		DefaultTemperature: cfg.DefaultTemperature,
		CacheTTL:           cfg.CacheTTL,
		Expansion:          cfg.Expansion,
	}
}

// Deps are the collaborators a Service is built from
type Deps struct {
	Index         *index.VectorIndex
	Retriever     *retrieval.HybridRetriever
	Planner       *planner.QueryPlanner
	Conversations *conversation.Store
	Cache         cache.Cache
	Completer     llm.Completer
	Chunker       *ingest.Chunker
	Logger        *slog.Logger
	// Now defaults to time.Now
	Now func() time.Time
}

// Service is safe for concurrent use; construct once and share the pointer
type Service struct {
	index         *index.VectorIndex
	retriever     *retrieval.HybridRetriever
	planner       *planner.QueryPlanner
	conversations *conversation.Store
	cache         cache.Cache
	completer     llm.Completer
	chunker       *ingest.Chunker
	logger        *slog.Logger
	now           func() time.Time
	settings      Settings
}

// New validates deps and builds a Service
func New(deps Deps, settings Settings) (*Service, error) {
	var missing []error
	if deps.Index == nil {
		missing = append(missing, errors.New("index"))
	}
	if deps.Retriever == nil {
		missing = append(missing, errors.New("retriever"))
	}
	if deps.Planner == nil {
		missing = append(missing, errors.New("planner"))
	}
	if deps.Conversations == nil {
		missing = append(missing, errors.New("conversation store"))
	}
	if deps.Cache == nil {
		missing = append(missing, errors.New("cache"))
	}
	if deps.Completer == nil {
		missing = append(missing, errors.New("completer"))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("rag: missing dependencies: %w", errors.Join(missing...))
	}

	if deps.Chunker == nil {
		deps.Chunker = ingest.NewChunker(ingest.DefaultChunkSize, ingest.DefaultChunkOverlap)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	defaults := DefaultSettings()
	if settings.ExpansionTopK <= 0 {
		settings.ExpansionTopK = defaults.ExpansionTopK
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = defaults.MaxTokens
	}
	if settings.DefaultTopK <= 0 {
		settings.DefaultTopK = defaults.DefaultTopK
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = defaults.CacheTTL
	}

	return &Service{
		index:         deps.Index,
		retriever:     deps.Retriever,
		planner:       deps.Planner,
		conversations: deps.Conversations,
		cache:         deps.Cache,
		completer:     deps.Completer,
		chunker:       deps.Chunker,
		logger:        deps.Logger,
		now:           deps.Now,
		settings:      settings,
	}, nil
}

// Settings returns the effective pipeline settings
func (s *Service) Settings() Settings {
	return s.settings
}
