// ABOUTME: Document lifecycle and introspection operations of the Service
// ABOUTME: Upload, ingest, delete, listing, conversation access and health
package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harper/finrag/internal/ingest"
	"github.com/harper/finrag/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Health statuses
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// UploadResult describes a processed document
type UploadResult struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// Upload indexes pre-chunked text under source and clears the response cache
func (s *Service) Upload(ctx context.Context, inputs []models.ChunkInput, source string) (int, error) {
	ctx, span := tracer.Start(ctx, "rag.upload", trace.WithAttributes(
		attribute.String("rag.source", source),
		attribute.Int("rag.chunks", len(inputs)),
	))
	defer span.End()

	n, err := s.index.Add(ctx, inputs, source)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if n > 0 {
		s.invalidate(ctx)
	}
	return n, nil
}

// IngestFile extracts, chunks and indexes a file, replacing any earlier
// version indexed under the same base name
func (s *Service) IngestFile(ctx context.Context, path string) (*UploadResult, error) {
	if !ingest.Supported(path) {
		return nil, fmt.Errorf("%w: unsupported file type %q, allowed: %v",
			models.ErrValidation, filepath.Ext(path), ingest.SupportedExtensions)
	}

	now := s.now()
	source, inputs, err := ingest.LoadFile(path, s.chunker, now)
	if err != nil {
		return nil, fmt.Errorf("processing %s: %w", filepath.Base(path), err)
	}
	return s.replace(ctx, source, inputs, now)
}

// IngestText chunks raw text and indexes it under source, replacing any
// chunks already indexed for source
func (s *Service) IngestText(ctx context.Context, source, text string) (*UploadResult, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: source is required", models.ErrValidation)
	}
	now := s.now()
	inputs := s.chunker.Chunk(text, ingest.Metadata(source, now))
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no indexable text in %s", models.ErrValidation, source)
	}
	return s.replace(ctx, source, inputs, now)
}

func (s *Service) replace(ctx context.Context, source string, inputs []models.ChunkInput, now time.Time) (*UploadResult, error) {
	ctx, span := tracer.Start(ctx, "rag.upload", trace.WithAttributes(
		attribute.String("rag.source", source),
		attribute.Int("rag.chunks", len(inputs)),
		attribute.Bool("rag.replace", true),
	))
	defer span.End()

	n, err := s.index.Replace(ctx, inputs, source)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("indexing %s: %w", source, err)
	}
	if n > 0 {
		s.invalidate(ctx)
	}

	s.logger.Info("document ingested", "source", source, "chunks", n)
	return &UploadResult{
		DocumentID:    NewDocumentID(now, source),
		Filename:      source,
		ChunksCreated: n,
		Status:        "success",
		Message:       fmt.Sprintf("Successfully processed %s into %d chunks", source, n),
	}, nil
}

// IngestDir indexes every supported file directly inside dir whose base name
// is not indexed yet. Per-file failures are logged and skipped.
func (s *Service) IngestDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}

	indexed := make(map[string]bool)
	for _, src := range s.index.ListSources() {
		indexed[src.Source] = true
	}

	loaded := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		if e.IsDir() || !ingest.Supported(e.Name()) || indexed[e.Name()] {
			continue
		}
		if _, err := s.IngestFile(ctx, filepath.Join(dir, e.Name())); err != nil {
			s.logger.Error("failed to load document", "file", e.Name(), "error", err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

// Delete removes every chunk of source; false when nothing matched
func (s *Service) Delete(ctx context.Context, source string) (bool, error) {
	ctx, span := tracer.Start(ctx, "rag.delete", trace.WithAttributes(attribute.String("rag.source", source)))
	defer span.End()

	ok, err := s.index.Delete(ctx, source)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if ok {
		s.invalidate(ctx)
		s.logger.Info("document deleted", "source", source)
	}
	return ok, nil
}

// ListDocuments groups indexed chunks by source, in order of first appearance
func (s *Service) ListDocuments() []models.SourceSummary {
	return s.index.ListSources()
}

// ConversationHistory returns the retained messages of id, oldest first
func (s *Service) ConversationHistory(id string) []models.Message {
	return s.conversations.History(id)
}

// ClearConversation forgets id; unknown ids are ignored
func (s *Service) ClearConversation(id string) {
	s.conversations.Clear(id)
	s.logger.Info("conversation cleared", "conversation_id", id)
}

// Health reports live counts; a failing cache backend marks the engine degraded
func (s *Service) Health(ctx context.Context) models.Health {
	h := models.Health{
		Status:            StatusHealthy,
		ChunkCount:        s.index.Count(),
		SourceCount:       len(s.index.ListSources()),
		ConversationCount: s.conversations.Count(),
		Timestamp:         s.now(),
	}
	size, err := s.cache.Size(ctx)
	if err != nil {
		s.logger.Warn("cache size unavailable", "error", fmt.Errorf("%w: %w", models.ErrDegraded, err))
		h.Status = StatusDegraded
	}
	h.CacheSize = size
	return h
}

// invalidate drops every cached response after the corpus changed
func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn("response cache not cleared", "error", fmt.Errorf("%w: %w", models.ErrDegraded, err))
	}
}

// WatchHandler adapts the Service to ingest.Handler for drop-folder watching
func (s *Service) WatchHandler() ingest.Handler {
	return watchHandler{s}
}

type watchHandler struct{ s *Service }

func (h watchHandler) Changed(ctx context.Context, path string) error {
	if !ingest.Supported(path) {
		return nil
	}
	_, err := h.s.IngestFile(ctx, path)
	return err
}

func (h watchHandler) Removed(ctx context.Context, path string) error {
	_, err := h.s.Delete(ctx, filepath.Base(path))
	return err
}
