// ABOUTME: Request and response contracts for the question answering pipeline
// ABOUTME: QueryRequest applies defaults and validates before the pipeline runs
package models

import (
	"fmt"
	"strings"
	"time"
)

// Query limits
const (
	MaxTopK        = 20
	MaxTemperature = 2.0
	PreviewLength  = 200
)

// QueryRequest is a question plus its retrieval and generation parameters
type QueryRequest struct {
	Query           string   `json:"query"`
	ConversationID  string   `json:"conversation_id,omitempty"`
	UseHybridSearch *bool    `json:"use_hybrid_search,omitempty"`
	TopK            int      `json:"top_k,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

// Hybrid reports whether hybrid search is requested (default true)
func (r *QueryRequest) Hybrid() bool {
	return r.UseHybridSearch == nil || *r.UseHybridSearch
}

// WithDefaults fills unset parameters
func (r QueryRequest) WithDefaults(topK int, temperature float64) QueryRequest {
	r.Query = strings.TrimSpace(r.Query)
	if r.TopK == 0 {
		r.TopK = topK
	}
	if r.Temperature == nil {
		t := temperature
		r.Temperature = &t
	}
	if r.UseHybridSearch == nil {
		h := true
		r.UseHybridSearch = &h
	}
	return r
}

// Validate checks the request after defaults are applied
func (r *QueryRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrValidation)
	}
	if r.TopK < 1 || r.TopK > MaxTopK {
		return fmt.Errorf("%w: top_k must be 1-%d, got %d", ErrValidation, MaxTopK, r.TopK)
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > MaxTemperature) {
		return fmt.Errorf("%w: temperature must be 0-%.0f, got %f", ErrValidation, MaxTemperature, *r.Temperature)
	}
	return nil
}

// SourceCitation is what a response exposes about one context chunk
type SourceCitation struct {
	Source               string  `json:"source"`
	ChunkIndex           int     `json:"chunk_index"`
	RelevanceScore       float64 `json:"relevance_score"`
	Preview              string  `json:"preview"`
	HasFinancialKeywords bool    `json:"has_financial_keywords"`
}

// NewSourceCitation builds the citation for a retrieved chunk
func NewSourceCitation(r SearchResult) SourceCitation {
	preview := r.Text
	if runes := []rune(preview); len(runes) > PreviewLength {
		preview = string(runes[:PreviewLength]) + "..."
	}
	return SourceCitation{
		Source:               r.Source,
		ChunkIndex:           r.ChunkIndex,
		RelevanceScore:       r.Relevance(),
		Preview:              preview,
		HasFinancialKeywords: r.HasFinancialKeywords,
	}
}

// QueryResponse is the answer to a QueryRequest
type QueryResponse struct {
	Answer         string           `json:"answer"`
	Sources        []SourceCitation `json:"sources"`
	ConversationID string           `json:"conversation_id"`
	TokensUsed     int              `json:"tokens_used"`
	ProcessingTime float64          `json:"processing_time"`
	SearchStrategy string           `json:"search_strategy"`
	Cached         bool             `json:"cached"`
}

// Health summarises the live state of the engine
type Health struct {
	Status            string    `json:"status"`
	ChunkCount        int       `json:"vector_store_documents"`
	SourceCount       int       `json:"sources"`
	CacheSize         int       `json:"cache_size"`
	ConversationCount int       `json:"conversations"`
	Timestamp         time.Time `json:"timestamp"`
}
