// ABOUTME: Prompt assembly, response cache keys and conversation ids for the query pipeline
// ABOUTME: Pure helpers with no service state
package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harper/finrag/internal/models"
)

// CacheKeyPrefix scopes response cache keys
const CacheKeyPrefix = "finrag:resp:"

// Search strategy labels reported in responses
const (
	StrategyHybrid    = "hybrid"
	StrategySemantic  = "semantic"
	strategyExpansion = " + query_expansion"
)

const systemPrompt = `You are a financial research assistant specialized in analyzing documents.

Guidelines:
1. Provide accurate, data-driven answers based ONLY on the provided context
2. When citing information, reference the specific document source
3. If the context doesn't contain enough information, clearly state this
4. Use financial terminology appropriately
5. Highlight key metrics, numbers, and trends
6. Be concise but comprehensive

Context Documents:
%s

Previous Conversation:
%s`

// CacheKey derives the response cache key for a defaulted request.
// Queries differing only in case or whitespace share a key.
func CacheKey(req models.QueryRequest) string {
	temperature := 0.0
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	raw := strings.Join([]string{
		NormalizeQuery(req.Query),
		strconv.FormatBool(req.Hybrid()),
		strconv.Itoa(req.TopK),
		strconv.FormatFloat(temperature, 'f', -1, 64),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return CacheKeyPrefix + hex.EncodeToString(sum[:])
}

// NormalizeQuery lowercases and collapses whitespace
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// BuildContext renders retrieved chunks as numbered document blocks
func BuildContext(results []models.SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[Document %d] (Source: %s, Relevance: %.3f)\n%s\n", i+1, r.Source, r.Relevance(), r.Text)
	}
	return strings.Join(parts, "\n")
}

// SystemPrompt combines the assistant guidelines with context and history
func SystemPrompt(context, history string) string {
	return fmt.Sprintf(systemPrompt, context, history)
}

// NewConversationID returns conv_YYYYMMDD_HHMMSS_<8 hex>
func NewConversationID(now time.Time) string {
	return fmt.Sprintf("conv_%s_%s", now.Format("20060102_150405"), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// NewDocumentID returns doc_YYYYMMDD_HHMMSS_<source>
func NewDocumentID(now time.Time, source string) string {
	return fmt.Sprintf("doc_%s_%s", now.Format("20060102_150405"), source)
}

func searchStrategy(hybrid, expanded bool) string {
	s := StrategySemantic
	if hybrid {
		s = StrategyHybrid
	}
	if expanded {
		s += strategyExpansion
	}
	return s
}
