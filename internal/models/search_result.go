// ABOUTME: SearchResult is a chunk annotated with retrieval scores
// ABOUTME: Every score field is always present; fusion fills missing components with 0
package models

// RetrievalMethod tags how a result was produced
type RetrievalMethod string

const (
	MethodSemantic RetrievalMethod = "semantic"
	MethodKeyword  RetrievalMethod = "keyword"
	MethodHybrid   RetrievalMethod = "hybrid"
)

// SearchResult is a copy of a DocumentChunk plus its scores
type SearchResult struct {
	DocumentChunk

	// SimilarityScore is 1/(1+distance), in (0,1]
	SimilarityScore float64 `json:"similarity_score"`
	Distance        float64 `json:"distance"`
	// KeywordScore is the fraction of query terms present, in [0,1]
	KeywordScore  float64         `json:"keyword_score"`
	CombinedScore float64         `json:"combined_score"`
	Method        RetrievalMethod `json:"retrieval_method"`
}

// Relevance returns the score that ranks this result under its retrieval method
func (r SearchResult) Relevance() float64 {
	switch r.Method {
	case MethodHybrid:
		return r.CombinedScore
	case MethodKeyword:
		return r.KeywordScore
	default:
		return r.SimilarityScore
	}
}
