// ABOUTME: Provider interfaces for embeddings and chat completions
// ABOUTME: The retrieval engine depends only on these, never on a concrete SDK
package llm

import "context"

// Embedder turns texts into fixed-dimension vectors
type Embedder interface {
	// Embed returns one vector per text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Completer produces chat completions
type Completer interface {
	// Complete answers user under the given system prompt and reports total tokens used
	Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, int, error)
	// CompleteShort runs a small single-prompt completion (expansion, relevance judging)
	CompleteShort(ctx context.Context, prompt string) (string, error)
}
