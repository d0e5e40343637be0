// ABOUTME: Deterministic fakes for the embedding and completion interfaces
// ABOUTME: Lets index, retrieval, and pipeline tests run without network access
package llmtest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// HashEmbedder embeds text as a normalised hashed bag of words.
// Texts sharing words land close together in L2 space.
type HashEmbedder struct {
	Dim int

	mu    sync.Mutex
	err   error
	calls int
}

// NewHashEmbedder returns an embedder producing vectors of length dim
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

// FailWith makes every subsequent Embed call return err (nil restores success)
func (e *HashEmbedder) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Calls returns how many times Embed has been invoked
func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *HashEmbedder) Dimensions() int { return e.Dim }

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	err := e.err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, e.Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(e.Dim)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// CompleteCall records one Complete invocation
type CompleteCall struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer returns scripted answers and records what it was asked
type Completer struct {
	// Answer and Tokens are returned by Complete unless Err is set
	Answer string
	Tokens int
	Err    error

	// Short answers CompleteShort; nil returns an empty string
	Short func(prompt string) (string, error)

	mu         sync.Mutex
	calls      []CompleteCall
	shortCalls []string
}

func (c *Completer) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, int, error) {
	c.mu.Lock()
	c.calls = append(c.calls, CompleteCall{System: system, User: user, Temperature: temperature, MaxTokens: maxTokens})
	c.mu.Unlock()
	if c.Err != nil {
		return "", 0, c.Err
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	return c.Answer, c.Tokens, nil
}

func (c *Completer) CompleteShort(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.shortCalls = append(c.shortCalls, prompt)
	c.mu.Unlock()
	if c.Short == nil {
		return "", nil
	}
	return c.Short(prompt)
}

// Calls returns a copy of the recorded Complete invocations
func (c *Completer) Calls() []CompleteCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CompleteCall(nil), c.calls...)
}

// ShortCalls returns a copy of the recorded CompleteShort prompts
func (c *Completer) ShortCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.shortCalls...)
}
