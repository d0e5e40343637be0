// ABOUTME: OpenAI client for embeddings and chat completions
// ABOUTME: Adds rate limiting, per-call timeouts, and retries with exponential backoff
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/harper/finrag/internal/config"
	"github.com/harper/finrag/internal/models"
	"github.com/harper/finrag/internal/util"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// DefaultChatModel is the default model for answer generation
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
	// DefaultDimensions matches text-embedding-3-small
	DefaultDimensions = 1536

	// embedBatchSize caps the number of inputs per embeddings request
	embedBatchSize = 100

	shortTemperature = 0.7
	shortMaxTokens   = 200
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey            string
	BaseURL           string
	ChatModel         string
	ShortModel        string
	EmbeddingModel    string
	Dimensions        int
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:         apiKey,
		ChatModel:      DefaultChatModel,
		ShortModel:     DefaultChatModel,
		EmbeddingModel: DefaultEmbeddingModel,
		Dimensions:     DefaultDimensions,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}
}

// ConfigFrom maps application configuration onto a client configuration
func ConfigFrom(cfg *config.Config) *ClientConfig {
	return &ClientConfig{
		APIKey:            cfg.OpenAIKey,
		BaseURL:           cfg.OpenAIBaseURL,
		ChatModel:         cfg.ChatModel,
		ShortModel:        cfg.ExpansionModel,
		EmbeddingModel:    cfg.EmbeddingModel,
		Dimensions:        cfg.VectorDimension,
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}

// OpenAIClient wraps the OpenAI API client with retry logic.
// It implements both Embedder and Completer.
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	shortModel     string
	embeddingModel string
	dimensions     int
	timeout        time.Duration
	maxRetries     int
	retryDelay     time.Duration
	limiter        *rate.Limiter
	logger         *slog.Logger
}

var (
	_ Embedder  = (*OpenAIClient)(nil)
	_ Completer = (*OpenAIClient)(nil)
)

// NewOpenAIClient creates a new OpenAI client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(cfg *ClientConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", models.ErrValidation)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive, got %d", models.ErrValidation, cfg.Dimensions)
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	shortModel := cfg.ShortModel
	if shortModel == "" {
		shortModel = cfg.ChatModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(oc),
		chatModel:      cfg.ChatModel,
		shortModel:     shortModel,
		embeddingModel: cfg.EmbeddingModel,
		dimensions:     cfg.Dimensions,
		timeout:        timeout,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
		limiter:        limiter,
		logger:         logger,
	}, nil
}

// Dimensions returns the configured embedding dimension
func (c *OpenAIClient) Dimensions() int {
	return c.dimensions
}

// Embed generates one embedding per text, batching large inputs
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *OpenAIClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.embeddingModel),
	}
	// Only the v3 models accept a reduced dimension
	if strings.HasPrefix(c.embeddingModel, "text-embedding-3") {
		req.Dimensions = c.dimensions
	}

	var vectors [][]float32
	err := c.withRetry(ctx, "embed", func(ctx context.Context) error {
		resp, err := c.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
		}
		vectors = make([][]float32, len(texts))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(texts) {
				return fmt.Errorf("embedding index %d out of range", d.Index)
			}
			vectors[d.Index] = d.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// Complete generates an answer for user under the given system prompt
func (c *OpenAIClient) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, int, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	}
	return c.chat(ctx, c.chatModel, messages, temperature, maxTokens)
}

// CompleteShort runs a small completion on the short-task model
func (c *OpenAIClient) CompleteShort(ctx context.Context, prompt string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}
	content, _, err := c.chat(ctx, c.shortModel, messages, shortTemperature, shortMaxTokens)
	return content, err
}

func (c *OpenAIClient) chat(ctx context.Context, model string, messages []openai.ChatCompletionMessage, temperature float64, maxTokens int) (string, int, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	}

	var (
		content string
		tokens  int
	)
	err := c.withRetry(ctx, "chat", func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no completion choices returned")
		}
		content = resp.Choices[0].Message.Content
		tokens = resp.Usage.TotalTokens
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return content, tokens, nil
}

// withRetry runs call under the rate limiter and a per-attempt timeout,
// retrying transient failures with backoff
func (c *OpenAIClient) withRetry(ctx context.Context, op string, call func(context.Context) error) error {
	policy := util.Policy{
		Retries:   c.maxRetries,
		BaseDelay: c.retryDelay,
		Retryable: isRetryable,
		OnRetry: func(attempt int, err error) {
			c.logger.Debug("openai call failed, retrying", "op", op, "attempt", attempt, "error", err)
		},
	}

	err := util.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return call(attemptCtx)
	})
	if err != nil {
		if util.IsContextError(err) && ctx.Err() != nil {
			return fmt.Errorf("%w: %s cancelled: %w", models.ErrUpstream, op, err)
		}
		return fmt.Errorf("%w: %s failed: %w", models.ErrUpstream, op, err)
	}
	return nil
}

// isRetryable reports whether an error is worth another attempt:
// rate limits, server errors, timeouts and transport failures are;
// other client errors are not
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}
