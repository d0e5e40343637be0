// ABOUTME: Centralized configuration for the finrag retrieval engine
// ABOUTME: Loads an optional YAML file, then environment variables, with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Reranker modes
const (
	RerankerScore = "score"
	RerankerLLM   = "llm"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds all configuration for the finrag system
type Config struct {
	// OpenAI settings
	OpenAIKey         string        `yaml:"openai_api_key"`
	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	ChatModel         string        `yaml:"chat_model"`
	ExpansionModel    string        `yaml:"expansion_model"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	VectorDimension   int           `yaml:"vector_dimension"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`

	// Storage
	DataDir string `yaml:"data_dir"`

	// Generation
	MaxTokens          int     `yaml:"max_tokens"`
	DefaultTopK        int     `yaml:"top_k"`
	DefaultTemperature float64 `yaml:"temperature"`

	// Retrieval
	SemanticWeight float64 `yaml:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	ExpansionTopK  int     `yaml:"expansion_top_k"`
	Expansion      bool    `yaml:"query_expansion"`
	Reranker       string  `yaml:"reranker"`

	// Response cache
	CacheBackend    string        `yaml:"cache_backend"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries int           `yaml:"cache_max_entries"`
	RedisURL        string        `yaml:"redis_url"`

	// Ingestion
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	SampleDir    string `yaml:"sample_dir"`

	// Observability
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		ChatModel:          "gpt-4o-mini",
		ExpansionModel:     "gpt-4o-mini",
		EmbeddingModel:     "text-embedding-3-small",
		VectorDimension:    1536,
		Timeout:            30 * time.Second,
		MaxRetries:         3,
		RetryDelay:         2 * time.Second,
		RequestsPerSecond:  5,
		DataDir:            DefaultDataDir(),
		MaxTokens:          2000,
		DefaultTopK:        5,
		DefaultTemperature: 0.7,
		SemanticWeight:     0.7,
		KeywordWeight:      0.3,
		ExpansionTopK:      3,
		Expansion:          true,
		Reranker:           RerankerScore,
		CacheBackend:       CacheBackendMemory,
		CacheTTL:           time.Hour,
		CacheMaxEntries:    1000,
		ChunkSize:          800,
		ChunkOverlap:       200,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads configuration from FINRAG_CONFIG (if set) and then environment variables
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("FINRAG_CONFIG"))
}

// LoadFrom reads the YAML file at path (if non-empty) and then environment variables
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.OpenAIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIKey)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.ChatModel = getEnv("FINRAG_CHAT_MODEL", cfg.ChatModel)
	cfg.ExpansionModel = getEnv("FINRAG_EXPANSION_MODEL", cfg.ExpansionModel)
	cfg.EmbeddingModel = getEnv("FINRAG_EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.VectorDimension = getEnvInt("VECTOR_DIMENSION", cfg.VectorDimension)
	cfg.Timeout = getEnvDuration("OPENAI_TIMEOUT", cfg.Timeout)
	cfg.MaxRetries = getEnvInt("OPENAI_MAX_RETRIES", cfg.MaxRetries)
	cfg.RetryDelay = getEnvDuration("OPENAI_RETRY_DELAY", cfg.RetryDelay)
	cfg.RequestsPerSecond = getEnvFloat("OPENAI_RPS", cfg.RequestsPerSecond)
	cfg.DataDir = getEnv("FINRAG_DATA_DIR", cfg.DataDir)
	cfg.MaxTokens = getEnvInt("FINRAG_MAX_TOKENS", cfg.MaxTokens)
	cfg.DefaultTopK = getEnvInt("FINRAG_TOP_K", cfg.DefaultTopK)
	cfg.DefaultTemperature = getEnvFloat("FINRAG_TEMPERATURE", cfg.DefaultTemperature)
	cfg.SemanticWeight = getEnvFloat("FINRAG_SEMANTIC_WEIGHT", cfg.SemanticWeight)
	cfg.KeywordWeight = getEnvFloat("FINRAG_KEYWORD_WEIGHT", cfg.KeywordWeight)
	cfg.ExpansionTopK = getEnvInt("FINRAG_EXPANSION_TOP_K", cfg.ExpansionTopK)
	cfg.Expansion = getEnvBool("FINRAG_QUERY_EXPANSION", cfg.Expansion)
	cfg.Reranker = getEnv("FINRAG_RERANKER", cfg.Reranker)
	cfg.CacheBackend = getEnv("FINRAG_CACHE_BACKEND", cfg.CacheBackend)
	cfg.CacheTTL = getEnvDuration("FINRAG_CACHE_TTL", cfg.CacheTTL)
	cfg.CacheMaxEntries = getEnvInt("FINRAG_CACHE_MAX_ENTRIES", cfg.CacheMaxEntries)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.ChunkSize = getEnvInt("FINRAG_CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = getEnvInt("FINRAG_CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.SampleDir = getEnv("FINRAG_SAMPLE_DIR", cfg.SampleDir)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.LogLevel = getEnv("FINRAG_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("FINRAG_LOG_FORMAT", cfg.LogFormat)

	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.VectorDimension <= 0 {
		return fmt.Errorf("VECTOR_DIMENSION must be positive, got %d", c.VectorDimension)
	}
	if c.DefaultTopK < 1 || c.DefaultTopK > 20 {
		return fmt.Errorf("FINRAG_TOP_K must be 1-20, got %d", c.DefaultTopK)
	}
	if c.DefaultTemperature < 0 || c.DefaultTemperature > 2 {
		return fmt.Errorf("FINRAG_TEMPERATURE must be 0-2, got %f", c.DefaultTemperature)
	}
	if c.SemanticWeight < 0 || c.KeywordWeight < 0 {
		return fmt.Errorf("search weights must be non-negative, got %f/%f", c.SemanticWeight, c.KeywordWeight)
	}
	if c.ExpansionTopK < 1 {
		return fmt.Errorf("FINRAG_EXPANSION_TOP_K must be positive, got %d", c.ExpansionTopK)
	}
	if c.Reranker != RerankerScore && c.Reranker != RerankerLLM {
		return fmt.Errorf("FINRAG_RERANKER must be %q or %q, got %q", RerankerScore, RerankerLLM, c.Reranker)
	}
	switch c.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when FINRAG_CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("FINRAG_CACHE_BACKEND must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, c.CacheBackend)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("FINRAG_CACHE_TTL must be positive, got %v", c.CacheTTL)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, chunk size), got size=%d overlap=%d", c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// IndexDir is where the index snapshot pair lives
func (c *Config) IndexDir() string {
	return filepath.Join(c.DataDir, "index")
}

// DefaultDataDir returns the default data directory following the XDG spec.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".local/share/finrag"
		}
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataHome, "finrag")
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
