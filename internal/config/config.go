// Package config loads configuration from environment variables and .env files.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the recommendation service
type Config struct {
	// Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Catalog source. When DATABASE_URL is set the catalog is loaded from
	// Postgres (the crawler's sink); otherwise from the JSON file.
	CatalogFile string `env:"CATALOG_FILE" envDefault:"shl_assessments.json"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Qdrant. Empty QDRANT_GRPC_URL selects the in-process vector index
	// built from the catalog's precomputed embeddings.
	QdrantGRPCURL    string `env:"QDRANT_GRPC_URL"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"assessments"`

	// Ollama
	OllamaURL            string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbeddingModel string `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	OllamaLLMModel       string `env:"OLLAMA_LLM_MODEL" envDefault:"llama3.2"`

	// Retrieval
	BM25K1        float64 `env:"BM25_K1" envDefault:"1.5"`
	BM25B         float64 `env:"BM25_B" envDefault:"0.75"`
	FusionAlpha   float64 `env:"FUSION_ALPHA" envDefault:"0.7"`
	RetrieverTopK int     `env:"RETRIEVER_TOP_K" envDefault:"20"`
	RerankTopK    int     `env:"RERANK_TOP_K" envDefault:"20"`
	MaxResults    int     `env:"MAX_RESULTS" envDefault:"10"`

	// External capability calls
	CapabilityTimeout time.Duration `env:"CAPABILITY_TIMEOUT" envDefault:"30s"`
	CapabilityRetries uint          `env:"CAPABILITY_RETRIES" envDefault:"3"`
	RequestDeadline   time.Duration `env:"REQUEST_DEADLINE" envDefault:"2m"`

	// Result cache
	CacheSize int           `env:"CACHE_SIZE" envDefault:"256"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"15m"`

	// HTTP rate limiting (requests per second per client, with burst)
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
