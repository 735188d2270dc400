package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "docgraph/backend/pkg/errors"
)

// DefaultSeedURL is the listing page the original import was built for
const DefaultSeedURL = "http://www.fda.gov/ForConsumers/ByAudience/ForWomen/FreePublications/ucm116718.htm"

// Config holds all application configuration
type Config struct {
	// App
	Env      string
	LogLevel string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Elasticsearch
	ElasticsearchURLs     []string
	ElasticsearchUser     string
	ElasticsearchPassword string
	ElasticsearchIndex    string
	ElasticsearchPipeline string

	// Discovery and fetch
	SeedURL          string
	LinkSuffix       string
	UserAgent        string
	FetchTimeout     time.Duration
	MaxDocumentBytes int64
	FetchRateLimit   float64 // requests per second, 0 disables throttling
	FetchBurst       int

	// Ingestion
	Workers                     int
	StoreTimeout                time.Duration
	IndexTimeout                time.Duration
	MaxConsecutiveInfraFailures int // 0 never aborts
	EntityCacheSize             int

	// Metrics
	PushgatewayURL string
	StatusAddr     string // serves /health and /metrics during a run, empty disables
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Env:                         getEnv("ENV", "development"),
		LogLevel:                    getEnv("LOG_LEVEL", ""),
		Neo4jURI:                    getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:                   getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:               getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase:               getEnv("NEO4J_DATABASE", ""),
		ElasticsearchURLs:           getEnvList("ELASTICSEARCH_URLS", []string{"http://localhost:9200"}),
		ElasticsearchUser:           getEnv("ELASTICSEARCH_USER", ""),
		ElasticsearchPassword:       getEnv("ELASTICSEARCH_PASSWORD", ""),
		ElasticsearchIndex:          getEnv("ELASTICSEARCH_INDEX", "pdf_documents"),
		ElasticsearchPipeline:       getEnv("ELASTICSEARCH_PIPELINE", "attachment"),
		SeedURL:                     getEnv("SEED_URL", DefaultSeedURL),
		LinkSuffix:                  getEnv("LINK_SUFFIX", ".pdf"),
		UserAgent:                   getEnv("USER_AGENT", "docgraph/1.0"),
		FetchTimeout:                getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		MaxDocumentBytes:            int64(getEnvInt("MAX_DOCUMENT_BYTES", 50<<20)),
		FetchRateLimit:              getEnvFloat("FETCH_RATE_LIMIT", 0),
		FetchBurst:                  getEnvInt("FETCH_BURST", 1),
		Workers:                     getEnvInt("WORKERS", 4),
		StoreTimeout:                getEnvDuration("STORE_TIMEOUT", 10*time.Second),
		IndexTimeout:                getEnvDuration("INDEX_TIMEOUT", 30*time.Second),
		MaxConsecutiveInfraFailures: getEnvInt("MAX_CONSECUTIVE_INFRA_FAILURES", 5),
		EntityCacheSize:             getEnvInt("ENTITY_CACHE_SIZE", 4096),
		PushgatewayURL:              getEnv("PUSHGATEWAY_URL", ""),
		StatusAddr:                  getEnv("STATUS_ADDR", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_URI")
	}
	if c.Neo4jUser == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_USER")
	}
	if c.Neo4jPassword == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
	}
	if len(c.ElasticsearchURLs) == 0 {
		return apperrors.NewConfigMissingRequired("ELASTICSEARCH_URLS")
	}
	if c.ElasticsearchIndex == "" {
		return apperrors.NewConfigMissingRequired("ELASTICSEARCH_INDEX")
	}
	if c.SeedURL == "" {
		return apperrors.NewConfigMissingRequired("SEED_URL")
	}
	if u, err := url.Parse(c.SeedURL); err != nil || u.Scheme == "" || u.Host == "" {
		return apperrors.NewConfigValidationFailed("SEED_URL", "must be an absolute URL")
	}
	if !strings.HasPrefix(c.LinkSuffix, ".") {
		return apperrors.NewConfigValidationFailed("LINK_SUFFIX", "must start with a dot")
	}
	if c.Workers < 1 {
		return apperrors.NewConfigValidationFailed("WORKERS", "must be at least 1")
	}
	if c.FetchTimeout <= 0 || c.StoreTimeout <= 0 || c.IndexTimeout <= 0 {
		return apperrors.NewConfigValidationFailed("TIMEOUTS", "fetch, store and index timeouts must be positive")
	}
	if c.MaxDocumentBytes <= 0 {
		return apperrors.NewConfigValidationFailed("MAX_DOCUMENT_BYTES", "must be positive")
	}
	if c.FetchRateLimit < 0 {
		return apperrors.NewConfigValidationFailed("FETCH_RATE_LIMIT", "must not be negative")
	}
	if c.FetchRateLimit > 0 && c.FetchBurst < 1 {
		return apperrors.NewConfigValidationFailed("FETCH_BURST", "must be at least 1 when rate limiting")
	}
	if c.MaxConsecutiveInfraFailures < 0 {
		return apperrors.NewConfigValidationFailed("MAX_CONSECUTIVE_INFRA_FAILURES", "must not be negative")
	}
	if c.EntityCacheSize < 1 {
		return apperrors.NewConfigValidationFailed("ENTITY_CACHE_SIZE", "must be at least 1")
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
