// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port           string
	Env            string // "development", "staging", "production"
	LogLevel       string
	FrontendOrigin string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// GoPlus token security provider
	GoPlusBaseURL         string
	GoPlusAppKey          string
	GoPlusAppSecret       string
	GoPlusTimeout         time.Duration
	RiskCacheTTL          time.Duration // provider response cache + durable assessment reuse window
	RiskCacheMaxEntries   int
	ProviderBreakerTrips  int           // consecutive failures before the provider circuit opens
	ProviderBreakerReopen time.Duration // how long the circuit stays open

	// LiFi catalog provider
	LiFiBaseURL    string
	LiFiAPIKey     string
	LiFiTimeout    time.Duration
	ChainsCacheTTL time.Duration
	TokensCacheTTL time.Duration

	// Identity webhook ingestion
	DynamicWebhookSecret string

	// Observability
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultFrontendOrigin = "http://localhost:3000"
	DefaultGoPlusBaseURL  = "https://api.gopluslabs.io/api/v1"
	DefaultLiFiBaseURL    = "https://li.quest/v1"

	DefaultGoPlusTimeoutSeconds = 8
	DefaultRiskCacheTTLSeconds  = 300
	DefaultRiskCacheMaxEntries  = 512
	DefaultBreakerTrips         = 5
	DefaultBreakerReopenSeconds = 30

	DefaultLiFiTimeoutSeconds    = 10
	DefaultChainsCacheTTLSeconds = 21600 // 6h
	DefaultTokensCacheTTLSeconds = 3600  // 1h
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", DefaultPort),
		Env:            getEnv("ENV", DefaultEnv),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		FrontendOrigin: getEnv("FRONTEND_ORIGIN", DefaultFrontendOrigin),
		DatabaseURL:    os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set

		GoPlusBaseURL:         getEnv("GOPLUS_BASE_URL", DefaultGoPlusBaseURL),
		GoPlusAppKey:          os.Getenv("GOPLUS_APP_KEY"),
		GoPlusAppSecret:       os.Getenv("GOPLUS_APP_SECRET"),
		GoPlusTimeout:         getEnvSeconds("GOPLUS_TIMEOUT_SECONDS", DefaultGoPlusTimeoutSeconds),
		RiskCacheTTL:          getEnvSeconds("GOPLUS_TOKEN_SECURITY_CACHE_TTL_SECONDS", DefaultRiskCacheTTLSeconds),
		RiskCacheMaxEntries:   int(getEnvInt64("GOPLUS_TOKEN_SECURITY_CACHE_MAX_ENTRIES", DefaultRiskCacheMaxEntries)),
		ProviderBreakerTrips:  int(getEnvInt64("GOPLUS_BREAKER_FAILURES", DefaultBreakerTrips)),
		ProviderBreakerReopen: getEnvSeconds("GOPLUS_BREAKER_REOPEN_SECONDS", DefaultBreakerReopenSeconds),

		LiFiBaseURL:    getEnv("LIFI_BASE_URL", DefaultLiFiBaseURL),
		LiFiAPIKey:     os.Getenv("LIFI_API_KEY"),
		LiFiTimeout:    getEnvSeconds("LIFI_TIMEOUT_SECONDS", DefaultLiFiTimeoutSeconds),
		ChainsCacheTTL: getEnvSeconds("LIFI_CHAINS_CACHE_TTL_SECONDS", DefaultChainsCacheTTLSeconds),
		TokensCacheTTL: getEnvSeconds("LIFI_TOKENS_CACHE_TTL_SECONDS", DefaultTokensCacheTTLSeconds),

		DynamicWebhookSecret: os.Getenv("DYNAMIC_WEBHOOK_SECRET"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent
func (c *Config) Validate() error {
	if c.GoPlusBaseURL == "" {
		return fmt.Errorf("GOPLUS_BASE_URL must not be empty")
	}
	if c.LiFiBaseURL == "" {
		return fmt.Errorf("LIFI_BASE_URL must not be empty")
	}
	// Credentials are all-or-nothing: a key without a secret can't sign
	// the access-token handshake.
	if (c.GoPlusAppKey == "") != (c.GoPlusAppSecret == "") {
		return fmt.Errorf("GOPLUS_APP_KEY and GOPLUS_APP_SECRET must be set together")
	}
	if c.RiskCacheMaxEntries < 0 {
		return fmt.Errorf("GOPLUS_TOKEN_SECURITY_CACHE_MAX_ENTRIES must not be negative")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int64) time.Duration {
	return time.Duration(getEnvInt64(key, defaultSeconds)) * time.Second
}
