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
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// AI backend (OpenAI-compatible chat completion endpoint)
	AIAPIKey     string // Optional; AI enrichment is disabled without it
	AIBaseURL    string
	AIModel      string
	AIMaxRetries int

	// Circuit breaker
	BreakerThreshold int
	BreakerCooldown  time.Duration

	// Inbound throttle for the AI analysis routes
	ThrottleInterval time.Duration

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint; tracing disabled if empty

	// Webhooks
	WebhookSecret string // Default HMAC secret for subscriptions created without one
}

// Defaults
const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultAIBaseURL        = "https://api.openai.com/v1"
	DefaultAIModel          = "gpt-4o-mini"
	DefaultAIMaxRetries     = 3
	DefaultBreakerThreshold = 3
	DefaultBreakerCooldown  = 5 * time.Minute
	DefaultThrottleInterval = 500 * time.Millisecond
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:      os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		AIAPIKey:         os.Getenv("AI_API_KEY"),   // Optional, AI routes degrade without it
		AIBaseURL:        getEnv("AI_BASE_URL", DefaultAIBaseURL),
		AIModel:          getEnv("AI_MODEL", DefaultAIModel),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", DefaultAIMaxRetries),
		BreakerThreshold: getEnvInt("BREAKER_THRESHOLD", DefaultBreakerThreshold),
		BreakerCooldown:  getEnvDuration("BREAKER_COOLDOWN", DefaultBreakerCooldown),
		ThrottleInterval: getEnvDuration("THROTTLE_INTERVAL", DefaultThrottleInterval),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.AIMaxRetries < 0 {
		return fmt.Errorf("AI_MAX_RETRIES must be non-negative")
	}
	if c.AIAPIKey != "" && c.AIBaseURL == "" {
		return fmt.Errorf("AI_BASE_URL is required when AI_API_KEY is set")
	}
	return nil
}

// AIEnabled returns true when an AI backend is configured
func (c *Config) AIEnabled() bool {
	return c.AIAPIKey != ""
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
