// Package config loads and validates service configuration.
//
// All external credentials (LLM API keys, JWT secret, storage credentials)
// are read here once at startup and passed into constructors explicitly.
// Nothing below this package reads the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// Config holds the validated runtime configuration for the service.
type Config struct {
	Environment  string
	IsProduction bool

	// HTTP
	Port          string
	PublicBaseURL string

	// Auth
	JWTSecret string

	// LLM backends
	OpenAIAPIKey string
	TextModel    string
	VisionModel  string

	// Record store
	DatabaseURL string // Postgres DSN; empty selects the embedded sqlite store
	SQLitePath  string

	// Redis (optional)
	RedisURL string

	// Tree store
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int
}

// ValidationError reports missing or invalid configuration.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(e.Invalid, ", "))
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", EnvDevelopment)

	cfg := &Config{
		Environment:    env,
		IsProduction:   env == EnvProduction,
		Port:           getEnv("PORT", "8080"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		TextModel:      getEnv("SITESMITH_TEXT_MODEL", "gpt-4o-mini"),
		VisionModel:    getEnv("SITESMITH_VISION_MODEL", "gpt-4o"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getEnv("SQLITE_PATH", "sitesmith.db"),
		RedisURL:       os.Getenv("REDIS_URL"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getEnv("AWS_REGION", "us-east-1"),
		S3AccessKey:    os.Getenv("AWS_ACCESS_KEY_ID"),
		S3SecretKey:    os.Getenv("AWS_SECRET_ACCESS_KEY"),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	verr := &ValidationError{}

	if c.OpenAIAPIKey == "" {
		verr.Missing = append(verr.Missing, "OPENAI_API_KEY")
	}

	if c.IsProduction {
		if c.JWTSecret == "" {
			verr.Missing = append(verr.Missing, "JWT_SECRET")
		} else if len(c.JWTSecret) < 32 {
			verr.Invalid = append(verr.Invalid, "JWT_SECRET (must be at least 32 characters)")
		}
		if c.DatabaseURL == "" {
			verr.Missing = append(verr.Missing, "DATABASE_URL")
		}
	} else if c.JWTSecret == "" {
		// Development convenience only. Production refuses to start above.
		c.JWTSecret = "sitesmith-dev-secret-not-for-production"
	}

	if c.PublicBaseURL != "" && !strings.HasPrefix(c.PublicBaseURL, "http") {
		verr.Invalid = append(verr.Invalid, "PUBLIC_BASE_URL (must be an http(s) URL)")
	}

	if len(verr.Missing) > 0 || len(verr.Invalid) > 0 {
		return verr
	}
	return nil
}

// MissingKeyGuidance returns the user-facing message emitted when the LLM
// credential is absent or rejected upstream.
func MissingKeyGuidance() string {
	return "The AI service credential is missing or invalid. Set OPENAI_API_KEY " +
		"(create one at https://platform.openai.com/api-keys) and restart the service."
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// Describe returns a redacted one-line summary suitable for startup logs.
func (c *Config) Describe() string {
	store := "sqlite"
	if c.DatabaseURL != "" {
		store = "postgres"
	}
	tree := "database"
	if c.S3Bucket != "" {
		tree = fmt.Sprintf("s3://%s", c.S3Bucket)
	}
	return fmt.Sprintf("env=%s store=%s tree=%s redis=%t text_model=%s vision_model=%s",
		c.Environment, store, tree, c.RedisURL != "", c.TextModel, c.VisionModel)
}
