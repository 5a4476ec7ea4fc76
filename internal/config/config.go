package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned by Validate when GEMINI_API_KEY is not set.
var ErrMissingAPIKey = errors.New("required environment variable GEMINI_API_KEY is not set")

type Config struct {
	// Server
	Port            string
	Env             string
	LogLevel        string
	MaxRequestBytes int64

	// Gemini AI
	GeminiAPIKey          string
	GeminiModel           string
	GeminiMaxOutputTokens int
	GeminiTimeout         time.Duration
	GeminiEndpoint        string // empty means the public API

	// Prompt presets (YAML)
	PromptPresetsFile string

	// Audit log: postgres:// URL or sqlite:<path>
	DatabaseURL    string
	AuditRetention time.Duration

	// Redis
	RedisURL string

	// API auth
	JWTSecret string

	// Rate limiting
	RateLimitPerMinute int

	// Frontend
	FrontendURL string

	// Honor X-Forwarded-For / X-Real-IP. Only safe behind a proxy that
	// overwrites them.
	TrustProxyHeaders bool
}

// Load reads the environment and fails when a required setting is absent.
func Load() (*Config, error) {
	cfg := LoadEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv reads the environment without checking required settings.
func LoadEnv() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
		MaxRequestBytes:       int64(getEnvAsIntOrDefault("MAX_REQUEST_BYTES", 1<<20)),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", "gemini-pro"),
		GeminiMaxOutputTokens: getEnvAsIntOrDefault("GEMINI_MAX_OUTPUT_TOKENS", 2048),
		GeminiTimeout:         time.Duration(getEnvAsIntOrDefault("GEMINI_TIMEOUT_SECONDS", 60)) * time.Second,
		GeminiEndpoint:        getEnvOrDefault("GEMINI_ENDPOINT", ""),
		PromptPresetsFile:     getEnvOrDefault("PROMPT_PRESETS_FILE", ""),
		DatabaseURL:           getEnvOrDefault("DATABASE_URL", ""),
		AuditRetention:        time.Duration(getEnvAsIntOrDefault("AUDIT_RETENTION_DAYS", 30)) * 24 * time.Hour,
		RedisURL:              getEnvOrDefault("REDIS_URL", ""),
		JWTSecret:             getEnvOrDefault("JWT_SECRET", ""),
		RateLimitPerMinute:    getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 30),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "*"),
		TrustProxyHeaders:     getEnvAsBool("TRUST_PROXY_HEADERS"),
	}
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// IsDevelopment reports whether the process runs in the development env.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getEnvAsBool(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}
