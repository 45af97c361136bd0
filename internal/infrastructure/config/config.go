package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all gateway configuration.
type Config struct {
	Server    ServerConfig
	Analyzer  AnalyzerConfig
	Store     StoreConfig
	Session   SessionConfig
	Gating    GatingConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// AnalyzerConfig holds external analyzer service configuration.
type AnalyzerConfig struct {
	URL        string        `envconfig:"ANALYZER_URL" default:"http://localhost:5000/analyze"`
	Timeout    time.Duration `envconfig:"ANALYZER_TIMEOUT" default:"20s"`
	MaxRetries int           `envconfig:"ANALYZER_MAX_RETRIES" default:"2"`
	RPS        float64       `envconfig:"ANALYZER_RPS" default:"5"`
}

// StoreConfig holds shared KV store configuration.
type StoreConfig struct {
	Backend  string `envconfig:"STORE_BACKEND" default:"memory"` // "memory" or "redis"
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Username string `envconfig:"REDIS_USERNAME" default:""`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	Prefix   string `envconfig:"REDIS_PREFIX" default:"focusgate:"`
}

// SessionConfig holds work session defaults.
type SessionConfig struct {
	DefaultDuration time.Duration `envconfig:"SESSION_DEFAULT_DURATION" default:"25m"`
	MaxDuration     time.Duration `envconfig:"SESSION_MAX_DURATION" default:"8h"`
}

// GatingConfig holds engine tunables.
type GatingConfig struct {
	InflightTTL  time.Duration `envconfig:"GATING_INFLIGHT_TTL" default:"30s"`
	GuardTTL     time.Duration `envconfig:"GATING_GUARD_TTL" default:"3s"`
	BlockPage    string        `envconfig:"GATING_BLOCK_PAGE" default:"http://localhost:8000/block"`
	AnalysisPage string        `envconfig:"GATING_ANALYSIS_PAGE" default:"http://localhost:8000/analyzing"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Analyzer: AnalyzerConfig{
			URL:        "http://localhost:5000/analyze",
			Timeout:    20 * time.Second,
			MaxRetries: 2,
			RPS:        5,
		},
		Store: StoreConfig{
			Backend: "memory",
			Addr:    "localhost:6379",
			Prefix:  "focusgate:",
		},
		Session: SessionConfig{
			DefaultDuration: 25 * time.Minute,
			MaxDuration:     8 * time.Hour,
		},
		Gating: GatingConfig{
			InflightTTL:  30 * time.Second,
			GuardTTL:     3 * time.Second,
			BlockPage:    "http://localhost:8000/block",
			AnalysisPage: "http://localhost:8000/analyzing",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
