package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Provider  ProviderConfig
	Sessions  SessionConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	MaxConnections  int           `envconfig:"MAX_CONNECTIONS" default:"1024"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// ProviderConfig holds completion provider configuration.
type ProviderConfig struct {
	BaseURL     string        `envconfig:"PROVIDER_BASE_URL" default:"https://api.groq.com/openai/v1"`
	APIKey      string        `envconfig:"GROQ_API_KEY"`
	Timeout     time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`
	LongTimeout time.Duration `envconfig:"PROVIDER_LONG_TIMEOUT" default:"120s"`
	MaxElapsed  time.Duration `envconfig:"PROVIDER_MAX_ELAPSED" default:"3m"`
	MaxAttempts int           `envconfig:"PROVIDER_MAX_ATTEMPTS" default:"3"`
	BackoffBase time.Duration `envconfig:"PROVIDER_BACKOFF_BASE" default:"1s"`
	BackoffMax  time.Duration `envconfig:"PROVIDER_BACKOFF_MAX" default:"30s"`
	RPS         float64       `envconfig:"PROVIDER_RPS" default:"0"`
	// ModelCatalog names a YAML or TOML file overriding the model table.
	ModelCatalog string `envconfig:"PROVIDER_MODEL_CATALOG"`
}

// SessionConfig holds upload session configuration.
type SessionConfig struct {
	Dir           string        `envconfig:"SESSION_DIR"`
	TTL           time.Duration `envconfig:"SESSION_TTL" default:"1h"`
	SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"10m"`
	MaxFileSize   int64         `envconfig:"UPLOAD_MAX_BYTES" default:"16777216"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds per-client rate limiting configuration.
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
	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
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
	cfg := &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			MaxConnections:  1024,
			CORSOrigins:     []string{"http://localhost:3000"},
			ShutdownTimeout: 15 * time.Second,
		},
		Provider: ProviderConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Timeout:     30 * time.Second,
			LongTimeout: 120 * time.Second,
			MaxElapsed:  3 * time.Minute,
			MaxAttempts: 3,
			BackoffBase: time.Second,
			BackoffMax:  30 * time.Second,
		},
		Sessions: SessionConfig{
			TTL:           time.Hour,
			SweepInterval: 10 * time.Minute,
			MaxFileSize:   16 << 20,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
	cfg.applyDerived()
	return cfg
}

func (c *Config) applyDerived() {
	if c.Sessions.Dir == "" {
		c.Sessions.Dir = filepath.Join(os.TempDir(), "bloom_sessions")
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port == "":
		return fmt.Errorf("invalid config: PORT is empty")
	case c.Provider.MaxAttempts < 1:
		return fmt.Errorf("invalid config: PROVIDER_MAX_ATTEMPTS must be at least 1")
	case c.Provider.LongTimeout < c.Provider.Timeout:
		return fmt.Errorf("invalid config: PROVIDER_LONG_TIMEOUT (%s) is shorter than PROVIDER_TIMEOUT (%s)",
			c.Provider.LongTimeout, c.Provider.Timeout)
	case c.Sessions.TTL <= 0:
		return fmt.Errorf("invalid config: SESSION_TTL must be positive")
	case c.Sessions.MaxFileSize <= 0:
		return fmt.Errorf("invalid config: UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}
