package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
	Modules   ModulesConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// CORSOrigins lists origins allowed to call the host API.
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
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

// WorkerConfig holds isolated context limits.
type WorkerConfig struct {
	MaxCallStackSize int           `envconfig:"WORKER_MAX_CALL_STACK" default:"1024"`
	BootTimeout      time.Duration `envconfig:"WORKER_BOOT_TIMEOUT" default:"5s"`
	MaxMessageBytes  int64         `envconfig:"WORKER_MAX_MESSAGE_BYTES" default:"4194304"`
	MaxWorkers       int           `envconfig:"HOST_MAX_WORKERS" default:"64"`
}

// ModulesConfig locates the bundled module table.
type ModulesConfig struct {
	Dir      string `envconfig:"MODULES_DIR"`
	Pattern  string `envconfig:"MODULES_PATTERN" default:"**/*.js"`
	Manifest string `envconfig:"MODULES_MANIFEST"`
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
			Port:        "8000",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
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
		Worker: WorkerConfig{
			MaxCallStackSize: 1024,
			BootTimeout:      5 * time.Second,
			MaxMessageBytes:  4 << 20,
			MaxWorkers:       64,
		},
		Modules: ModulesConfig{
			Pattern: "**/*.js",
		},
	}
}
