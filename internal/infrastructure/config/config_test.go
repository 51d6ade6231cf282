package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Worker config
	assert.Equal(t, 1024, cfg.Worker.MaxCallStackSize)
	assert.Equal(t, 5*time.Second, cfg.Worker.BootTimeout)
	assert.Equal(t, int64(4<<20), cfg.Worker.MaxMessageBytes)
	assert.Equal(t, 64, cfg.Worker.MaxWorkers)

	// Modules config
	assert.Equal(t, "**/*.js", cfg.Modules.Pattern)
	assert.Empty(t, cfg.Modules.Dir)
}

func TestLoadMatchesDefault(t *testing.T) {
	// Should match defaults when no env vars set
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	// Setup environment variables
	envVars := map[string]string{
		"PORT":                     "9000",
		"HOST":                     "127.0.0.1",
		"CORS_ORIGINS":             "https://a.example,https://b.example",
		"LOG_LEVEL":                "debug",
		"LOG_DEV":                  "true",
		"RATE_LIMIT_RPS":           "500",
		"RATE_LIMIT_BURST":         "1000",
		"RATE_LIMIT_ENABLED":       "false",
		"WORKER_MAX_CALL_STACK":    "256",
		"WORKER_BOOT_TIMEOUT":      "250ms",
		"WORKER_MAX_MESSAGE_BYTES": "1024",
		"HOST_MAX_WORKERS":         "2",
		"MODULES_DIR":              "./bundle",
		"MODULES_PATTERN":          "src/**/*.js",
		"MODULES_MANIFEST":         "bundle.json.gz",
	}

	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 256, cfg.Worker.MaxCallStackSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.BootTimeout)
	assert.Equal(t, int64(1024), cfg.Worker.MaxMessageBytes)
	assert.Equal(t, 2, cfg.Worker.MaxWorkers)
	assert.Equal(t, "./bundle", cfg.Modules.Dir)
	assert.Equal(t, "src/**/*.js", cfg.Modules.Pattern)
	assert.Equal(t, "bundle.json.gz", cfg.Modules.Manifest)
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("WORKER_BOOT_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 5*time.Second, cfg.Worker.BootTimeout)
}

func TestServerConfig(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		host     string
		wantPort string
		wantHost string
	}{
		{
			name:     "default values",
			wantPort: "8000",
			wantHost: "0.0.0.0",
		},
		{
			name:     "custom port",
			port:     "9000",
			wantPort: "9000",
			wantHost: "0.0.0.0",
		},
		{
			name:     "custom port and host",
			port:     "3000",
			host:     "127.0.0.1",
			wantPort: "3000",
			wantHost: "127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clean environment
			os.Unsetenv("PORT")
			os.Unsetenv("HOST")

			if tt.port != "" {
				t.Setenv("PORT", tt.port)
			}
			if tt.host != "" {
				t.Setenv("HOST", tt.host)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantPort, cfg.Server.Port)
			assert.Equal(t, tt.wantHost, cfg.Server.Host)
		})
	}
}
