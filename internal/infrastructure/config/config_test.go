package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Execution config
	assert.Equal(t, "xterm-256color", cfg.Terminal.Term)
	assert.Equal(t, uint16(24), cfg.Terminal.DefaultRows)
	assert.Equal(t, 5*time.Minute, cfg.Process.SyncTimeout)
	assert.Equal(t, 256, cfg.Events.SubscriberBuffer)
	assert.True(t, cfg.Environment.UseTools)

	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"SERVER_PORT":          "9000",
		"HOST":                 "0.0.0.0",
		"ALLOWED_ORIGINS":      "http://a.test,http://b.test",
		"LOG_LEVEL":            "debug",
		"LOG_DEV":              "true",
		"RATE_LIMIT_RPS":       "500",
		"RATE_LIMIT_BURST":     "1000",
		"RATE_LIMIT_ENABLED":   "false",
		"TERMINAL_SHELL":       "/bin/zsh",
		"TERMINAL_ROWS":        "50",
		"PROCESS_SYNC_TIMEOUT": "30s",
		"EVENTS_BUFFER":        "1024",
		"ENV_USE_TOOLS":        "false",
		"ENV_WORKSPACE_DEPTH":  "5",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "/bin/zsh", cfg.Terminal.Shell)
	assert.Equal(t, uint16(50), cfg.Terminal.DefaultRows)
	assert.Equal(t, 30*time.Second, cfg.Process.SyncTimeout)
	assert.Equal(t, 1024, cfg.Events.SubscriberBuffer)
	assert.False(t, cfg.Environment.UseTools)
	assert.Equal(t, 5, cfg.Environment.WorkspaceDepth)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "not a number", key: "RATE_LIMIT_RPS", value: "fast"},
		{name: "bad duration", key: "PROCESS_SYNC_TIMEOUT", value: "soon"},
		{name: "zero rps", key: "RATE_LIMIT_RPS", value: "0"},
		{name: "zero rows", key: "TERMINAL_ROWS", value: "0"},
		{name: "zero buffer", key: "EVENTS_BUFFER", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}
