package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Logging     LogConfig
	RateLimit   RateLimitConfig
	Terminal    TerminalConfig
	Process     ProcessConfig
	Events      EventsConfig
	Environment EnvironmentConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"127.0.0.1"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,tauri://localhost"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
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

// TerminalConfig holds PTY session configuration.
type TerminalConfig struct {
	Shell       string `envconfig:"TERMINAL_SHELL"`
	Term        string `envconfig:"TERMINAL_TERM" default:"xterm-256color"`
	ColorTerm   string `envconfig:"TERMINAL_COLORTERM" default:"truecolor"`
	ReadBuffer  int    `envconfig:"TERMINAL_READ_BUFFER" default:"4096"`
	DefaultRows uint16 `envconfig:"TERMINAL_ROWS" default:"24"`
	DefaultCols uint16 `envconfig:"TERMINAL_COLS" default:"80"`
}

// ProcessConfig holds one-shot process configuration.
type ProcessConfig struct {
	SyncTimeout time.Duration `envconfig:"PROCESS_SYNC_TIMEOUT" default:"5m"`
}

// EventsConfig holds event fan-out configuration.
type EventsConfig struct {
	SubscriberBuffer int `envconfig:"EVENTS_BUFFER" default:"256"`
	HistorySize      int `envconfig:"EVENTS_HISTORY" default:"200"`
}

// EnvironmentConfig holds interpreter environment detection configuration.
type EnvironmentConfig struct {
	UseTools       bool          `envconfig:"ENV_USE_TOOLS" default:"true"`
	ToolTimeout    time.Duration `envconfig:"ENV_TOOL_TIMEOUT" default:"10s"`
	ToolCooldown   time.Duration `envconfig:"ENV_TOOL_COOLDOWN" default:"1m"`
	WorkspaceDepth int           `envconfig:"ENV_WORKSPACE_DEPTH" default:"3"`
}

// Load loads configuration from environment variables. Each setting is read
// from its section-qualified name (SERVER_PORT) or its short name (PORT).
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
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

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}
	if c.Terminal.DefaultRows == 0 || c.Terminal.DefaultCols == 0 {
		return fmt.Errorf("default terminal size must be positive")
	}
	if c.Events.SubscriberBuffer <= 0 {
		return fmt.Errorf("event buffer must be positive")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "127.0.0.1",
			AllowedOrigins:  []string{"http://localhost:5173", "tauri://localhost"},
			ShutdownTimeout: 10 * time.Second,
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
		Terminal: TerminalConfig{
			Term:        "xterm-256color",
			ColorTerm:   "truecolor",
			ReadBuffer:  4096,
			DefaultRows: 24,
			DefaultCols: 80,
		},
		Process: ProcessConfig{
			SyncTimeout: 5 * time.Minute,
		},
		Events: EventsConfig{
			SubscriberBuffer: 256,
			HistorySize:      200,
		},
		Environment: EnvironmentConfig{
			UseTools:       true,
			ToolTimeout:    10 * time.Second,
			ToolCooldown:   time.Minute,
			WorkspaceDepth: 3,
		},
	}
}
