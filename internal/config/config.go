// Package config provides configuration for estatehub.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// Config holds the estatehub configuration.
type Config struct {
	// Server settings
	HTTPPort     int    `env:"HTTP_PORT" envDefault:"8080"`
	InternalPort int    `env:"INTERNAL_PORT" envDefault:"8081"`
	ClientURL    string `env:"CLIENT_URL" envDefault:"*"`

	// Database
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"file:estatehub.db?cache=shared&mode=rwc&_busy_timeout=5000&_txlock=immediate"`

	// LLM
	LLMProvider    string  `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMBaseURL     string  `env:"LLM_BASE_URL"`
	LLMAPIKey      string  `env:"LLM_API_KEY"`
	LLMModel       string  `env:"LLM_MODEL" envDefault:"gemini-1.5-flash"`
	LLMTemperature float64 `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMMaxTokens   int     `env:"LLM_MAX_TOKENS" envDefault:"512"`
	LLMTimeoutMs   int     `env:"LLM_TIMEOUT_MS" envDefault:"60000"`

	// Assistant
	AssistantMaxTurns     int `env:"ASSISTANT_MAX_TURNS" envDefault:"6"`
	AssistantHistoryLimit int `env:"ASSISTANT_HISTORY_LIMIT" envDefault:"50"`
	ToolTimeoutMs         int `env:"TOOL_TIMEOUT_MS" envDefault:"10000"`

	// Relay
	RelayAPIKey      string `env:"RELAY_API_KEY"`
	WSPingIntervalMs int    `env:"WS_PING_INTERVAL_MS" envDefault:"30000"`
	WSWriteTimeoutMs int    `env:"WS_WRITE_TIMEOUT_MS" envDefault:"10000"`
	WSReadTimeoutMs  int    `env:"WS_READ_TIMEOUT_MS" envDefault:"60000"`
	WSMaxMessageSize int64  `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for unsupported values.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderMock:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.AssistantMaxTurns <= 0 {
		return errors.New("ASSISTANT_MAX_TURNS must be positive")
	}
	if c.AssistantHistoryLimit <= 0 {
		return errors.New("ASSISTANT_HISTORY_LIMIT must be positive")
	}
	if c.ToolTimeoutMs < 0 {
		return errors.New("TOOL_TIMEOUT_MS must not be negative")
	}
	if c.LLMMaxTokens <= 0 || c.LLMTimeoutMs <= 0 {
		return errors.New("LLM_MAX_TOKENS and LLM_TIMEOUT_MS must be positive")
	}
	if c.WSPingIntervalMs <= 0 || c.WSWriteTimeoutMs <= 0 || c.WSReadTimeoutMs <= 0 || c.WSMaxMessageSize <= 0 {
		return errors.New("WS_* settings must be positive")
	}
	return nil
}

// LLMTimeout returns the LLM HTTP timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutMs) * time.Millisecond
}

// ToolTimeout returns the per-call tool execution bound.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutMs) * time.Millisecond
}

// WSPingInterval returns the websocket ping interval.
func (c *Config) WSPingInterval() time.Duration {
	return time.Duration(c.WSPingIntervalMs) * time.Millisecond
}

// WSWriteTimeout returns the websocket write deadline.
func (c *Config) WSWriteTimeout() time.Duration {
	return time.Duration(c.WSWriteTimeoutMs) * time.Millisecond
}

// WSReadTimeout returns the websocket read deadline.
func (c *Config) WSReadTimeout() time.Duration {
	return time.Duration(c.WSReadTimeoutMs) * time.Millisecond
}
