package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/xiaot623/estatehub/internal/adapter/llm"
	"github.com/xiaot623/estatehub/internal/assistant"
	"github.com/xiaot623/estatehub/internal/config"
	"github.com/xiaot623/estatehub/internal/repository"
	"github.com/xiaot623/estatehub/internal/telemetry"
	"github.com/xiaot623/estatehub/internal/tools"
)

// loadConfig reads and validates the environment configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes JSON logs to stderr so stdout stays free for the MCP stdio transport.
func newLogger(cfg *config.Config) *slog.Logger {
	logger := telemetry.NewLogger(os.Stderr, telemetry.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)
	return logger
}

// openStore opens the configured store. Both stores migrate on open.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		store, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := repository.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// newToolRegistry registers the listing tools over store.
func newToolRegistry(store repository.ListingStore) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	if err := tools.RegisterListingTools(registry, store); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return registry, nil
}

// newAgent wires the assistant over the configured model provider.
func newAgent(ctx context.Context, cfg *config.Config, registry *tools.Registry, logger *slog.Logger, metrics *telemetry.Metrics) (*assistant.Agent, error) {
	client, err := llm.NewLLMClient(ctx, llm.Options{
		Provider: cfg.LLMProvider,
		BaseURL:  cfg.LLMBaseURL,
		APIKey:   cfg.LLMAPIKey,
		Timeout:  cfg.LLMTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return assistant.New(client, registry, assistant.NewMemory(cfg.AssistantHistoryLimit), assistant.Config{
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		MaxTurns:    cfg.AssistantMaxTurns,
		ToolTimeout: cfg.ToolTimeout(),
	}, logger, metrics), nil
}
