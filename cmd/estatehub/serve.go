package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiaot623/estatehub/internal/hub"
	"github.com/xiaot623/estatehub/internal/policy"
	"github.com/xiaot623/estatehub/internal/service"
	"github.com/xiaot623/estatehub/internal/telemetry"
	httpserver "github.com/xiaot623/estatehub/internal/transport/http"
	mcptransport "github.com/xiaot623/estatehub/internal/transport/mcp"
	"github.com/xiaot623/estatehub/internal/transport/ws"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the public and internal HTTP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	logger.Info("starting estatehub",
		"http_port", cfg.HTTPPort,
		"internal_port", cfg.InternalPort,
		"database_driver", cfg.DatabaseDriver,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	metrics := telemetry.NewMetrics()
	registry, err := newToolRegistry(store)
	if err != nil {
		return err
	}
	agent, err := newAgent(ctx, cfg, registry, logger, metrics)
	if err != nil {
		return err
	}
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	relay := hub.NewHub(logger, metrics)
	go relay.Run(hubCtx)

	svc := service.New(store, agent, policyEngine, relay, logger, metrics)

	externalServer := httpserver.NewExternalServer(svc, httpserver.ExternalOptions{
		ClientURL: cfg.ClientURL,
		WebSocket: ws.NewServer(cfg, relay, svc, logger),
		MCP:       mcptransport.NewHandler(mcptransport.NewServer(registry, logger), logger),
	}, logger)
	internalServer := httpserver.NewInternalServer(svc, relay, metrics, logger)

	errCh := make(chan error, 2)
	go func() {
		if err := externalServer.Start(fmt.Sprintf(":%d", cfg.HTTPPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("external server: %w", err)
		}
	}()
	go func() {
		if err := internalServer.Start(fmt.Sprintf(":%d", cfg.InternalPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("internal server: %w", err)
		}
	}()
	logger.Info("servers started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down estatehub")
	case runErr = <-errCh:
		logger.Error("server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := externalServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown external server gracefully", "error", err)
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown internal server gracefully", "error", err)
	}
	stopHub()

	logger.Info("estatehub stopped")
	return runErr
}
