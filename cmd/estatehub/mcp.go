package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcptransport "github.com/xiaot623/estatehub/internal/transport/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the listing tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			store, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			defer store.Close()

			registry, err := newToolRegistry(store)
			if err != nil {
				return err
			}
			logger.Info("serving MCP over stdio", "tools", len(registry.Tools()))
			return mcptransport.ServeStdio(ctx, mcptransport.NewServer(registry, logger))
		},
	}
}
