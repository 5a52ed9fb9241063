package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xiaot623/estatehub/internal/repository"
)

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert listings from a YAML file into the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			listings, err := repository.DecodeListings(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			defer store.Close()

			if err := repository.SeedListings(ctx, store, listings); err != nil {
				return err
			}
			logger.Info("listings seeded", "count", len(listings), "file", file)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "listings.yaml", "YAML file with a top-level listings list")
	return cmd
}
