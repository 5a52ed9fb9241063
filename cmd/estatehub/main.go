// Package main is the entry point for the estatehub server and tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "estatehub",
		Short: "Real estate assistant and buyer-seller chat relay",
		Long: `estatehub serves the property assistant (a tool-calling chat over the
listing store) and the buyer-seller chat rooms with a live WebSocket relay.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newMCPCmd())
	root.AddCommand(newChatCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
