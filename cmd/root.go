// Package cmd contains the shopbot CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shopbot",
	Short: "ShopBot - AI shopping assistant service",
	Long: `ShopBot is an AI shopping assistant backed by a pgvector product catalog.

The model decides per turn whether to answer directly or search the catalog
by text or image similarity. Run "shopbot serve" to start the HTTP API, or
"shopbot ask" for a one-shot question from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
