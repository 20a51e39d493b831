package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "vectorcore",
	Short:   "Multi-tenant persistent HNSW vector search service",
	Version: "1.0.0",
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}

// Execute runs the root command, exiting 1 on any returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
