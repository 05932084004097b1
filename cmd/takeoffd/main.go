// Package main implements the takeoffd CLI for construction quantity
// take-off runs.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath points at an optional YAML config file.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "takeoffd",
	Short: "Quantity take-off from construction documents",
	Long: `takeoffd extracts trade quantities from construction drawings.
It parses PDF documents (with OCR fallback for scanned pages), recovers
building dimensions, estimates per-trade quantities, reasons about them
against an indexed specification corpus, verifies the results and gates
them behind expert review.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(indexSpecsCmd)
}
