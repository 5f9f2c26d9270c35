// Package main provides the entry point for the presscan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for presscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presscan",
		Short: "News site scraper with bot-protection awareness",
		Long: `presscan scrapes article listings from news sites and extracts
headlines, publication dates, tags, and categories.

It walks a site's listing pages in order, detects bot-protection
challenges, and can present a realistic browser identity to sites
behind challenge services.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
