// Package cli holds the edgar-gateway command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersionInfo is called from main with values injected at build time.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "edgar-gateway",
		Short:         "Dashboard API gateway for news, quotes and weather",
		Long:          "edgar-gateway fronts Hacker News, quotes.toscrape.com and Open-Meteo behind one JSON API for the dashboard.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (falls back to $CONFIG_FILE)")

	root.AddCommand(
		newServeCmd(&configPath),
		newNewsCmd(&configPath),
		newQuotesCmd(&configPath),
		newWeatherCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "edgar-gateway %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
