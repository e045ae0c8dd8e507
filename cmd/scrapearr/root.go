package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "scrapearr",
	Short: "Scrape torrent trackers into Torznab feeds",
	Long: `scrapearr - site adapters for Russian-language torrent trackers

Logs in to each tracker, reads its listings and detail pages and normalizes
every release into a uniform record, served as a Torznab feed or printed.

Run 'scrapearr serve' to expose the sites to an aggregator.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: discovered)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("scrapearr {{.Version}}\n")
}
