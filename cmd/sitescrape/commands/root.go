// Package commands implements the CLI commands for sitescrape.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/sitescrape/internal/config"
	"github.com/jmylchreest/sitescrape/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "sitescrape <url> [url...]",
	Short: "Scrape a website into text and PDF",
	Long: `Sitescrape collects the pages of one website into a text file and a PDF.

Seed pages are discovered through DuckDuckGo, then the site is crawled
breadth first without leaving its domain.

Examples:
  # Scrape a site into ./output
  sitescrape example.com

  # Limit the crawl and go faster
  sitescrape https://example.com --max-pages 10 --pause 0.2

  # Several sites, one sub-directory each, with a JSON manifest
  sitescrape example.com example.org -o results --manifest json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScrape,
}

// configErr holds a config file failure until a command can report it.
var configErr error

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pflags := rootCmd.PersistentFlags()
	pflags.String("config", "", "config file (default $HOME/.sitescrape.yaml)")
	pflags.BoolP("verbose", "v", false, "enable debug logging")
	pflags.BoolP("quiet", "q", false, "only log errors")
	pflags.Bool("json-logs", false, "log as JSON lines")

	_ = viper.BindPFlag("config", pflags.Lookup("config"))
	_ = viper.BindPFlag("verbose", pflags.Lookup("verbose"))
	_ = viper.BindPFlag("quiet", pflags.Lookup("quiet"))
	_ = viper.BindPFlag("json_logs", pflags.Lookup("json-logs"))
}

func initConfig() {
	configErr = config.Init(viper.GetViper(), viper.GetString("config"))
}

// setup configures logging and loads the configuration for a command.
func setup() (config.Config, error) {
	logger.Init(logger.Options{
		Debug: viper.GetBool("verbose"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("json_logs"),
	})
	if configErr != nil {
		return config.Config{}, configErr
	}
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("config loaded", "path", used)
	}
	return config.Load(viper.GetViper())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logInfo prints a progress message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
