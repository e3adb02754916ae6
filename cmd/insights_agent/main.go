// Package main provides the entry point for the company insights server and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/company-insights/internal/config"
	"github.com/jonathan/company-insights/internal/observability"
)

var (
	configPath string
	verbose    bool

	// Populated by PersistentPreRunE for every subcommand.
	appConfig *config.Config
	logger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "insights_agent",
	Short: "Company website insights service",
	Long: `insights_agent scrapes a company's homepage, extracts a structured business profile with Gemini,
answers questions about it, and holds grounded follow-up conversations.

Configuration is read from --config (YAML or JSON), then environment variables (a .env file is
loaded first), then command-line flags.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Verbose = true
	}

	l, err := observability.NewLogger(cfg.EffectiveLogLevel())
	if err != nil {
		return err
	}

	appConfig = cfg
	logger = l
	return nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
