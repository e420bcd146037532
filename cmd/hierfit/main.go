package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hierbayes/hierfit/internal/config"
	"github.com/hierbayes/hierfit/internal/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hierfit",
		Short: "Hierarchical Bayesian regression over structured observational data",
		Long: `hierfit prepares hierarchically structured observational data for
Bayesian regression, drives the external sampler, and composes fitted
quantities (means, exposure-response curves, odds ratios, pooling factors)
from the stored draws.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for machine consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.hierfit/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log verbosity: info, debug, or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSimulateCmd(),
		newFitCmd(),
		newFitsCmd(),
		newComposeCmd(),
		newConfigCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration for a command invocation:
// file (explicit or default location), then environment, then the --log-level
// flag on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, os.Stderr)
}
