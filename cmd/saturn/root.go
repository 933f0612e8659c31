package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "saturn",
	Short: "Saturn - policy execution engine for message flows",
	Long: `Saturn applies ordered chains of policies around the sources and
operations of message flows.

Policies are declared in a bindings file that selects, for each policy,
the components it applies to and the template its chain is built from.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig initializes the global configuration from --config, or from
// the defaults when no file is given.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		if config.GetConfig() == nil {
			config.SetConfig(config.NewDefault())
		}
		return config.GetConfig(), nil
	}

	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError(cfgFile, err.Error())
	}
	return config.MustGetConfig(), nil
}

// newLogger creates the command logger. --verbose forces debug level.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	lc := cfg.Telemetry.Logging
	if verbose {
		lc.Level = "debug"
	}

	logger, err := logging.New(logging.FromConfig(lc, os.Stderr))
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, fmt.Sprintf("invalid logging configuration: %v", err))
	}
	return logger.Slog(), nil
}
