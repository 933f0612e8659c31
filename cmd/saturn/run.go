package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/internal/engine"
	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/server"
	"mercator-hq/saturn/pkg/telemetry"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	watch         bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the policy engine",
	Long: `Start the policy engine with the specified configuration.

The engine loads the bindings file, serves Prometheus metrics and the
/health, /ready and /version endpoints, sweeps expired pipeline caches and,
with --watch, reloads the bindings whenever the file changes.

Examples:
  # Start with defaults (./policies.yaml)
  saturn run

  # Start with a config file and hot reload
  saturn run --config /etc/saturn/config.yaml --watch

  # Validate config and bindings without starting
  saturn run --dry-run`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override metrics listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload the bindings file when it changes")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "load config and bindings without starting")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Telemetry.Metrics.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.watch {
		cfg.Policy.Watch = true
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	tel, err := telemetry.New(&cfg.Telemetry, os.Stderr, telemetry.BuildInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	})
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}
	defer tel.Shutdown(context.Background())

	logger := tel.Logger().Slog()
	slog.SetDefault(logger)

	eng, err := engine.New(cfg, logger, engine.Options{
		Collector: tel.Metrics(),
		Listeners: tel.Listeners(),
	})
	if err != nil {
		return cli.NewConfigError(cfg.Policy.FilePath, err.Error())
	}
	defer eng.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Saturn v%s\n", Version)
	fmt.Fprintf(out, "✓ Policy bindings loaded from %s (%d policies, version %s)\n",
		cfg.Policy.FilePath, eng.Provider().Registry().Count(), eng.Provider().Registry().Version())

	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	if err := eng.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	eng.RegisterHealthChecks(tel.Health())

	srv := server.New(cfg.Telemetry.Metrics.ListenAddress, &cfg.Server, tel.Handler(), logger)

	if cfg.Policy.Watch {
		fmt.Fprintf(out, "✓ Watching %s for changes\n", cfg.Policy.FilePath)
	}
	if cfg.Journal.Enabled {
		fmt.Fprintf(out, "✓ Journal enabled (%s)\n", cfg.Journal.Path)
	}
	fmt.Fprintf(out, "✓ Metrics endpoint: %s://%s%s\n", scheme(cfg), srv.Addr(), cfg.Telemetry.Metrics.Path)
	fmt.Fprintf(out, "✓ Health endpoint: %s://%s/health\n", scheme(cfg), srv.Addr())
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Engine stopped")
	return nil
}

func scheme(cfg *config.Config) string {
	if cfg.Server.TLS.Enabled {
		return "https"
	}
	return "http"
}
