package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/calltrace/pkg/cli"
	"mercator-hq/calltrace/pkg/config"
	"mercator-hq/calltrace/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "calltrace",
	Short: "calltrace - method-level call trace recorder",
	Long: `calltrace records enter, return and error events of instrumented code
into a compact CBOR trace stream and keeps only what matters:

  - Calls shorter than a threshold are rewound out of the stream
  - Whole traces shorter than a threshold are never handed to the sink
  - Errors and attributes force the calls carrying them to be kept
  - Flushed traces are queued and stored in SQLite with their symbols

The run command drives recorders with a synthetic workload; list, decode
and prune operate on the stored traces.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log format (json, text, console)")
}

// loadConfig initializes the global configuration from --config and the
// environment, applies the logging flags and installs the logger.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	cfg := config.GetConfig()

	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Telemetry.Logging.Format = logFormat
	}

	if _, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	}); err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}

	slog.Debug("configuration loaded",
		"path", cfgFile,
		"backend", cfg.Sink.Backend,
	)
	return cfg, nil
}
