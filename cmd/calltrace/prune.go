package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/calltrace/pkg/cli"
	"mercator-hq/calltrace/pkg/retention"
)

var pruneFlags struct {
	maxAge    time.Duration
	maxTraces int64
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply retention limits to stored traces",
	Long: `Delete traces older than the maximum age, then the oldest traces beyond
the maximum count. Limits default to the retention section of the
configuration.

Examples:
  # Use the configured limits
  calltrace prune

  # Keep one day, at most 10000 traces
  calltrace prune --max-age 24h --max-traces 10000`,
	RunE: pruneTraces,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().DurationVar(&pruneFlags.maxAge, "max-age", 0, "override retention age (0 uses the config)")
	pruneCmd.Flags().Int64Var(&pruneFlags.maxTraces, "max-traces", 0, "override retained trace count (0 uses the config)")
}

func pruneTraces(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rc := &retention.Config{
		MaxAge:    cfg.Retention.MaxAge,
		MaxTraces: cfg.Retention.MaxTraces,
	}
	if pruneFlags.maxAge > 0 {
		rc.MaxAge = pruneFlags.maxAge
	}
	if pruneFlags.maxTraces > 0 {
		rc.MaxTraces = pruneFlags.maxTraces
	}

	store, err := openPersistentStore(&cfg.Sink)
	if err != nil {
		return cli.NewCommandError("prune", err)
	}
	defer store.Close()

	deleted, err := retention.NewPruner(store, rc, nil).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("prune", err)
	}
	remaining, err := store.Count(cmd.Context())
	if err != nil {
		return cli.NewCommandError("prune", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d traces, %d remaining\n", deleted, remaining)
	return nil
}
