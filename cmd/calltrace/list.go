package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/calltrace/pkg/cli"
	"mercator-hq/calltrace/pkg/sink"
)

// queryFlags select stored traces; shared by list and decode.
type queryFlags struct {
	session   string
	timeRange string
	limit     int
	offset    int
	newest    bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.session, "session", "", "only traces of this recorder session")
	cmd.Flags().StringVar(&f.timeRange, "time-range", "", "only traces recorded in this RFC3339 interval (start/end)")
	cmd.Flags().IntVar(&f.limit, "limit", sink.DefaultQueryLimit, "maximum number of traces")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "number of traces to skip")
	cmd.Flags().BoolVar(&f.newest, "newest", true, "newest traces first")
}

func (f *queryFlags) query() (*sink.Query, error) {
	q := &sink.Query{
		Session: f.session,
		Limit:   f.limit,
		Offset:  f.offset,
		Newest:  f.newest,
	}
	if f.timeRange != "" {
		since, until, err := parseTimeRange(f.timeRange)
		if err != nil {
			return nil, err
		}
		q.Since, q.Until = since, until
	}
	return q, nil
}

// parseTimeRange parses "start/end" where either side may be empty.
func parseTimeRange(s string) (since, until time.Time, err error) {
	start, end, ok := strings.Cut(s, "/")
	if !ok {
		return since, until, fmt.Errorf("invalid time range %q: expected start/end", s)
	}
	if start != "" {
		if since, err = time.Parse(time.RFC3339, start); err != nil {
			return since, until, fmt.Errorf("invalid start time: %w", err)
		}
	}
	if end != "" {
		if until, err = time.Parse(time.RFC3339, end); err != nil {
			return since, until, fmt.Errorf("invalid end time: %w", err)
		}
	}
	if !since.IsZero() && !until.IsZero() && !since.Before(until) {
		return since, until, fmt.Errorf("invalid time range %q: start must be before end", s)
	}
	return since, until, nil
}

var listFlags struct {
	queryFlags
	format string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored traces",
	Long: `List the traces in the trace store.

Examples:
  # Twenty most recent traces
  calltrace list --limit 20

  # Traces of one session as CSV
  calltrace list --session 20261014T120000-w0 --format csv

  # Traces recorded on one day, oldest first
  calltrace list --time-range "2026-10-14T00:00:00Z/2026-10-15T00:00:00Z" --newest=false`,
	RunE: listTraces,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags.register(listCmd)
	listCmd.Flags().StringVarP(&listFlags.format, "format", "f", "text", "output format: text, json, csv")
}

func listTraces(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(listFlags.format)
	if err != nil {
		return err
	}
	q, err := listFlags.query()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openPersistentStore(&cfg.Sink)
	if err != nil {
		return cli.NewCommandError("list", err)
	}
	defer store.Close()

	if err := writeTraceList(cmd.Context(), store, q, format, cmd.OutOrStdout()); err != nil {
		return cli.NewCommandError("list", err)
	}
	return nil
}

func writeTraceList(ctx context.Context, store sink.Store, q *sink.Query, format cli.OutputFormat, w io.Writer) error {
	traces, err := store.List(ctx, q)
	if err != nil {
		return err
	}
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(w, traces)
	}
	return cli.NewFormatter(format).FormatTo(w, traceTable(traces))
}

// traceTable renders trace metadata as a cli.Table.
type traceTable []*sink.Trace

func (t traceTable) Header() []string {
	return []string{"ID", "SESSION", "RECORDED_AT", "CHUNKS", "SIZE"}
}

func (t traceTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, tr := range t {
		rows = append(rows, []string{
			tr.ID,
			tr.Session,
			tr.RecordedAt.UTC().Format(time.RFC3339Nano),
			strconv.Itoa(tr.Chunks),
			strconv.Itoa(tr.Size),
		})
	}
	return rows
}
