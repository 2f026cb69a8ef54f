package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/calltrace/pkg/cli"
	"mercator-hq/calltrace/pkg/sink"
	"mercator-hq/calltrace/pkg/symbols"
	"mercator-hq/calltrace/pkg/traceformat"
)

var decodeFlags struct {
	queryFlags
	format string
}

var decodeCmd = &cobra.Command{
	Use:   "decode [trace-id...]",
	Short: "Render stored traces",
	Long: `Decode stored traces and print them as indented call trees or JSON.

Without arguments the traces selected by the query flags are decoded.
Method, class and file ids are resolved through the persisted symbol table.

Examples:
  # One trace as a call tree
  calltrace decode 2f1c9a4e-8d1b-4c55-9b0e-7a1f3c2d4e5f

  # The five most recent traces as JSON
  calltrace decode --limit 5 --format json`,
	RunE: decodeTraces,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeFlags.register(decodeCmd)
	decodeCmd.Flags().StringVarP(&decodeFlags.format, "format", "f", "text", "output format: text, json")
}

func decodeTraces(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(decodeFlags.format)
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return fmt.Errorf("decode supports text and json output")
	}
	q, err := decodeFlags.query()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openPersistentStore(&cfg.Sink)
	if err != nil {
		return cli.NewCommandError("decode", err)
	}
	defer store.Close()

	if err := writeDecoded(cmd.Context(), store, args, q, format, cmd.OutOrStdout()); err != nil {
		return cli.NewCommandError("decode", err)
	}
	return nil
}

// decodedTrace is the JSON form of a decoded trace.
type decodedTrace struct {
	*sink.Trace
	Stream *traceformat.Stream `json:"stream"`
}

// writeDecoded decodes the traces named by ids, or those matching q when
// ids is empty, and writes them to w.
func writeDecoded(ctx context.Context, store sink.Store, ids []string, q *sink.Query, format cli.OutputFormat, w io.Writer) error {
	traces, err := selectTraces(ctx, store, ids, q)
	if err != nil {
		return err
	}

	persisted, err := store.Symbols(ctx)
	if err != nil {
		return fmt.Errorf("failed to load symbols: %w", err)
	}
	names := symbols.NewTable()
	if err := names.Load(persisted); err != nil {
		return fmt.Errorf("failed to load symbols: %w", err)
	}

	decoded := make([]decodedTrace, 0, len(traces))
	for _, tr := range traces {
		s, err := traceformat.Decode(tr.Data)
		if err != nil {
			return fmt.Errorf("trace %s: %w", tr.ID, err)
		}
		decoded = append(decoded, decodedTrace{Trace: tr, Stream: s})
	}

	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(w, decoded)
	}
	for i, d := range decoded {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "trace %s session=%s recorded=%s size=%d\n",
			d.ID, d.Session, d.RecordedAt.UTC().Format(time.RFC3339Nano), d.Size)
		if err := traceformat.Render(w, d.Stream, names); err != nil {
			return err
		}
	}
	return nil
}

func selectTraces(ctx context.Context, store sink.Store, ids []string, q *sink.Query) ([]*sink.Trace, error) {
	if len(ids) == 0 {
		return store.List(ctx, q)
	}

	traces := make([]*sink.Trace, 0, len(ids))
	for _, id := range ids {
		tr, err := store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("trace %s: %w", id, err)
		}
		traces = append(traces, tr)
	}
	return traces, nil
}
