package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/calltrace/internal/workload"
	"mercator-hq/calltrace/pkg/cli"
	"mercator-hq/calltrace/pkg/config"
	"mercator-hq/calltrace/pkg/recorder"
	"mercator-hq/calltrace/pkg/retention"
	"mercator-hq/calltrace/pkg/sink"
	"mercator-hq/calltrace/pkg/symbols"
	"mercator-hq/calltrace/pkg/telemetry/health"
	"mercator-hq/calltrace/pkg/telemetry/metrics"
	"mercator-hq/calltrace/pkg/tracebuf"
)

var runFlags struct {
	workers        int
	duration       time.Duration
	trees          int
	seed           uint64
	maxDepth       int
	fanOut         int
	errorRate      float64
	attributeRate  float64
	leafWork       time.Duration
	metricsAddress string
	watch          bool
	progress       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Record a synthetic workload",
	Long: `Drive recorders with randomly generated call trees and store the
traces that pass the filter thresholds.

Each worker goroutine owns one recorder. All recorders share a chunk pool,
a symbol table and the queue sink in front of the trace store. While
running, metrics and health endpoints are served and the configuration
file is watched: new recorder thresholds take effect at the next trace
boundary of every recorder.

Examples:
  # Four workers for ten seconds with the default config
  calltrace run

  # Until interrupted, with a config file
  calltrace run --config config.yaml --duration 0

  # Exactly 1000 trees per worker, slower leaves
  calltrace run --trees 1000 --leaf-work 5ms --progress`,
	RunE: runWorkload,
}

func init() {
	rootCmd.AddCommand(runCmd)

	defaults := workload.DefaultConfig()
	runCmd.Flags().IntVarP(&runFlags.workers, "workers", "w", 4, "number of recorder goroutines")
	runCmd.Flags().DurationVarP(&runFlags.duration, "duration", "d", 10*time.Second, "how long to run (0 runs until interrupted)")
	runCmd.Flags().IntVar(&runFlags.trees, "trees", 0, "call trees per worker (0 is unlimited)")
	runCmd.Flags().Uint64Var(&runFlags.seed, "seed", defaults.Seed, "random seed of worker 0 (worker i uses seed+i)")
	runCmd.Flags().IntVar(&runFlags.maxDepth, "max-depth", defaults.MaxDepth, "maximum call tree depth")
	runCmd.Flags().IntVar(&runFlags.fanOut, "fan-out", defaults.MaxFanOut, "maximum callees per call")
	runCmd.Flags().Float64Var(&runFlags.errorRate, "error-rate", defaults.ErrorRate, "probability of a leaf call failing")
	runCmd.Flags().Float64Var(&runFlags.attributeRate, "attribute-rate", defaults.AttributeRate, "probability of a call carrying an attribute")
	runCmd.Flags().DurationVar(&runFlags.leafWork, "leaf-work", 2*time.Millisecond, "upper bound of the time spent in a leaf call")
	runCmd.Flags().StringVar(&runFlags.metricsAddress, "metrics-address", "", "override metrics listen address")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", true, "reload recorder thresholds when the config file changes")
	runCmd.Flags().BoolVar(&runFlags.progress, "progress", false, "show a progress bar (requires --trees)")
}

func runWorkload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.metricsAddress != "" {
		cfg.Telemetry.Metrics.Address = runFlags.metricsAddress
	}
	if runFlags.workers <= 0 {
		return fmt.Errorf("--workers must be positive")
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()
	if runFlags.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runFlags.duration)
		defer cancel()
	}

	collector := metrics.NewCollector(nil)

	store, err := openStore(&cfg.Sink)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer store.Close()

	syms, err := loadSymbols(ctx, store)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	queue := sink.NewQueueSink(store, &sink.QueueConfig{
		QueueSize:    cfg.Sink.QueueSize,
		WriteTimeout: cfg.Sink.WriteTimeout,
	}, sink.WithSymbols(syms), sink.WithObserver(collector.Sink()))

	pruner := retention.NewPruner(store, &retention.Config{
		MaxAge:    cfg.Retention.MaxAge,
		MaxTraces: cfg.Retention.MaxTraces,
		Schedule:  cfg.Retention.Schedule,
	}, collector.Retention())
	if err := pruner.Start(ctx); err != nil {
		slog.Warn("failed to start retention scheduler", "error", err)
	} else {
		defer pruner.Stop()
		if next := pruner.NextPruning(); next != nil {
			slog.Debug("retention scheduler started", "next_pruning", next)
		}
	}

	var srv *http.Server
	if cfg.Telemetry.Metrics.Enabled {
		srv = startTelemetryServer(cfg, collector, newHealthChecker(store, queue, cfg.Sink.QueueSize))
	}

	tunables := recorder.NewTunables(recorderConfig(cfg).Thresholds())
	if runFlags.watch && cfgFile != "" {
		watcher, err := config.NewWatcher(cfgFile, 0)
		if err != nil {
			slog.Warn("config watcher disabled", "error", err)
		} else {
			defer watcher.Stop()
			go func() {
				if err := watcher.Watch(ctx, func(c *config.Config) {
					tunables.Store(recorderConfig(c).Thresholds())
				}); err != nil {
					slog.Warn("config watcher stopped", "error", err)
				}
			}()
		}
	}

	pool := tracebuf.NewPool(&tracebuf.PoolConfig{
		ChunkSize: cfg.Buffer.ChunkSize,
		MaxChunks: cfg.Buffer.MaxChunks,
		MaxFree:   cfg.Buffer.MaxFree,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Recording with %d workers (backend %s)\n", runFlags.workers, cfg.Sink.Backend)

	var (
		trees        atomic.Int64
		progress     *cli.SimpleProgress
		stopProgress func()
	)
	if runFlags.progress && runFlags.trees > 0 {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "trees")
		progress.Start(int64(runFlags.trees * runFlags.workers))
		stopProgress = reportProgress(ctx, progress, &trees)
	}

	results := make([]workerResult, runFlags.workers)
	g := new(errgroup.Group)
	for i := range results {
		w := worker{
			index:    i,
			recorder: recorderConfig(cfg),
			workload: workloadConfig(runFlags.seed + uint64(i)),
			syms:     syms,
			opts: []recorder.Option{
				recorder.WithPool(pool),
				recorder.WithTunables(tunables),
				recorder.WithObserver(collector.Recorder()),
			},
			queue: queue,
			trees: &trees,
		}
		g.Go(func() error {
			var err error
			results[i], err = w.run(ctx, runFlags.trees)
			return err
		})
	}
	runErr := g.Wait()

	if progress != nil {
		stopProgress()
		progress.Update(trees.Load())
		progress.Finish()
	}
	if err := queue.Close(); err != nil && !errors.Is(err, sink.ErrQueueClosed) {
		slog.Error("failed to close queue sink", "error", err)
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry server shutdown failed", "error", err)
		}
	}

	printSummary(cmd, results, queue.Stats())
	if runErr != nil {
		return cli.NewCommandError("run", runErr)
	}
	return nil
}

// loadSymbols restores the persisted symbol table so that new traces use
// the ids already referenced by stored ones.
func loadSymbols(ctx context.Context, store sink.Store) (*symbols.Table, error) {
	persisted, err := store.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load symbols: %w", err)
	}
	syms := symbols.NewTable()
	if err := syms.Load(persisted); err != nil {
		return nil, fmt.Errorf("failed to load symbols: %w", err)
	}
	return syms, nil
}

func recorderConfig(cfg *config.Config) *recorder.Config {
	return &recorder.Config{
		MinMethodTicks:    cfg.Recorder.MinMethodTicks,
		MinTraceTicks:     cfg.Recorder.MinTraceTicks,
		InitialStackDepth: cfg.Recorder.InitialStackDepth,
		MaxStackDepth:     cfg.Recorder.MaxStackDepth,
		TickShift:         cfg.Recorder.TickShift,
	}
}

func workloadConfig(seed uint64) *workload.Config {
	cfg := workload.DefaultConfig()
	cfg.Seed = seed
	cfg.MaxDepth = runFlags.maxDepth
	cfg.MaxFanOut = runFlags.fanOut
	cfg.ErrorRate = runFlags.errorRate
	cfg.AttributeRate = runFlags.attributeRate
	cfg.LeafWork = runFlags.leafWork
	return cfg
}

// worker owns one recorder and one generator.
type worker struct {
	index    int
	recorder *recorder.Config
	workload *workload.Config
	syms     *symbols.Table
	opts     []recorder.Option
	queue    *sink.QueueSink
	trees    *atomic.Int64
}

type workerResult struct {
	Session  string
	Workload workload.Stats
	Recorder recorder.Stats
}

// run records trees until ctx is done or n trees were recorded.
func (w *worker) run(ctx context.Context, n int) (workerResult, error) {
	session := fmt.Sprintf("%s-w%d", runID, w.index)
	rec := recorder.New(w.recorder, w.queue.For(session), w.syms,
		append(w.opts, recorder.WithSession(session))...)
	gen := workload.New(w.workload, w.syms)

	var err error
	for i := 0; n <= 0 || i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		gen.Tree(rec)
		w.trees.Add(1)
		if err = rec.Err(); err != nil {
			break
		}
	}

	closeErr := rec.Close()
	if err == nil && closeErr != nil && !errors.Is(closeErr, recorder.ErrClosed) {
		err = closeErr
	}
	return workerResult{Session: session, Workload: gen.Stats(), Recorder: rec.Stats()}, err
}

// runID prefixes the session ids of one run.
var runID = time.Now().UTC().Format("20060102T150405")

func reportProgress(ctx context.Context, p cli.ProgressReporter, trees *atomic.Int64) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	ticker := time.NewTicker(200 * time.Millisecond)
	go func() {
		defer close(exited)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				p.Update(trees.Load())
			}
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

func newHealthChecker(store sink.Store, queue *sink.QueueSink, capacity int) *health.Checker {
	checker := health.New(2 * time.Second)
	checker.Register("store", func(ctx context.Context) error {
		_, err := store.Count(ctx)
		return err
	})
	checker.Register("queue", func(ctx context.Context) error {
		if depth := queue.Depth(); capacity > 0 && depth >= capacity*9/10 {
			return fmt.Errorf("queue nearly full: %d/%d", depth, capacity)
		}
		return nil
	})
	return checker
}

func startTelemetryServer(cfg *config.Config, collector *metrics.Collector, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
	checker.Mount(mux)

	srv := &http.Server{
		Addr:              cfg.Telemetry.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("starting telemetry server",
			"address", srv.Addr,
			"metrics_path", cfg.Telemetry.Metrics.Path,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("telemetry server failed", "error", err)
		}
	}()
	return srv
}

func printSummary(cmd *cobra.Command, results []workerResult, qs sink.QueueStats) {
	var (
		ws workload.Stats
		rs recorder.Stats
	)
	for _, r := range results {
		ws.Trees += r.Workload.Trees
		ws.Calls += r.Workload.Calls
		ws.Errors += r.Workload.Errors
		ws.Attributes += r.Workload.Attributes

		rs.CallsKept += r.Recorder.CallsKept
		rs.CallsDiscarded += r.Recorder.CallsDiscarded
		rs.TracesFlushed += r.Recorder.TracesFlushed
		rs.TracesDropped += r.Recorder.TracesDropped
		rs.BytesFlushed += r.Recorder.BytesFlushed
		rs.BytesDropped += r.Recorder.BytesDropped
		rs.LostEvents += r.Recorder.LostEvents
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Generated %d trees, %d calls (%d errors, %d attributes)\n",
		ws.Trees, ws.Calls, ws.Errors, ws.Attributes)
	fmt.Fprintf(out, "✓ Kept %d calls, discarded %d\n", rs.CallsKept, rs.CallsDiscarded)
	fmt.Fprintf(out, "✓ Flushed %d traces (%d bytes), dropped %d (%d bytes)\n",
		rs.TracesFlushed, rs.BytesFlushed, rs.TracesDropped, rs.BytesDropped)
	fmt.Fprintf(out, "✓ Stored %d traces, %d failed, %d dropped at the queue\n",
		qs.Written, qs.Failed, qs.Dropped)
}
