package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/calltrace/pkg/sink"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// MaxAge is how long traces are kept. 0 keeps traces forever.
	// Default: 168h (7 days)
	MaxAge time.Duration `yaml:"max_age" toml:"max_age"`

	// MaxTraces is the maximum number of traces to keep. 0 means unlimited.
	// Default: 0
	MaxTraces int64 `yaml:"max_traces" toml:"max_traces"`

	// Schedule is a standard cron expression for automatic pruning.
	// Empty disables the scheduler.
	// Default: "0 3 * * *" (daily at 3 AM)
	Schedule string `yaml:"schedule" toml:"schedule"`
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxAge:    7 * 24 * time.Hour,
		MaxTraces: 0,
		Schedule:  "0 3 * * *",
	}
}

// Observer is notified after every pruning run.
type Observer interface {
	Pruned(deleted int64, duration time.Duration, err error)
}

// Pruner enforces retention limits on a trace store.
type Pruner struct {
	store     sink.Store
	config    *Config
	observer  Observer
	now       func() time.Time
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewPruner creates a new retention pruner. observer may be nil.
func NewPruner(store sink.Store, config *Config, observer Observer) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pruner{
		store:    store,
		config:   config,
		observer: observer,
		now:      time.Now,
		logger:   slog.Default().With("component", "retention"),
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Prune deletes traces older than MaxAge, then the oldest traces beyond
// MaxTraces. It returns the total number of traces deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	start := time.Now()
	deleted, err := p.prune(ctx)
	if p.observer != nil {
		p.observer.Pruned(deleted, time.Since(start), err)
	}
	return deleted, err
}

func (p *Pruner) prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.MaxAge > 0 {
		cutoff := p.now().Add(-p.config.MaxAge)
		deleted, err := p.store.DeleteBefore(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
		p.logger.Debug("pruned traces by age",
			"deleted_count", deleted,
			"cutoff_time", cutoff,
		)
	}

	if p.config.MaxTraces > 0 {
		deleted, err := p.store.DeleteOldest(ctx, p.config.MaxTraces)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
		p.logger.Debug("pruned traces by count",
			"deleted_count", deleted,
			"max_traces", p.config.MaxTraces,
		)
	}

	if total > 0 {
		p.logger.Info("trace pruning completed",
			"total_deleted", total,
			"max_age", p.config.MaxAge,
			"max_traces", p.config.MaxTraces,
		)
	}
	return total, nil
}

// Start starts the automatic pruning scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the automatic pruning scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning, or nil.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
