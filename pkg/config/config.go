package config

import "time"

// Config is the root configuration of a calltrace process.
type Config struct {
	// Recorder contains the per-recorder filter and stack settings.
	Recorder RecorderConfig `yaml:"recorder" toml:"recorder"`

	// Buffer contains the chunk pool settings shared by all recorders.
	Buffer BufferConfig `yaml:"buffer" toml:"buffer"`

	// Sink contains the queue sink and trace store settings.
	Sink SinkConfig `yaml:"sink" toml:"sink"`

	// Retention contains the stored trace retention settings.
	Retention RetentionConfig `yaml:"retention" toml:"retention"`

	// Telemetry contains logging and metrics settings.
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
}

// RecorderConfig contains recorder settings. Durations are in ticks of the
// recorder clock, 2^TickShift nanoseconds each.
type RecorderConfig struct {
	// MinMethodTicks is the minimum duration for a call to be kept.
	// Default: 4
	MinMethodTicks int64 `yaml:"min_method_ticks" toml:"min_method_ticks"`

	// MinTraceTicks is the minimum duration for a trace to be flushed.
	// Default: 16777216
	MinTraceTicks int64 `yaml:"min_trace_ticks" toml:"min_trace_ticks"`

	// InitialStackDepth is the initial shadow stack capacity.
	// Default: 256
	InitialStackDepth int `yaml:"initial_stack_depth" toml:"initial_stack_depth"`

	// MaxStackDepth is the call depth at which a recorder fails.
	// Default: 65536
	MaxStackDepth int `yaml:"max_stack_depth" toml:"max_stack_depth"`

	// TickShift converts nanoseconds to ticks (ticks = ns >> TickShift).
	// Default: 16
	TickShift uint `yaml:"tick_shift" toml:"tick_shift"`
}

// BufferConfig contains chunk pool settings.
type BufferConfig struct {
	// ChunkSize is the size of a regular chunk in bytes.
	// Default: 65536
	ChunkSize int `yaml:"chunk_size" toml:"chunk_size"`

	// MaxChunks bounds the chunks alive at the same time. 0 is unbounded.
	// Default: 0
	MaxChunks int `yaml:"max_chunks" toml:"max_chunks"`

	// MaxFree is the number of released chunks kept for reuse.
	// Default: 64
	MaxFree int `yaml:"max_free" toml:"max_free"`
}

// SinkConfig contains queue sink and store settings.
type SinkConfig struct {
	// Backend is the trace store.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend" toml:"backend"`

	// QueueSize is the number of submissions that can wait for the writer.
	// Default: 1000
	QueueSize int `yaml:"queue_size" toml:"queue_size"`

	// WriteTimeout is the timeout for writing one trace.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout"`

	// SQLite contains the SQLite store settings.
	SQLite SQLiteConfig `yaml:"sqlite" toml:"sqlite"`
}

// SQLiteConfig contains SQLite store settings.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/traces.db"
	Path string `yaml:"path" toml:"path"`

	// Driver is the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver" toml:"driver"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 1
	MaxOpenConns int `yaml:"max_open_conns" toml:"max_open_conns"`

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool `yaml:"wal_mode" toml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout" toml:"busy_timeout"`
}

// RetentionConfig contains retention settings.
type RetentionConfig struct {
	// MaxAge is how long traces are kept. 0 keeps them forever.
	// Default: 168h
	MaxAge time.Duration `yaml:"max_age" toml:"max_age"`

	// MaxTraces is the maximum number of stored traces. 0 is unlimited.
	// Default: 0
	MaxTraces int64 `yaml:"max_traces" toml:"max_traces"`

	// Schedule is a cron expression for automatic pruning. Empty disables it.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule" toml:"schedule"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	// Metrics contains metrics configuration.
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level" toml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format" toml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source" toml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Address is the listen address of the metrics endpoint.
	// Default: "127.0.0.1:9464"
	Address string `yaml:"address" toml:"address"`

	// Path is the HTTP path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path" toml:"path"`
}
