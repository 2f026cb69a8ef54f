package config

import "time"

// Trace store backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Default values for configuration fields.
const (
	// Recorder defaults
	DefaultMinMethodTicks    = int64(4)
	DefaultMinTraceTicks     = int64(1 << 24)
	DefaultInitialStackDepth = 256
	DefaultMaxStackDepth     = 1 << 16
	DefaultTickShift         = uint(16)

	// Buffer defaults
	DefaultChunkSize = 64 * 1024
	DefaultMaxChunks = 0
	DefaultMaxFree   = 64

	// Sink defaults
	DefaultSinkBackend        = BackendSQLite
	DefaultSinkQueueSize      = 1000
	DefaultSinkWriteTimeout   = 5 * time.Second
	DefaultSQLitePath         = "data/traces.db"
	DefaultSQLiteDriver       = "sqlite"
	DefaultSQLiteMaxOpenConns = 1
	DefaultSQLiteWALMode      = true
	DefaultSQLiteBusyTimeout  = 5 * time.Second

	// Retention defaults
	DefaultRetentionMaxAge    = 7 * 24 * time.Hour
	DefaultRetentionMaxTraces = int64(0)
	DefaultRetentionSchedule  = "0 3 * * *"

	// Telemetry defaults
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultLogAddSource   = false
	DefaultMetricsEnabled = true
	DefaultMetricsAddress = "127.0.0.1:9464"
	DefaultMetricsPath    = "/metrics"
)

// NewDefaultConfig returns a configuration with every field set to its
// default. Files are decoded on top of it, so fields a file leaves out keep
// their defaults, including booleans that default to true.
func NewDefaultConfig() *Config {
	return &Config{
		Recorder: RecorderConfig{
			MinMethodTicks:    DefaultMinMethodTicks,
			MinTraceTicks:     DefaultMinTraceTicks,
			InitialStackDepth: DefaultInitialStackDepth,
			MaxStackDepth:     DefaultMaxStackDepth,
			TickShift:         DefaultTickShift,
		},
		Buffer: BufferConfig{
			ChunkSize: DefaultChunkSize,
			MaxChunks: DefaultMaxChunks,
			MaxFree:   DefaultMaxFree,
		},
		Sink: SinkConfig{
			Backend:      DefaultSinkBackend,
			QueueSize:    DefaultSinkQueueSize,
			WriteTimeout: DefaultSinkWriteTimeout,
			SQLite: SQLiteConfig{
				Path:         DefaultSQLitePath,
				Driver:       DefaultSQLiteDriver,
				MaxOpenConns: DefaultSQLiteMaxOpenConns,
				WALMode:      DefaultSQLiteWALMode,
				BusyTimeout:  DefaultSQLiteBusyTimeout,
			},
		},
		Retention: RetentionConfig{
			MaxAge:    DefaultRetentionMaxAge,
			MaxTraces: DefaultRetentionMaxTraces,
			Schedule:  DefaultRetentionSchedule,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:     DefaultLogLevel,
				Format:    DefaultLogFormat,
				AddSource: DefaultLogAddSource,
			},
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
				Address: DefaultMetricsAddress,
				Path:    DefaultMetricsPath,
			},
		},
	}
}

// ApplyDefaults fills zero-valued fields with their defaults. Fields whose
// zero value is meaningful (MaxChunks, MaxTraces, MaxAge, Schedule and the
// booleans) are left alone.
func ApplyDefaults(cfg *Config) {
	// Recorder defaults
	if cfg.Recorder.MinMethodTicks == 0 {
		cfg.Recorder.MinMethodTicks = DefaultMinMethodTicks
	}
	if cfg.Recorder.MinTraceTicks == 0 {
		cfg.Recorder.MinTraceTicks = DefaultMinTraceTicks
	}
	if cfg.Recorder.InitialStackDepth == 0 {
		cfg.Recorder.InitialStackDepth = DefaultInitialStackDepth
	}
	if cfg.Recorder.MaxStackDepth == 0 {
		cfg.Recorder.MaxStackDepth = DefaultMaxStackDepth
	}
	if cfg.Recorder.TickShift == 0 {
		cfg.Recorder.TickShift = DefaultTickShift
	}

	// Buffer defaults
	if cfg.Buffer.ChunkSize == 0 {
		cfg.Buffer.ChunkSize = DefaultChunkSize
	}
	if cfg.Buffer.MaxFree == 0 {
		cfg.Buffer.MaxFree = DefaultMaxFree
	}

	// Sink defaults
	if cfg.Sink.Backend == "" {
		cfg.Sink.Backend = DefaultSinkBackend
	}
	if cfg.Sink.QueueSize == 0 {
		cfg.Sink.QueueSize = DefaultSinkQueueSize
	}
	if cfg.Sink.WriteTimeout == 0 {
		cfg.Sink.WriteTimeout = DefaultSinkWriteTimeout
	}
	if cfg.Sink.SQLite.Path == "" {
		cfg.Sink.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Sink.SQLite.Driver == "" {
		cfg.Sink.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Sink.SQLite.MaxOpenConns == 0 {
		cfg.Sink.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Sink.SQLite.BusyTimeout == 0 {
		cfg.Sink.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Address == "" {
		cfg.Telemetry.Metrics.Address = DefaultMetricsAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}
