package recorder

// Config contains configuration for a recorder.
type Config struct {
	// MinMethodTicks is the minimum duration of a call that is kept in the
	// trace without being marked.
	// Default: 4 (about 250us with the default tick shift)
	MinMethodTicks int64 `yaml:"min_method_ticks" toml:"min_method_ticks"`

	// MinTraceTicks is the minimum duration of a trace root that is flushed
	// to the output without being marked.
	// Default: 16777216 (about 1s with the default tick shift)
	MinTraceTicks int64 `yaml:"min_trace_ticks" toml:"min_trace_ticks"`

	// InitialStackDepth is the number of frames allocated up front.
	// Default: 256
	InitialStackDepth int `yaml:"initial_stack_depth" toml:"initial_stack_depth"`

	// MaxStackDepth bounds stack growth. Exceeding it is fatal for the
	// recorder. 0 means unbounded.
	// Default: 65536
	MaxStackDepth int `yaml:"max_stack_depth" toml:"max_stack_depth"`

	// TickShift is the right shift applied to monotonic nanoseconds to get
	// ticks.
	// Default: 16 (65536ns per tick)
	TickShift uint `yaml:"tick_shift" toml:"tick_shift"`
}

// Default recorder settings.
const (
	DefaultMinMethodTicks    = 4
	DefaultMinTraceTicks     = 1 << 24
	DefaultInitialStackDepth = 256
	DefaultMaxStackDepth     = 1 << 16
	DefaultTickShift         = 16
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		MinMethodTicks:    DefaultMinMethodTicks,
		MinTraceTicks:     DefaultMinTraceTicks,
		InitialStackDepth: DefaultInitialStackDepth,
		MaxStackDepth:     DefaultMaxStackDepth,
		TickShift:         DefaultTickShift,
	}
}

// Thresholds returns the filter thresholds of the configuration.
func (c *Config) Thresholds() Thresholds {
	return Thresholds{MinMethodTicks: c.MinMethodTicks, MinTraceTicks: c.MinTraceTicks}
}
