package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "CALLTRACE_"

// Supported file formats.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// FormatForPath returns the file format implied by the path's extension.
// Anything other than .toml is read as YAML.
func FormatForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes a configuration document on top of the defaults, then
// applies defaults to any field the document zeroed and validates the result.
func Parse(data []byte, format string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML configuration: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration format %q", format)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfig loads configuration from a YAML or TOML file. Environment
// variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a file and applies
// environment variable overrides named CALLTRACE_SECTION_FIELD (for example
// CALLTRACE_SINK_SQLITE_PATH). An empty path starts from the defaults.
// Environment variables take precedence over the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg = NewDefaultConfig()
	} else if cfg, err = LoadConfig(path); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// envOverrides tracks parse failures of override values.
type envOverrides struct {
	errs []FieldError
}

func (e *envOverrides) lookup(name string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	return val, ok && val != ""
}

func (e *envOverrides) fail(name, val string, err error) {
	e.errs = append(e.errs, FieldError{
		Field:   EnvPrefix + name,
		Message: fmt.Sprintf("invalid value %q: %v", val, err),
	})
}

func (e *envOverrides) stringVar(name string, dst *string) {
	if val, ok := e.lookup(name); ok {
		*dst = val
	}
}

func (e *envOverrides) intVar(name string, dst *int) {
	if val, ok := e.lookup(name); ok {
		i, err := strconv.Atoi(val)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = i
	}
}

func (e *envOverrides) int64Var(name string, dst *int64) {
	if val, ok := e.lookup(name); ok {
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = i
	}
}

func (e *envOverrides) uintVar(name string, dst *uint) {
	if val, ok := e.lookup(name); ok {
		i, err := strconv.ParseUint(val, 10, 8)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = uint(i)
	}
}

func (e *envOverrides) boolVar(name string, dst *bool) {
	if val, ok := e.lookup(name); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = b
	}
}

func (e *envOverrides) durationVar(name string, dst *time.Duration) {
	if val, ok := e.lookup(name); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = d
	}
}

// applyEnvOverrides applies every CALLTRACE_* override. Unparseable values
// are reported together as a ValidationError.
func applyEnvOverrides(cfg *Config) error {
	var e envOverrides

	// Recorder overrides
	e.int64Var("RECORDER_MIN_METHOD_TICKS", &cfg.Recorder.MinMethodTicks)
	e.int64Var("RECORDER_MIN_TRACE_TICKS", &cfg.Recorder.MinTraceTicks)
	e.intVar("RECORDER_INITIAL_STACK_DEPTH", &cfg.Recorder.InitialStackDepth)
	e.intVar("RECORDER_MAX_STACK_DEPTH", &cfg.Recorder.MaxStackDepth)
	e.uintVar("RECORDER_TICK_SHIFT", &cfg.Recorder.TickShift)

	// Buffer overrides
	e.intVar("BUFFER_CHUNK_SIZE", &cfg.Buffer.ChunkSize)
	e.intVar("BUFFER_MAX_CHUNKS", &cfg.Buffer.MaxChunks)
	e.intVar("BUFFER_MAX_FREE", &cfg.Buffer.MaxFree)

	// Sink overrides
	e.stringVar("SINK_BACKEND", &cfg.Sink.Backend)
	e.intVar("SINK_QUEUE_SIZE", &cfg.Sink.QueueSize)
	e.durationVar("SINK_WRITE_TIMEOUT", &cfg.Sink.WriteTimeout)
	e.stringVar("SINK_SQLITE_PATH", &cfg.Sink.SQLite.Path)
	e.stringVar("SINK_SQLITE_DRIVER", &cfg.Sink.SQLite.Driver)
	e.intVar("SINK_SQLITE_MAX_OPEN_CONNS", &cfg.Sink.SQLite.MaxOpenConns)
	e.boolVar("SINK_SQLITE_WAL_MODE", &cfg.Sink.SQLite.WALMode)
	e.durationVar("SINK_SQLITE_BUSY_TIMEOUT", &cfg.Sink.SQLite.BusyTimeout)

	// Retention overrides
	e.durationVar("RETENTION_MAX_AGE", &cfg.Retention.MaxAge)
	e.int64Var("RETENTION_MAX_TRACES", &cfg.Retention.MaxTraces)
	e.stringVar("RETENTION_SCHEDULE", &cfg.Retention.Schedule)

	// Telemetry overrides
	e.stringVar("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	e.stringVar("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	e.boolVar("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	e.boolVar("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	e.stringVar("TELEMETRY_METRICS_ADDRESS", &cfg.Telemetry.Metrics.Address)
	e.stringVar("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)

	if len(e.errs) > 0 {
		return ValidationError{Errors: e.errs}
	}
	return nil
}
