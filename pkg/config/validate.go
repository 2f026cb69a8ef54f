package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// MinChunkSize is the smallest accepted chunk size. It holds the largest
// fixed-size record with room to spare.
const MinChunkSize = 256

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "sink.sqlite.path").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateRecorder(&cfg.Recorder)...)
	errs = append(errs, validateBuffer(&cfg.Buffer)...)
	errs = append(errs, validateSink(&cfg.Sink)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateRecorder(cfg *RecorderConfig) []FieldError {
	var errs []FieldError

	if cfg.MinMethodTicks < 0 {
		errs = append(errs, FieldError{Field: "recorder.min_method_ticks", Message: "must not be negative"})
	}
	if cfg.MinTraceTicks < 0 {
		errs = append(errs, FieldError{Field: "recorder.min_trace_ticks", Message: "must not be negative"})
	}
	if cfg.InitialStackDepth <= 0 {
		errs = append(errs, FieldError{Field: "recorder.initial_stack_depth", Message: "must be positive"})
	}
	if cfg.MaxStackDepth < cfg.InitialStackDepth {
		errs = append(errs, FieldError{
			Field:   "recorder.max_stack_depth",
			Message: fmt.Sprintf("must be at least initial_stack_depth (%d)", cfg.InitialStackDepth),
		})
	}
	if cfg.TickShift > 30 {
		errs = append(errs, FieldError{Field: "recorder.tick_shift", Message: "must be at most 30"})
	}

	return errs
}

func validateBuffer(cfg *BufferConfig) []FieldError {
	var errs []FieldError

	if cfg.ChunkSize < MinChunkSize {
		errs = append(errs, FieldError{
			Field:   "buffer.chunk_size",
			Message: fmt.Sprintf("must be at least %d bytes", MinChunkSize),
		})
	}
	if cfg.MaxChunks < 0 {
		errs = append(errs, FieldError{Field: "buffer.max_chunks", Message: "must not be negative"})
	}
	if cfg.MaxFree < 0 {
		errs = append(errs, FieldError{Field: "buffer.max_free", Message: "must not be negative"})
	}

	return errs
}

func validateSink(cfg *SinkConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case BackendSQLite:
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "sink.sqlite.path", Message: "is required for the sqlite backend"})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "sink.sqlite.driver",
				Message: fmt.Sprintf("must be \"sqlite\" or \"sqlite3\", got %q", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.MaxOpenConns <= 0 {
			errs = append(errs, FieldError{Field: "sink.sqlite.max_open_conns", Message: "must be positive"})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{Field: "sink.sqlite.busy_timeout", Message: "must not be negative"})
		}
	case BackendMemory:
	default:
		errs = append(errs, FieldError{
			Field:   "sink.backend",
			Message: fmt.Sprintf("must be \"sqlite\" or \"memory\", got %q", cfg.Backend),
		})
	}

	if cfg.QueueSize <= 0 {
		errs = append(errs, FieldError{Field: "sink.queue_size", Message: "must be positive"})
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, FieldError{Field: "sink.write_timeout", Message: "must be positive"})
	}

	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "retention.max_age", Message: "must not be negative"})
	}
	if cfg.MaxTraces < 0 {
		errs = append(errs, FieldError{Field: "retention.max_traces", Message: "must not be negative"})
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "retention.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error; got %q", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be one of json, text, console; got %q", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Address); err != nil {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.address",
				Message: fmt.Sprintf("must be host:port: %v", err),
			})
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
		}
	}

	return errs
}
