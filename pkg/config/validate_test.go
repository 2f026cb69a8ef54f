package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{"valid", func(*Config) {}, nil},
		{"negative thresholds", func(c *Config) {
			c.Recorder.MinMethodTicks = -1
			c.Recorder.MinTraceTicks = -1
		}, []string{"recorder.min_method_ticks", "recorder.min_trace_ticks"}},
		{"max depth below initial", func(c *Config) {
			c.Recorder.MaxStackDepth = 10
		}, []string{"recorder.max_stack_depth"}},
		{"tick shift", func(c *Config) { c.Recorder.TickShift = 40 }, []string{"recorder.tick_shift"}},
		{"tiny chunks", func(c *Config) { c.Buffer.ChunkSize = 16 }, []string{"buffer.chunk_size"}},
		{"unknown backend", func(c *Config) { c.Sink.Backend = "s3" }, []string{"sink.backend"}},
		{"unknown driver", func(c *Config) { c.Sink.SQLite.Driver = "pg" }, []string{"sink.sqlite.driver"}},
		{"memory backend ignores sqlite", func(c *Config) {
			c.Sink.Backend = "memory"
			c.Sink.SQLite.Driver = "pg"
		}, nil},
		{"queue", func(c *Config) {
			c.Sink.QueueSize = 0
			c.Sink.WriteTimeout = 0
		}, []string{"sink.queue_size", "sink.write_timeout"}},
		{"bad schedule", func(c *Config) { c.Retention.Schedule = "every day" }, []string{"retention.schedule"}},
		{"logging", func(c *Config) {
			c.Telemetry.Logging.Level = "trace"
			c.Telemetry.Logging.Format = "xml"
		}, []string{"telemetry.logging.level", "telemetry.logging.format"}},
		{"metrics address", func(c *Config) { c.Telemetry.Metrics.Address = "9464" }, []string{"telemetry.metrics.address"}},
		{"metrics disabled skips address", func(c *Config) {
			c.Telemetry.Metrics.Enabled = false
			c.Telemetry.Metrics.Address = "9464"
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)

			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}

			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if len(ve.Errors) != len(tt.fields) {
				t.Fatalf("got %d errors, want %d: %v", len(ve.Errors), len(tt.fields), ve)
			}
			for i, field := range tt.fields {
				if ve.Errors[i].Field != field {
					t.Errorf("error %d field = %q, want %q", i, ve.Errors[i].Field, field)
				}
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	one := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := one.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("Error() = %q", got)
	}

	two := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if got := two.Error(); !strings.Contains(got, "2 errors") || !strings.Contains(got, "  - b: worse") {
		t.Errorf("Error() = %q", got)
	}
}
