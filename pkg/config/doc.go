// Package config provides configuration management for calltrace.
//
// Configuration is read from YAML or TOML files (chosen by extension) with
// environment variable overrides:
//
//	cfg, err := config.LoadConfig("calltrace.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("calltrace.toml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CALLTRACE_SECTION_FIELD:
//
//   - CALLTRACE_RECORDER_MIN_METHOD_TICKS overrides recorder.min_method_ticks
//   - CALLTRACE_SINK_SQLITE_PATH overrides sink.sqlite.path
//   - CALLTRACE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Later sources override earlier ones:
//
//  1. Default values (NewDefaultConfig)
//  2. Configuration file
//  3. Environment variables
//
// # Hot Reload
//
// Watcher reloads the file when it changes. Only the recorder thresholds
// can take effect in a running process; the other sections are read once at
// startup.
//
// # Global Configuration
//
// Initialize, GetConfig, SetConfig and ReloadConfig manage a process-wide
// singleton. Prefer passing *Config explicitly where possible.
package config
