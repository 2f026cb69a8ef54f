// Package telemetry groups the observability packages of calltrace:
//
//   - logging: slog handler construction
//   - metrics: Prometheus metrics for recorders, sinks and retention
//   - health: liveness and readiness probes
package telemetry
