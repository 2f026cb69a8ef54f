// Package health serves liveness and readiness probes next to the metrics
// endpoint. Readiness aggregates named component checks such as the trace
// store and the recorders.
package health
