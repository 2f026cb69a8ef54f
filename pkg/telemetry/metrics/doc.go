// Package metrics exposes calltrace activity as Prometheus metrics.
//
// Recorders report only at trace boundaries, so the per-call hot path never
// touches a metric. The queue sink reports each submission and store write;
// retention reports each pruning run.
package metrics
