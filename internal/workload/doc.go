// Package workload generates reproducible random call trees and replays
// them on a recorder. Each tree is one trace: its root begins a trace with
// a fresh id, leaves may fail with an injected error that callers may
// rethrow, and calls occasionally carry attributes.
package workload
