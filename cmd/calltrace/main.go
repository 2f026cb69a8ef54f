// Calltrace records method-level call traces of instrumented Go code into a
// compact binary stream, filters out calls that were too short to matter,
// and stores the surviving traces for later inspection.
//
// Usage:
//
//	# Drive the recorder with a synthetic workload for 30 seconds
//	calltrace run --duration 30s
//
//	# Run with a configuration file
//	calltrace run --config /etc/calltrace/config.yaml
//
//	# List stored traces
//	calltrace list --limit 20
//
//	# Render stored traces as call trees
//	calltrace decode 2f1c9a4e-...
//
//	# Apply retention limits once
//	calltrace prune --max-age 24h
//
//	# Validate a configuration file
//	calltrace validate config.yaml
package main

func main() {
	Execute()
}
