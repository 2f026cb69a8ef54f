package main

import (
	"fmt"

	"mercator-hq/calltrace/pkg/config"
	"mercator-hq/calltrace/pkg/sink"
)

// openStore opens the trace store selected by the configuration.
func openStore(cfg *config.SinkConfig) (sink.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return sink.NewSQLiteStore(&sink.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			Driver:       cfg.SQLite.Driver,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
	case config.BackendMemory:
		return sink.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported sink backend: %s", cfg.Backend)
	}
}

// openPersistentStore is openStore for commands that read traces written
// by an earlier run.
func openPersistentStore(cfg *config.SinkConfig) (sink.Store, error) {
	if cfg.Backend == config.BackendMemory {
		return nil, fmt.Errorf("the memory backend keeps no traces between runs; use sqlite")
	}
	return openStore(cfg)
}
