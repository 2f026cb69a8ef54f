package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/calltrace/pkg/symbols"
)

// SQLite driver names.
const (
	// DriverModernc is the pure Go driver (modernc.org/sqlite).
	DriverModernc = "sqlite"

	// DriverCGO is the cgo driver (github.com/mattn/go-sqlite3).
	DriverCGO = "sqlite3"
)

// SQLiteConfig contains configuration for the SQLite store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path" toml:"path"`

	// Driver selects the database/sql driver: "sqlite" or "sqlite3".
	// Default: "sqlite"
	Driver string `yaml:"driver" toml:"driver"`

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 1
	MaxOpenConns int `yaml:"max_open_conns" toml:"max_open_conns"`

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool `yaml:"wal_mode" toml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration `yaml:"busy_timeout" toml:"busy_timeout"`
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/traces.db",
		Driver:       DriverModernc,
		MaxOpenConns: 1,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at config.Path.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	cfg := *config
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverCGO {
		return nil, NewStoreError("sqlite", "open", fmt.Errorf("unknown driver %q", cfg.Driver))
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}

	logger := slog.Default().With("component", "sink.sqlite")

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, NewStoreError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)

	s := &SQLiteStore{
		db:     db,
		config: &cfg,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store initialized",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStoreError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return NewStoreError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return NewStoreError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStoreError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return NewStoreError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStoreError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Save stores a trace.
func (s *SQLiteStore) Save(ctx context.Context, t *Trace) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO traces (id, session, recorded_at, chunks, size, data) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Session, t.RecordedAt.UnixNano(), t.Chunks, t.Size, t.Data,
	)
	if err != nil {
		return NewStoreError("sqlite", "save", err)
	}
	return nil
}

// List returns the traces matching q.
func (s *SQLiteStore) List(ctx context.Context, q *Query) ([]*Trace, error) {
	if q == nil {
		q = &Query{}
	}

	var (
		where []string
		args  []any
	)
	if q.Session != "" {
		where = append(where, "session = ?")
		args = append(args, q.Session)
	}
	if !q.Since.IsZero() {
		where = append(where, "recorded_at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if !q.Until.IsZero() {
		where = append(where, "recorded_at < ?")
		args = append(args, q.Until.UnixNano())
	}

	var b strings.Builder
	b.WriteString("SELECT id, session, recorded_at, chunks, size, data FROM traces")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if q.Newest {
		b.WriteString(" ORDER BY recorded_at DESC, id DESC")
	} else {
		b.WriteString(" ORDER BY recorded_at ASC, id ASC")
	}
	b.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, q.limit(), q.Offset)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, NewStoreError("sqlite", "list", err)
	}
	defer rows.Close()

	out := []*Trace{}
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, NewStoreError("sqlite", "list", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStoreError("sqlite", "list", err)
	}
	return out, nil
}

// Get returns a single trace.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Trace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session, recorded_at, chunks, size, data FROM traces WHERE id = ?`, id)
	t, err := scanTrace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewStoreError("sqlite", "get", err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrace(sc scanner) (*Trace, error) {
	var (
		t  Trace
		ns int64
	)
	if err := sc.Scan(&t.ID, &t.Session, &ns, &t.Chunks, &t.Size, &t.Data); err != nil {
		return nil, err
	}
	t.RecordedAt = time.Unix(0, ns)
	return &t, nil
}

// Count returns the number of stored traces.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM traces`).Scan(&n); err != nil {
		return 0, NewStoreError("sqlite", "count", err)
	}
	return n, nil
}

// DeleteBefore deletes traces recorded before cutoff.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM traces WHERE recorded_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, NewStoreError("sqlite", "delete_before", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStoreError("sqlite", "delete_before", err)
	}
	return n, nil
}

// DeleteOldest deletes the oldest traces so that at most keep remain.
func (s *SQLiteStore) DeleteOldest(ctx context.Context, keep int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, NewStoreError("sqlite", "delete_oldest", err)
	}
	defer tx.Rollback()

	var total int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM traces`).Scan(&total); err != nil {
		return 0, NewStoreError("sqlite", "delete_oldest", err)
	}
	excess := total - keep
	if excess <= 0 {
		return 0, nil
	}

	res, err := tx.ExecContext(ctx, `
DELETE FROM traces WHERE id IN (
    SELECT id FROM traces ORDER BY recorded_at ASC, id ASC LIMIT ?
)`, excess)
	if err != nil {
		return 0, NewStoreError("sqlite", "delete_oldest", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStoreError("sqlite", "delete_oldest", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, NewStoreError("sqlite", "delete_oldest", err)
	}
	return n, nil
}

// SaveSymbols stores symbols whose ids are not stored yet.
func (s *SQLiteStore) SaveSymbols(ctx context.Context, syms []symbols.Symbol) error {
	if len(syms) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStoreError("sqlite", "save_symbols", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO symbols (id, name) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return NewStoreError("sqlite", "save_symbols", err)
	}
	defer stmt.Close()

	for _, sym := range syms {
		if _, err := stmt.ExecContext(ctx, int64(sym.ID), sym.Name); err != nil {
			return NewStoreError("sqlite", "save_symbols", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return NewStoreError("sqlite", "save_symbols", err)
	}
	return nil
}

// Symbols returns all stored symbols in id order.
func (s *SQLiteStore) Symbols(ctx context.Context) ([]symbols.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM symbols ORDER BY id`)
	if err != nil {
		return nil, NewStoreError("sqlite", "symbols", err)
	}
	defer rows.Close()

	out := []symbols.Symbol{}
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, NewStoreError("sqlite", "symbols", err)
		}
		out = append(out, symbols.Symbol{ID: uint32(id), Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, NewStoreError("sqlite", "symbols", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	if err := s.db.Close(); err != nil {
		return NewStoreError("sqlite", "close", err)
	}
	return nil
}
