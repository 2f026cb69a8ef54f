package sink

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/calltrace/pkg/symbols"
)

func testStores(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			return newSQLiteStore(t, DriverModernc)
		},
		"sqlite3": func(t *testing.T) Store {
			return newSQLiteStore(t, DriverCGO)
		},
	}
}

func newSQLiteStore(t *testing.T, driver string) Store {
	t.Helper()
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "traces.db")
	cfg.Driver = driver
	s, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%s) error = %v", driver, err)
	}
	return s
}

func seed(t *testing.T, s Store, base time.Time, sessions ...string) []*Trace {
	t.Helper()
	var out []*Trace
	for i, session := range sessions {
		tr := &Trace{
			ID:         string(rune('a' + i)),
			Session:    session,
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
			Chunks:     1,
			Size:       3,
			Data:       []byte{byte(i), 0xAA, 0xBB},
		}
		if err := s.Save(context.Background(), tr); err != nil {
			t.Fatalf("Save(%s) error = %v", tr.ID, err)
		}
		out = append(out, tr)
	}
	return out
}

func TestStore_SaveAndGet(t *testing.T) {
	for name, open := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			ctx := context.Background()

			base := time.Unix(1700000000, 123456789)
			seed(t, s, base, "s1")

			got, err := s.Get(ctx, "a")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Session != "s1" || !got.RecordedAt.Equal(base) || got.Chunks != 1 || got.Size != 3 {
				t.Errorf("Get() = %+v", got)
			}
			if !bytes.Equal(got.Data, []byte{0, 0xAA, 0xBB}) {
				t.Errorf("Data = %x", got.Data)
			}

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}

			err = s.Save(ctx, &Trace{ID: "a", RecordedAt: base, Data: []byte{1}})
			var se *StoreError
			if !errors.As(err, &se) || se.Operation != "save" {
				t.Errorf("duplicate Save() error = %v, want save StoreError", err)
			}
		})
	}
}

func TestStore_List(t *testing.T) {
	base := time.Unix(1700000000, 0)
	tests := []struct {
		name  string
		query *Query
		want  string
	}{
		{"all", nil, "abcd"},
		{"session", &Query{Session: "s2"}, "bd"},
		{"since", &Query{Since: base.Add(2 * time.Minute)}, "cd"},
		{"until", &Query{Until: base.Add(2 * time.Minute)}, "ab"},
		{"newest", &Query{Newest: true}, "dcba"},
		{"limit and offset", &Query{Limit: 2, Offset: 1}, "bc"},
		{"offset past end", &Query{Offset: 10}, ""},
	}

	for name, open := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			seed(t, s, base, "s1", "s2", "s1", "s2")

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := s.List(context.Background(), tt.query)
					if err != nil {
						t.Fatalf("List() error = %v", err)
					}
					ids := ""
					for _, tr := range got {
						ids += tr.ID
					}
					if ids != tt.want {
						t.Errorf("List() ids = %q, want %q", ids, tt.want)
					}
				})
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	base := time.Unix(1700000000, 0)
	for name, open := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			ctx := context.Background()
			seed(t, s, base, "x", "x", "x", "x", "x")

			n, err := s.DeleteBefore(ctx, base.Add(90*time.Second))
			if err != nil || n != 2 {
				t.Fatalf("DeleteBefore() = %d, %v; want 2", n, err)
			}

			n, err = s.DeleteOldest(ctx, 10)
			if err != nil || n != 0 {
				t.Fatalf("DeleteOldest(10) = %d, %v; want 0", n, err)
			}

			n, err = s.DeleteOldest(ctx, 1)
			if err != nil || n != 2 {
				t.Fatalf("DeleteOldest(1) = %d, %v; want 2", n, err)
			}

			count, err := s.Count(ctx)
			if err != nil || count != 1 {
				t.Fatalf("Count() = %d, %v; want 1", count, err)
			}
			if _, err := s.Get(ctx, "e"); err != nil {
				t.Errorf("newest trace was deleted: %v", err)
			}
		})
	}
}

func TestStore_Symbols(t *testing.T) {
	for name, open := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			ctx := context.Background()

			err := s.SaveSymbols(ctx, []symbols.Symbol{{ID: 2, Name: "b"}, {ID: 1, Name: "a"}})
			if err != nil {
				t.Fatalf("SaveSymbols() error = %v", err)
			}
			// Stored ids keep their first name.
			err = s.SaveSymbols(ctx, []symbols.Symbol{{ID: 1, Name: "changed"}, {ID: 3, Name: "c"}})
			if err != nil {
				t.Fatalf("SaveSymbols() error = %v", err)
			}

			got, err := s.Symbols(ctx)
			if err != nil {
				t.Fatalf("Symbols() error = %v", err)
			}
			want := []symbols.Symbol{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"}}
			if len(got) != len(want) {
				t.Fatalf("Symbols() = %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("Symbols()[%d] = %v, want %v", i, got[i], want[i])
				}
			}

			table := symbols.NewTable()
			if err := table.Load(got); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if table.Name(3) != "c" {
				t.Errorf("Name(3) = %q", table.Name(3))
			}
		})
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "traces.db")

	s, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	seed(t, s, time.Unix(1700000000, 0), "s")
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if n, _ := s.Count(context.Background()); n != 1 {
		t.Errorf("Count() after reopen = %d, want 1", n)
	}
}

func TestSQLiteStore_UnknownDriver(t *testing.T) {
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "traces.db")
	cfg.Driver = "postgres"

	_, err := NewSQLiteStore(cfg)
	var se *StoreError
	if !errors.As(err, &se) || se.Backend != "sqlite" {
		t.Errorf("NewSQLiteStore() error = %v, want StoreError", err)
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	s.Close()
	if err := s.Save(context.Background(), &Trace{ID: "x"}); err == nil {
		t.Error("Save() on closed store succeeded")
	}
}
