package retention

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mercator-hq/calltrace/pkg/sink"
)

type pruneObserver struct {
	runs    int
	deleted int64
	err     error
}

func (o *pruneObserver) Pruned(deleted int64, _ time.Duration, err error) {
	o.runs++
	o.deleted += deleted
	o.err = err
}

func seedStore(t *testing.T, now time.Time, ages ...time.Duration) *sink.MemoryStore {
	t.Helper()
	store := sink.NewMemoryStore()
	for i, age := range ages {
		tr := &sink.Trace{
			ID:         fmt.Sprintf("t-%d", i),
			RecordedAt: now.Add(-age),
			Data:       []byte{byte(i)},
		}
		if err := store.Save(context.Background(), tr); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	return store
}

func TestPruner_Prune(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	ages := []time.Duration{10 * day, 8 * day, 5 * day, 3 * day, day}

	tests := []struct {
		name        string
		config      Config
		wantDeleted int64
		wantLeft    int64
	}{
		{"age only", Config{MaxAge: 7 * day}, 2, 3},
		{"count only", Config{MaxTraces: 2}, 3, 2},
		{"age and count", Config{MaxAge: 9 * day, MaxTraces: 3}, 2, 3},
		{"count below limit", Config{MaxTraces: 10}, 0, 5},
		{"disabled", Config{}, 0, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seedStore(t, now, ages...)
			obs := &pruneObserver{}
			cfg := tt.config
			p := NewPruner(store, &cfg, obs)
			p.now = func() time.Time { return now }

			deleted, err := p.Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("Prune() deleted %d, want %d", deleted, tt.wantDeleted)
			}
			if left, _ := store.Count(context.Background()); left != tt.wantLeft {
				t.Errorf("%d traces left, want %d", left, tt.wantLeft)
			}
			if obs.runs != 1 || obs.deleted != tt.wantDeleted {
				t.Errorf("observer runs=%d deleted=%d", obs.runs, obs.deleted)
			}
		})
	}
}

func TestPruner_KeepsNewest(t *testing.T) {
	now := time.Now()
	store := seedStore(t, now, 3*time.Hour, 2*time.Hour, time.Hour)
	p := NewPruner(store, &Config{MaxTraces: 1}, nil)

	if _, err := p.Prune(context.Background()); err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "t-2"); err != nil {
		t.Errorf("newest trace was pruned: %v", err)
	}
}

func TestPruner_StoreError(t *testing.T) {
	store := sink.NewMemoryStore()
	store.Close()
	obs := &pruneObserver{}
	p := NewPruner(store, &Config{MaxAge: time.Hour}, obs)

	_, err := p.Prune(context.Background())
	var se *sink.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("Prune() error = %v, want StoreError", err)
	}
	if obs.err == nil {
		t.Error("observer did not see the error")
	}
}
