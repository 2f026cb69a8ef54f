package retention

import (
	"context"
	"testing"
	"time"

	"mercator-hq/calltrace/pkg/sink"
)

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{"valid daily schedule", "0 3 * * *", true, false},
		{"valid hourly schedule", "0 * * * *", true, false},
		{"empty schedule", "", false, false},
		{"invalid schedule", "invalid cron", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPruner(sink.NewMemoryStore(), &Config{Schedule: tt.schedule, MaxAge: time.Hour}, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := p.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if p.scheduler.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", p.scheduler.IsRunning(), tt.wantRunning)
			}

			next := p.NextPruning()
			if tt.wantRunning {
				if next == nil || !next.After(time.Now()) {
					t.Errorf("NextPruning() = %v, want a future time", next)
				}
			} else if next != nil {
				t.Errorf("NextPruning() = %v, want nil", next)
			}

			p.Stop()
			if p.scheduler.IsRunning() {
				t.Error("scheduler still running after Stop()")
			}
		})
	}
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	p := NewPruner(sink.NewMemoryStore(), &Config{Schedule: "0 3 * * *"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for p.scheduler.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not stop after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_Restart(t *testing.T) {
	p := NewPruner(sink.NewMemoryStore(), &Config{Schedule: "0 3 * * *"}, nil)
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second Start() succeeded while running")
	}
	p.Stop()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	defer p.Stop()
	if n := len(p.scheduler.cron.Entries()); n != 1 {
		t.Errorf("%d cron entries after restart, want 1", n)
	}
}

func TestValidateSchedule(t *testing.T) {
	for expr, wantErr := range map[string]bool{
		"":            false,
		"*/5 * * * *": false,
		"@daily":      false,
		"61 * * * *":  true,
		"nope":        true,
	} {
		if err := ValidateSchedule(expr); (err != nil) != wantErr {
			t.Errorf("ValidateSchedule(%q) error = %v, wantErr %v", expr, err, wantErr)
		}
	}
}
