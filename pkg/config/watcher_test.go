package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestSingleton(t *testing.T) {
	defer SetConfig(nil)

	SetConfig(nil)
	if GetConfig() != nil {
		t.Fatal("GetConfig() != nil after SetConfig(nil)")
	}

	path := writeFile(t, "c.yaml", "recorder:\n  min_method_ticks: 3\n")
	cfg, err := ReloadConfig(path)
	if err != nil {
		t.Fatalf("ReloadConfig() error = %v", err)
	}
	if GetConfig() != cfg || MustGetConfig().Recorder.MinMethodTicks != 3 {
		t.Errorf("global config not replaced")
	}

	if err := os.WriteFile(path, []byte("recorder: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReloadConfig(path); err == nil {
		t.Fatal("ReloadConfig() accepted a malformed file")
	}
	if GetConfig() != cfg {
		t.Error("failed reload replaced the global config")
	}
}

func TestSingleton_InitializeOnceAndReloadPath(t *testing.T) {
	defer SetConfig(nil)
	SetConfig(nil)

	first := writeFile(t, "first.yaml", "recorder:\n  min_method_ticks: 5\n")
	second := writeFile(t, "second.yaml", "recorder:\n  min_method_ticks: 9\n")

	if err := Initialize(first); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := Initialize(second); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if got := MustGetConfig().Recorder.MinMethodTicks; got != 5 {
		t.Errorf("MinMethodTicks = %d, want 5 (second Initialize must not reload)", got)
	}
	if Path() != first {
		t.Errorf("Path() = %q, want %q", Path(), first)
	}

	if err := os.WriteFile(first, []byte("recorder:\n  min_method_ticks: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := ReloadConfig("")
	if err != nil {
		t.Fatalf("ReloadConfig(\"\") error = %v", err)
	}
	if cfg.Recorder.MinMethodTicks != 7 || Path() != first {
		t.Errorf("ReloadConfig(\"\") = %d from %q, want 7 from %q", cfg.Recorder.MinMethodTicks, Path(), first)
	}

	SetConfig(&Config{})
	if Path() != first {
		t.Errorf("SetConfig dropped the source path: %q", Path())
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	defer SetConfig(nil)

	path := writeFile(t, "c.yaml", "recorder:\n  min_method_ticks: 1\n")
	w, err := NewWatcher(path, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	changes := make(chan *Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Watch(ctx, func(c *Config) { changes <- c }) }()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)

	// A broken write is skipped, the fixed one is picked up.
	if err := os.WriteFile(path, []byte("recorder: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)
	if err := os.WriteFile(path, []byte("recorder:\n  min_method_ticks: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changes:
		if cfg.Recorder.MinMethodTicks != 9 {
			t.Errorf("MinMethodTicks = %d, want 9", cfg.Recorder.MinMethodTicks)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after file change")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}
