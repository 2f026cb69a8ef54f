package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChecker_Readiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   string
		code   int
	}{
		{"no checks", nil, StatusReady, http.StatusOK},
		{"all ok", map[string]CheckFunc{
			"store": func(context.Context) error { return nil },
		}, StatusReady, http.StatusOK},
		{"one failing", map[string]CheckFunc{
			"store":     func(context.Context) error { return nil },
			"recorders": func(context.Context) error { return errors.New("2 recorders failed") },
		}, StatusDegraded, http.StatusServiceUnavailable},
		{"timeout", map[string]CheckFunc{
			"slow": func(ctx context.Context) error { <-ctx.Done(); time.Sleep(time.Second); return nil },
		}, StatusDegraded, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(20 * time.Millisecond)
			for name, check := range tt.checks {
				c.Register(name, check)
			}

			mux := http.NewServeMux()
			c.Mount(mux)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.code {
				t.Errorf("status code = %d, want %d", rec.Code, tt.code)
			}
			var status Status
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if status.Status != tt.want || len(status.Checks) != len(tt.checks) {
				t.Errorf("status = %+v", status)
			}
		})
	}
}

func TestChecker_Liveness(t *testing.T) {
	c := New(0)
	c.Register("never", func(context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status code = %d", rec.Code)
	}

	if names := c.Names(); len(names) != 1 || names[0] != "never" {
		t.Errorf("Names() = %v", names)
	}
}
