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

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   string
	}{
		{
			name: "no checks",
			want: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"ledger":      func(context.Context) error { return nil },
				"experiments": func(context.Context) error { return nil },
			},
			want: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"ledger":      func(context.Context) error { return errors.New("database is locked") },
				"experiments": func(context.Context) error { return nil },
			},
			want: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, fn := range tt.checks {
				c.Register(name, fn)
			}

			report := c.Readiness(context.Background())
			if report.Status != tt.want {
				t.Errorf("Status = %q, want %q", report.Status, tt.want)
			}
			if len(report.Checks) != len(tt.checks) {
				t.Errorf("Checks = %d, want %d", len(report.Checks), len(tt.checks))
			}
		})
	}
}

func TestReadiness_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	report := c.Readiness(context.Background())
	res := report.Checks["slow"]
	if res.Status != StatusUnhealthy || res.Message != "health check timeout" {
		t.Errorf("slow = %+v", res)
	}
}

func TestMount(t *testing.T) {
	c := New(time.Second)
	c.Register("ledger", func(context.Context) error { return errors.New("closed") })

	mux := http.NewServeMux()
	Mount(mux, c, VersionInfo{Version: "1.2.3", Commit: "abc"})

	tests := []struct {
		path     string
		wantCode int
		wantKey  string
		wantVal  string
	}{
		{"/health", http.StatusOK, "status", StatusOK},
		{"/ready", http.StatusServiceUnavailable, "status", StatusDegraded},
		{"/version", http.StatusOK, "version", "1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body[tt.wantKey] != tt.wantVal {
				t.Errorf("%s = %v, want %q", tt.wantKey, body[tt.wantKey], tt.wantVal)
			}
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d, want 405", rec.Code)
	}
}

func TestNames(t *testing.T) {
	c := New(0)
	c.Register("b", nil)
	c.Register("a", nil)
	if got := c.Names(); len(got) != 2 || got[0] != "a" {
		t.Errorf("Names() = %v", got)
	}
}
