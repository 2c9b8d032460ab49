package config

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/slowpoll"
)

func TestBuildOptions_AppliesConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
port: 9292
base_uri: https://async.example.com
defaults:
  final_status: 204
retention: 30s
metrics: false
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sp, err := slowpoll.New(BuildOptions(cfg, logger, "v1.2.3")...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if sp.Port() != 9292 {
		t.Errorf("Port() = %d, want 9292", sp.Port())
	}
	if sp.Retention() != 30*time.Second {
		t.Errorf("Retention() = %v, want 30s", sp.Retention())
	}

	h := sp.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	if loc := rec.Header().Get("Content-Location"); !strings.HasPrefix(loc, "https://async.example.com/poll?id=") {
		t.Errorf("Content-Location = %q, want configured base_uri", loc)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if !strings.Contains(rec.Body.String(), `"version":"v1.2.3"`) {
		t.Errorf("ping body = %s, want version v1.2.3", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics status = %d, want 404 with metrics disabled", rec.Code)
	}
}

func TestBuildOptions_ExtraOptionsOverride(t *testing.T) {
	cfg, err := Parse([]byte("port: 9393\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	sp, err := slowpoll.New(BuildOptions(cfg, nil, "", slowpoll.WithPort(9494), slowpoll.WithMetrics(false))...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if sp.Port() != 9494 {
		t.Errorf("Port() = %d, want 9494", sp.Port())
	}
}

func TestBuildOptions_DefaultsAccepted(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if _, err := slowpoll.New(BuildOptions(cfg, nil, "")...); err != nil {
		t.Errorf("New() with default config error = %v", err)
	}
}
