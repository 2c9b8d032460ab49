package slowpoll

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/slowpoll/internal/clock"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, target string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Result()
}

func TestHandler_FullLifecycle(t *testing.T) {
	clk := clock.NewManual(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	sp, err := New(
		WithBaseURI("https://async.example.com/"),
		WithDefaultCompleteIn(10*time.Second),
		WithDefaultFinalStatus(http.StatusCreated),
		WithIDFormat("xid"),
		WithClock(clk),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h := sp.Handler()

	start := get(t, h, "/slow")
	if start.StatusCode != http.StatusAccepted {
		t.Fatalf("start status = %d, want 202", start.StatusCode)
	}
	location := start.Header.Get("Content-Location")
	if !strings.HasPrefix(location, "https://async.example.com/poll?id=") {
		t.Fatalf("Content-Location = %q, want configured base URI", location)
	}
	if sp.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", sp.Pending())
	}

	poll := get(t, h, location, &http.Cookie{Name: "poll-count", Value: "0"})
	if poll.StatusCode != http.StatusAccepted {
		t.Fatalf("early poll status = %d, want 202", poll.StatusCode)
	}

	clk.Advance(10 * time.Second)

	done := get(t, h, location)
	if done.StatusCode != http.StatusCreated {
		t.Fatalf("completing poll status = %d, want 201", done.StatusCode)
	}
	if sp.Pending() != 0 {
		t.Errorf("Pending() after completion = %d, want 0", sp.Pending())
	}
	if again := get(t, h, location); again.StatusCode != http.StatusNotFound {
		t.Errorf("poll after completion = %d, want 404", again.StatusCode)
	}
}

func TestHandler_MaxDelayApplied(t *testing.T) {
	sp, err := New(WithMaxDelay(2*time.Second), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp := get(t, sp.Handler(), "/slow?delay=3")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandler_PingReportsServiceAndVersion(t *testing.T) {
	sp, err := New(WithServiceName("async-slowapp"), WithVersion("v9"), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp := get(t, sp.Handler(), "/_ping")
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{`"ping":"pong"`, `"service":"async-slowapp"`, `"version":"v9"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("ping body = %s, want %s", body, want)
		}
	}
}

func TestHandler_MetricsExposed(t *testing.T) {
	sp, err := New(WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h := sp.Handler()

	get(t, h, "/slow?complete_in=0")
	get(t, h, "/poll?id=missing")

	resp := get(t, h, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, series := range []string{"slowpoll_operations_started", "slowpoll_operations_not_found", "slowpoll_operations_pending"} {
		if !strings.Contains(string(body), series) {
			t.Errorf("metrics output missing %s", series)
		}
	}
}

func TestHandler_MetricsDisabled(t *testing.T) {
	sp, err := New(WithMetrics(false), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if resp := get(t, sp.Handler(), "/metrics"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /metrics status = %d, want 404", resp.StatusCode)
	}
}
