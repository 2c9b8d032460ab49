package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/slowpoll/internal/headers"
	"github.com/jpalmerr/slowpoll/internal/registry"
	"github.com/jpalmerr/slowpoll/internal/server"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newSlowPollServer runs the real lifecycle handlers on an httptest server.
func newSlowPollServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := server.NewServer(registry.NewMemoryRegistry(nil), 0, server.Options{}, testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestRun_AgainstServer(t *testing.T) {
	ts := newSlowPollServer(t)
	client := NewClient(testLogger())
	defer client.Close()

	var (
		mu    sync.Mutex
		polls []Poll
	)
	res, err := client.Run(context.Background(), Request{
		BaseURL:     ts.URL,
		CompleteIn:  150 * time.Millisecond,
		FinalStatus: http.StatusCreated,
		Interval:    20 * time.Millisecond,
		OnPoll: func(p Poll) {
			mu.Lock()
			polls = append(polls, p)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.FinalStatus != http.StatusCreated {
		t.Errorf("FinalStatus = %d, want 201", res.FinalStatus)
	}
	if res.ID == "" {
		t.Error("ID should be taken from Content-Location")
	}
	if res.Polls < 2 {
		t.Errorf("Polls = %d, want at least 2", res.Polls)
	}
	if res.PollCount != res.Polls {
		t.Errorf("PollCount = %d, want %d (one per poll)", res.PollCount, res.Polls)
	}
	if res.Elapsed < 150*time.Millisecond {
		t.Errorf("Elapsed = %s, want at least 150ms", res.Elapsed)
	}

	// poll-count climbs by exactly one per poll
	for i, p := range polls {
		if p.N != i+1 || p.PollCount != i+1 {
			t.Errorf("poll %d = %+v, want N and PollCount %d", i, p, i+1)
		}
	}

	// the operation was collected by the completing poll
	resp, err := http.Get(ts.URL + "/poll?id=" + res.ID)
	if err != nil {
		t.Fatalf("GET /poll failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("poll after completion = %d, want 404", resp.StatusCode)
	}
}

func TestRun_NoContentLocationReusesFirst(t *testing.T) {
	ts := newSlowPollServer(t)
	client := NewClient(testLogger())

	res, err := client.Run(context.Background(), Request{
		BaseURL:           ts.URL,
		CompleteIn:        80 * time.Millisecond,
		NoContentLocation: true,
		Interval:          20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.FinalStatus != http.StatusOK {
		t.Errorf("FinalStatus = %d, want 200", res.FinalStatus)
	}
	if res.Polls < 2 {
		t.Errorf("Polls = %d, want at least 2", res.Polls)
	}
}

func TestRun_RelativeContentLocation(t *testing.T) {
	var polls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/slow":
			w.Header().Set("Content-Location", "/poll?id=rel-1")
			w.WriteHeader(http.StatusAccepted)
		case "/poll":
			if r.URL.Query().Get("id") != "rel-1" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if polls.Add(1) < 2 {
				w.WriteHeader(http.StatusAccepted)
				return
			}
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer ts.Close()

	res, err := NewClient(testLogger()).Run(context.Background(), Request{BaseURL: ts.URL, Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ID != "rel-1" || res.FinalStatus != http.StatusTeapot || res.Polls != 2 {
		t.Errorf("Run() = %+v, want rel-1 / 418 after 2 polls", res)
	}
	if res.PollCount != -1 {
		t.Errorf("PollCount = %d, want -1 when no cookie is set", res.PollCount)
	}
}

func TestRun_SendsAllCookiesBack(t *testing.T) {
	var got atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/slow":
			w.Header().Add("Set-Cookie", "poll-count=0; Path=/")
			w.Header().Add("Set-Cookie", "session=abc")
			w.Header().Set("Content-Location", "/poll?id=x")
			w.WriteHeader(http.StatusAccepted)
		case "/poll":
			got.Store(r.Header.Get("Cookie"))
			w.Header().Set("Set-Cookie", "poll-count=1")
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer ts.Close()

	res, err := NewClient(testLogger()).Run(context.Background(), Request{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if cookie, _ := got.Load().(string); cookie != "poll-count=0; session=abc" {
		t.Errorf("Cookie sent = %q, want %q", cookie, "poll-count=0; session=abc")
	}
	if res.PollCount != 1 {
		t.Errorf("PollCount = %d, want 1", res.PollCount)
	}
}

func TestRun_SendsStartParameters(t *testing.T) {
	var query atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			query.Store(r.URL.RawQuery)
			w.Header().Set("Content-Location", "/poll?id=x")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	_, err := NewClient(testLogger()).Run(context.Background(), Request{
		BaseURL:           ts.URL + "/",
		Delay:             250 * time.Millisecond,
		CompleteIn:        2 * time.Second,
		FinalStatus:       503,
		NoContentLocation: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := "complete_in=2&delay=0.25&final_status=503&nocl=1"
	if q, _ := query.Load().(string); q != want {
		t.Errorf("start query = %q, want %q", q, want)
	}
}

func TestRun_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("final_status") {
		case "400":
			w.WriteHeader(http.StatusBadRequest)
		case "204":
			// accepted but nowhere to poll
			w.WriteHeader(http.StatusAccepted)
		default:
			if r.URL.Path == "/slow" {
				w.Header().Set("Content-Location", "/poll?id=forever")
			}
			w.WriteHeader(http.StatusAccepted)
		}
	}))
	defer ts.Close()

	client := NewClient(testLogger())

	tests := []struct {
		name string
		req  Request
		is   error
	}{
		{"invalid base URL", Request{BaseURL: "not a url"}, nil},
		{"start rejected", Request{BaseURL: ts.URL, FinalStatus: 400}, nil},
		{"no content location", Request{BaseURL: ts.URL, FinalStatus: 204}, nil},
		{"gives up", Request{BaseURL: ts.URL, MaxPolls: 3, Interval: time.Millisecond}, ErrGaveUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Run(context.Background(), tt.req)
			if err == nil {
				t.Fatal("Run() error = nil, want error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("Run() error = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestRun_ContextBoundsRun(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Location", "/poll?id=forever")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := NewClient(testLogger()).Run(ctx, Request{BaseURL: ts.URL, Interval: 10 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want deadline exceeded", err)
	}
	if res.Polls == 0 {
		t.Error("expected some polls before the deadline")
	}
}

func TestRun_CallbackPanicRecovered(t *testing.T) {
	ts := newSlowPollServer(t)

	res, err := NewClient(testLogger()).Run(context.Background(), Request{
		BaseURL:    ts.URL,
		CompleteIn: time.Millisecond,
		Interval:   5 * time.Millisecond,
		OnPoll:     func(Poll) { panic("boom") },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.FinalStatus != http.StatusOK {
		t.Errorf("FinalStatus = %d, want 200", res.FinalStatus)
	}
}

// TestClient_ConnectionReuse verifies that the HTTP client reuses connections
// when making sequential requests to the same host.
func TestClient_ConnectionReuse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	client := NewClient(testLogger())

	var reusedCount atomic.Int32
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount.Add(1)
			}
		},
	}

	const numRequests = 5

	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		if _, err := client.fetch(ctx, ts.URL, headers.New(), 5*time.Second); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	// all requests after the first should reuse the connection
	expectedMinReuse := int32(numRequests - 2) // allow some tolerance
	if reusedCount.Load() < expectedMinReuse {
		t.Errorf("expected at least %d reused connections, got %d out of %d requests",
			expectedMinReuse, reusedCount.Load(), numRequests)
	}
}

// TestClient_ConnectionReuseAcrossRun verifies that a full start-and-poll
// run keeps one connection even when answers carry bodies larger than the
// transport buffers.
func TestClient_ConnectionReuseAcrossRun(t *testing.T) {
	body := strings.Repeat("x", 64<<10)
	var polls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			w.Header().Set("Content-Location", "/poll?id=op-1")
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(body))
			return
		}
		if polls.Add(1) < 4 {
			w.WriteHeader(http.StatusAccepted)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_, _ = w.Write([]byte(body))
	}))
	defer ts.Close()

	client := NewClient(testLogger())
	defer client.Close()

	var newConns atomic.Int32
	ctx := httptrace.WithClientTrace(context.Background(), &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if !info.Reused {
				newConns.Add(1)
			}
		},
	})

	res, err := client.Run(ctx, Request{BaseURL: ts.URL, Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Polls != 4 {
		t.Errorf("Polls = %d, want 4", res.Polls)
	}
	if got := newConns.Load(); got != 1 {
		t.Errorf("new connections = %d, want 1 for 5 requests", got)
	}
}

// TestClient_Close verifies that Close() is safe to call and idempotent.
func TestClient_Close(t *testing.T) {
	client := NewClient(nil)

	client.Close()
	client.Close()

	var nilClient *Client
	nilClient.Close()
}
