package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"

	"github.com/jpalmerr/slowpoll/internal/clock"
	"github.com/jpalmerr/slowpoll/internal/ids"
	"github.com/jpalmerr/slowpoll/internal/registry"
	"github.com/jpalmerr/slowpoll/internal/telemetry"
)

const (
	// shutdownTimeout bounds how long in-flight requests may run once the
	// server context is cancelled.
	shutdownTimeout = 5 * time.Second

	defaultServiceName = "slowpoll"
	defaultCompleteIn  = 5 * time.Second
	defaultFinalStatus = http.StatusOK
	defaultMaxDelay    = time.Minute
)

// Options carries the collaborators and defaults of a [Server]. Zero
// fields fall back to sensible defaults.
type Options struct {
	// ServiceName and Version are reported by the ping endpoints.
	ServiceName string
	Version     string

	// BaseURI prefixes Content-Location values. When empty the scheme and
	// Host of each request are used.
	BaseURI string

	// DefaultCompleteIn applies when a start request has no complete_in.
	DefaultCompleteIn time.Duration

	// DefaultFinalStatus applies when a start request has no final_status.
	DefaultFinalStatus int

	// MaxDelay caps the delay query parameter.
	MaxDelay time.Duration

	// IDs generates operation ids. Defaults to UUIDs.
	IDs ids.Generator

	// Clock is the time source for delays and completion checks.
	Clock clock.Clock

	// Metrics records lifecycle transitions. May be nil.
	Metrics *telemetry.Metrics

	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler

	// MeterProvider instruments every request through otelhttp when
	// non-nil.
	MeterProvider metric.MeterProvider
}

func (o Options) withDefaults() Options {
	if o.ServiceName == "" {
		o.ServiceName = defaultServiceName
	}
	if o.DefaultCompleteIn == 0 {
		o.DefaultCompleteIn = defaultCompleteIn
	}
	if o.DefaultFinalStatus == 0 {
		o.DefaultFinalStatus = defaultFinalStatus
	}
	if o.MaxDelay == 0 {
		o.MaxDelay = defaultMaxDelay
	}
	if o.IDs == nil {
		o.IDs = ids.UUID{}
	}
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	o.BaseURI = strings.TrimRight(o.BaseURI, "/")
	return o
}

// Server handles HTTP requests for the poll lifecycle.
//
// Every handler composes the [registry.Registry] with response headers
// built through the headers package. The server is designed for graceful
// shutdown via context cancellation.
type Server struct {
	registry registry.Registry
	port     int
	opts     Options
	logger   *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	addr       net.Addr
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - reg: Registry of in-flight operations
//   - port: TCP port to listen on (0 picks a free port)
//   - opts: Collaborators and defaults, see [Options]
//   - logger: Logger for lifecycle and server events
//
// The server is not started until [Server.Start] is called.
func NewServer(reg registry.Registry, port int, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry: reg,
		port:     port,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Handler returns the fully routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	// lifecycle routes
	r.Get("/slow", s.handleSlow)
	r.Get("/poll", s.handlePoll)
	r.Delete("/poll", s.handleDelete)
	r.Get("/delete", s.handleDelete)

	// health routes
	r.Get("/ping", s.handlePing)
	r.Get("/_ping", s.handlePing)
	r.Get("/_status", s.handlePing)

	// API routes
	r.Get("/api/operations", s.handleOperations)
	r.Get("/api/events", s.handleEvents)

	if s.opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.MetricsHandler)
	}

	if s.opts.MeterProvider == nil {
		return r
	}
	return otelhttp.NewHandler(r, s.opts.ServiceName,
		otelhttp.WithMeterProvider(s.opts.MeterProvider),
		otelhttp.WithFilter(func(req *http.Request) bool {
			// long-lived streams would skew the duration histogram
			return req.URL.Path != "/api/events"
		}),
	)
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// which ends start delays and event streams.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the address the server is listening on, or nil before
// [Server.Start] succeeded.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// logRequests logs every request once it has been answered.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
