package slowpoll

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jpalmerr/slowpoll/internal/clock"
	"github.com/jpalmerr/slowpoll/internal/ids"
	"github.com/jpalmerr/slowpoll/internal/registry"
	"github.com/jpalmerr/slowpoll/internal/server"
	"github.com/jpalmerr/slowpoll/internal/telemetry"
)

const (
	defaultPort               = 8080
	defaultServiceName        = "slowpoll"
	defaultCompleteIn         = 5 * time.Second
	defaultFinalStatus        = http.StatusOK
	defaultMaxDelay           = time.Minute
	telemetryShutdownDeadline = 5 * time.Second
)

// SlowPoll is a server simulating long-running asynchronous operations with
// the poll-until-complete pattern.
//
// A client starts an operation with GET /slow, receives 202 and a
// Content-Location, and polls that location until the operation's
// completion time has passed. The completing poll answers with the
// operation's final status and removes it.
//
// The typical lifecycle is:
//
//	sp, err := slowpoll.New(slowpoll.WithPort(9000))
//	if err != nil {
//	    slog.Error("failed to create slowpoll", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	sp.Start(ctx) // blocks until context cancelled
type SlowPoll struct {
	port      int
	retention time.Duration
	clock     clock.Clock
	logger    *slog.Logger
	callbacks []func(Event)

	registry  *registry.MemoryRegistry
	telemetry *telemetry.Provider
	metrics   *telemetry.Metrics
	server    *server.Server
}

// New creates a new [SlowPoll] instance with the given options.
//
// All options have defaults:
//   - Port: 8080
//   - Default complete_in: 5 seconds
//   - Default final_status: 200
//   - Max delay: 60 seconds
//   - Retention: disabled
//   - Operation ids: UUIDv4
//   - Metrics: enabled
//
// Returns an error if any option is invalid.
//
// Example:
//
//	sp, err := slowpoll.New(
//	    slowpoll.WithPort(9090),
//	    slowpoll.WithBaseURI("https://api.example.com"),
//	    slowpoll.WithRetention(10 * time.Minute),
//	)
func New(opts ...Option) (*SlowPoll, error) {
	cfg := &spConfig{
		port:               defaultPort,
		serviceName:        defaultServiceName,
		defaultCompleteIn:  defaultCompleteIn,
		defaultFinalStatus: defaultFinalStatus,
		maxDelay:           defaultMaxDelay,
		ids:                ids.UUID{},
		metrics:            true,
		clock:              clock.Real{},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	sp := &SlowPoll{
		port:      cfg.port,
		retention: cfg.retention,
		clock:     cfg.clock,
		logger:    logger,
		callbacks: cfg.callbacks,
		registry:  registry.NewMemoryRegistry(cfg.clock),
	}

	srvOpts := server.Options{
		ServiceName:        cfg.serviceName,
		Version:            cfg.version,
		BaseURI:            cfg.baseURI,
		DefaultCompleteIn:  cfg.defaultCompleteIn,
		DefaultFinalStatus: cfg.defaultFinalStatus,
		MaxDelay:           cfg.maxDelay,
		IDs:                cfg.ids,
		Clock:              cfg.clock,
	}

	if cfg.metrics {
		provider, err := telemetry.NewProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics provider: %w", err)
		}
		sp.telemetry = provider
		sp.metrics = telemetry.NewMetrics(provider.MeterProvider(), sp.registry.Len, logger)

		srvOpts.Metrics = sp.metrics
		srvOpts.MetricsHandler = provider.Handler()
		srvOpts.MeterProvider = provider.MeterProvider()
	}

	sp.server = server.NewServer(sp.registry, cfg.port, srvOpts, logger)
	return sp, nil
}

// Handler returns the fully routed HTTP handler, for embedding SlowPoll in
// another server or for tests.
//
// Lifecycle callbacks and the retention janitor only run while
// [SlowPoll.Start] is running.
func (sp *SlowPoll) Handler() http.Handler {
	return sp.server.Handler()
}

// Start serves HTTP requests until the provided context is cancelled.
//
// Start is a blocking call. During execution:
//
//   - The HTTP server listens on the configured port
//   - Lifecycle events are delivered to registered callbacks
//   - The janitor sweeps uncollected operations, when retention is set
//
// The caller controls the lifecycle via context cancellation. For signal
// handling, use [signal.NotifyContext].
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start.
func (sp *SlowPoll) Start(ctx context.Context) error {
	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	sp.logger.Info("slowpoll starting", "port", sp.port)

	events := sp.registry.Subscribe()

	// track the event consumer goroutine to ensure clean shutdown
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			if ev.Kind == registry.EventExpired {
				sp.metrics.Expired(ctx, 1)
			}
			if len(sp.callbacks) == 0 {
				continue
			}
			public := eventFromRegistry(ev)
			for _, cb := range sp.callbacks {
				invokeCallbackSafe(cb, public, sp.logger)
			}
		}
	}()

	var janitor *registry.Janitor
	if sp.retention > 0 {
		janitor = registry.NewJanitor(sp.registry, sp.retention, sp.clock, sp.logger)
		janitor.Start(ctx)
		sp.logger.Info("retention enabled",
			"retention", sp.retention.String(),
			"sweep_interval", janitor.Interval().String(),
		)
	}

	// cleanup stops background work and waits for queued events
	cleanup := func() {
		if janitor != nil {
			janitor.Stop()
		}
		sp.registry.Unsubscribe(events) // closes events
		wg.Wait()

		if sp.telemetry != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownDeadline)
			defer cancel()
			if err := sp.telemetry.Shutdown(shutdownCtx); err != nil {
				sp.logger.Warn("metrics shutdown error", "error", err)
			}
		}
	}

	if err := sp.server.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	sp.logger.Info("slowpoll listening", "url", fmt.Sprintf("http://localhost:%d", sp.port))

	<-ctx.Done()
	cleanup()
	sp.logger.Info("slowpoll stopped")
	return nil
}

// Port returns the configured HTTP port.
func (sp *SlowPoll) Port() int {
	return sp.port
}

// Retention returns how long uncollected operations are kept after
// finishing, or zero when they are kept forever.
func (sp *SlowPoll) Retention() time.Duration {
	return sp.retention
}

// Pending returns the number of operations currently tracked.
func (sp *SlowPoll) Pending() int {
	return sp.registry.Len()
}

// invokeCallbackSafe calls a lifecycle callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Event), ev Event, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("lifecycle callback panicked",
				"panic", r,
				"kind", ev.Kind,
				"id", ev.ID,
			)
		}
	}()
	cb(ev)
}
