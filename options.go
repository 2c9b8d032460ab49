package slowpoll

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpalmerr/slowpoll/internal/clock"
	"github.com/jpalmerr/slowpoll/internal/ids"
)

// spConfig holds mutable state during SlowPoll construction.
type spConfig struct {
	port               int
	baseURI            string
	serviceName        string
	version            string
	defaultCompleteIn  time.Duration
	defaultFinalStatus int
	maxDelay           time.Duration
	retention          time.Duration
	ids                ids.Generator
	metrics            bool
	logger             *slog.Logger
	clock              clock.Clock
	callbacks          []func(Event)
}

// Option is a function that configures a [SlowPoll] instance during
// construction.
//
// Options return an error if validation fails; [New] stops at the first
// failing option.
type Option func(*spConfig) error

// WithPort sets the HTTP port of the server. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *spConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithBaseURI sets the prefix of every Content-Location the server hands
// out, for example "https://api.example.com/async".
//
// When unset the scheme and Host of each request are used.
func WithBaseURI(uri string) Option {
	return func(cfg *spConfig) error {
		cfg.baseURI = uri
		return nil
	}
}

// WithServiceName sets the service name reported by the ping endpoints.
// Defaults to "slowpoll".
func WithServiceName(name string) Option {
	return func(cfg *spConfig) error {
		if name == "" {
			return errors.New("service name cannot be empty")
		}
		cfg.serviceName = name
		return nil
	}
}

// WithVersion sets the version reported by the ping endpoints.
func WithVersion(version string) Option {
	return func(cfg *spConfig) error {
		cfg.version = version
		return nil
	}
}

// WithDefaultCompleteIn sets how long an operation stays pending when the
// start request has no complete_in parameter. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithDefaultCompleteIn(d time.Duration) Option {
	return func(cfg *spConfig) error {
		if d <= 0 {
			return errors.New("default complete_in must be positive")
		}
		cfg.defaultCompleteIn = d
		return nil
	}
}

// WithDefaultFinalStatus sets the status an operation completes with when
// the start request has no final_status parameter. Defaults to 200.
//
// Returns an error if the status is outside 200-599; 1xx codes are not
// final responses.
func WithDefaultFinalStatus(status int) Option {
	return func(cfg *spConfig) error {
		if status < 200 || status > 599 {
			return fmt.Errorf("default final status must be between 200 and 599, got %d", status)
		}
		cfg.defaultFinalStatus = status
		return nil
	}
}

// WithMaxDelay caps the delay a start request may ask for. Larger values
// are rejected with 400. Defaults to 60 seconds.
//
// Returns an error if the duration is zero or negative.
func WithMaxDelay(d time.Duration) Option {
	return func(cfg *spConfig) error {
		if d <= 0 {
			return errors.New("max delay must be positive")
		}
		cfg.maxDelay = d
		return nil
	}
}

// WithRetention enables the janitor: finished operations that nobody
// collects are removed once they have been finished for longer than d.
// Zero disables the janitor, which is the default.
//
// Returns an error if d is negative or below one second.
func WithRetention(d time.Duration) Option {
	return func(cfg *spConfig) error {
		if d < 0 {
			return errors.New("retention cannot be negative")
		}
		if d > 0 && d < time.Second {
			return errors.New("retention must be at least 1s")
		}
		cfg.retention = d
		return nil
	}
}

// WithIDFormat selects how operation ids are generated: "uuid" (the
// default) or "xid".
func WithIDFormat(format string) Option {
	return func(cfg *spConfig) error {
		gen, err := ids.ForFormat(format)
		if err != nil {
			return err
		}
		cfg.ids = gen
		return nil
	}
}

// WithMetrics enables or disables the /metrics endpoint and request
// instrumentation. Enabled by default.
func WithMetrics(enabled bool) Option {
	return func(cfg *spConfig) error {
		cfg.metrics = enabled
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the SlowPoll instance.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *spConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithClock sets the time source used for delays, completion checks and
// retention. Intended for tests.
//
// Returns an error if the clock is nil.
func WithClock(clk clock.Clock) Option {
	return func(cfg *spConfig) error {
		if clk == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = clk
		return nil
	}
}

// WithLifecycleCallback registers a function called on every lifecycle
// transition while [SlowPoll.Start] runs.
//
// Multiple callbacks may be registered; they execute in registration order
// from a single goroutine. Callbacks must be non-blocking: events are
// delivered through a bounded buffer and a slow callback causes later
// events to be dropped. Panics within callbacks are recovered and logged.
//
// Example:
//
//	sp, err := slowpoll.New(
//	    slowpoll.WithLifecycleCallback(func(ev slowpoll.Event) {
//	        if ev.Kind == slowpoll.EventExpired {
//	            log.Printf("operation %s was never collected", ev.ID)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithLifecycleCallback(cb func(Event)) Option {
	return func(cfg *spConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}
