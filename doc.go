// Package slowpoll provides an embeddable HTTP server that simulates
// long-running asynchronous operations using the poll-until-complete pattern.
//
// It exists to exercise clients, gateways and proxies that have to cope with
// 202 Accepted responses, Content-Location headers and repeated polling.
//
// # Quick Start
//
//	sp, _ := slowpoll.New(slowpoll.WithPort(9000))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	sp.Start(ctx) // blocks until context is cancelled
//
// # Lifecycle
//
// Every operation moves through absent, pending and back to absent:
//
//   - GET /slow registers an operation and answers 202 with a
//     Content-Location pointing at GET /poll?id=<id> and a poll-count=0 cookie
//   - GET /poll answers 202 while the operation is pending, incrementing the
//     poll-count cookie when the client sends it back
//   - the first poll at or after the completion time answers with the final
//     status and removes the operation; later polls answer 404
//   - GET /delete (or DELETE /poll) removes a pending operation
//
// Start parameters are delay, complete_in (both in seconds, fractions
// allowed), final_status and nocl=1 to stop repeating Content-Location.
// Invalid values are rejected with 400.
//
// # Configuration
//
// SlowPoll uses the functional options pattern for configuration:
//
//	sp, err := slowpoll.New(
//	    slowpoll.WithPort(9090),
//	    slowpoll.WithBaseURI("https://api.example.com"),
//	    slowpoll.WithDefaultCompleteIn(2 * time.Second),
//	    slowpoll.WithRetention(10 * time.Minute),
//	    slowpoll.WithIDFormat("xid"),
//	)
//
// # Architecture
//
// SlowPoll consists of several internal packages (under internal/):
//
//   - internal/headers: Multi-value header store and cookie merging
//   - internal/registry: In-flight operations with lifecycle events and the retention janitor
//   - internal/server: HTTP handlers, snapshot API and Server-Sent Events
//   - internal/poller: Client that starts and polls operations to completion
//   - internal/telemetry: OpenTelemetry metrics exported for Prometheus
//
// The internal packages are not part of the public API and may change
// without notice.
package slowpoll
