// Package server provides the HTTP surface of the slow asynchronous
// operation simulator.
//
// This package is internal to SlowPoll and handles all HTTP concerns:
//
//   - Lifecycle: "/slow" starts an operation, "/poll" checks it, "/delete"
//     (or DELETE "/poll") removes it
//   - Health: "/ping", "/_ping" and "/_status"
//   - REST API: JSON snapshot of pending operations at "/api/operations"
//   - Server-Sent Events: lifecycle transitions at "/api/events"
//   - Metrics: Prometheus exposition at "/metrics" when enabled
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the slowpoll library should not need to interact with this
// package directly. The server is started automatically by [slowpoll.SlowPoll.Start].
package server
