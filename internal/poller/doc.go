// Package poller is an HTTP client for poll-until-complete endpoints.
//
// A run starts an operation, then follows its Content-Location until the
// server answers with something other than 202 Accepted. Cookies set by the
// server are echoed back on every poll, so a server that counts polls
// through a poll-count cookie sees that count increase by one per poll.
//
// The main components are:
//
//   - [Client]: HTTP client with per-request timeouts and a cookie jar per run
//   - [Request]: Start parameters and polling behaviour of a run
//   - [Result]: Outcome of a run
//   - [Client.RunMany]: Worker pool executing many runs concurrently
package poller
