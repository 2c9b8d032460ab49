// Package registry tracks in-flight poll operations.
//
// The registry is the only mutable state shared between requests. It maps an
// operation id to its [Operation] record from the moment the operation is
// started until its completion has been delivered or it has been deleted.
//
// The main components are:
//
//   - [Registry]: interface for lifecycle transitions and subscriptions
//   - [MemoryRegistry]: in-memory implementation with event fan-out
//   - [Janitor]: optional background sweep of operations nobody collected
//
// Lookups and the mutation that follows them happen under one lock, so
// completion of an operation is handed to exactly one poller even when
// several polls for the same id race.
package registry
