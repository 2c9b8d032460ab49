package registry

import (
	"errors"
	"time"
)

// ErrNotFound is returned for ids that were never started, have already
// delivered their completion, or were deleted.
var ErrNotFound = errors.New("operation not found")

// Operation is a pending operation record. Records are never updated in
// place; a transition replaces or removes them.
type Operation struct {
	// ID is the opaque identifier handed to the client.
	ID string `json:"id"`

	// CreatedAt is when the operation entered the registry.
	CreatedAt time.Time `json:"created_at"`

	// FinishAt is the instant from which polls observe completion.
	FinishAt time.Time `json:"finish_at"`

	// FinalStatus is the HTTP status returned once the operation completes.
	FinalStatus int `json:"final_status"`
}

// Done reports whether op is complete at now.
func (op Operation) Done(now time.Time) bool {
	return !now.Before(op.FinishAt)
}

// Outcome is the result of resolving a poll against the registry.
type Outcome int

const (
	// Pending means the operation has not reached FinishAt yet.
	Pending Outcome = iota

	// Completed means the operation reached FinishAt and was removed.
	Completed
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// EventKind names a lifecycle transition.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
	EventDeleted   EventKind = "deleted"
	EventExpired   EventKind = "expired"
)

// Event is published to subscribers on every lifecycle transition.
type Event struct {
	Kind      EventKind `json:"kind"`
	Operation Operation `json:"operation"`
	At        time.Time `json:"at"`
}

// Registry defines the lifecycle operations on in-flight poll operations.
//
// Implementations must be safe for concurrent access.
type Registry interface {
	// Insert adds op, replacing any record with the same ID.
	Insert(op Operation)

	// Lookup returns the record for id.
	Lookup(id string) (Operation, bool)

	// Remove deletes id. It reports whether this call removed the record.
	Remove(id string) bool

	// Resolve answers a poll for id at now. A pending operation stays in
	// the registry; a complete one is removed in the same step and
	// reported as Completed. Unknown ids yield ErrNotFound.
	Resolve(id string, now time.Time) (Operation, Outcome, error)

	// Delete removes id regardless of FinishAt, or returns ErrNotFound.
	Delete(id string) (Operation, error)

	// Sweep removes operations whose FinishAt is before cutoff and
	// returns how many were removed.
	Sweep(cutoff time.Time) int

	// All returns a snapshot of every tracked operation.
	All() []Operation

	// Len returns the number of tracked operations.
	Len() int

	// Subscribe returns a channel of lifecycle events. The channel is
	// buffered; slow consumers miss events. Call Unsubscribe when done.
	Subscribe() <-chan Event

	// Unsubscribe removes a subscription and closes its channel.
	Unsubscribe(ch <-chan Event)
}
