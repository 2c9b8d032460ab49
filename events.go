package slowpoll

import (
	"time"

	"github.com/jpalmerr/slowpoll/internal/registry"
)

// EventKind names a lifecycle transition of an operation.
type EventKind string

// Lifecycle transitions reported to callbacks.
const (
	// EventStarted is emitted when a start request registers an operation.
	EventStarted EventKind = "started"

	// EventCompleted is emitted when a poll collects a finished operation.
	EventCompleted EventKind = "completed"

	// EventDeleted is emitted when an operation is explicitly deleted.
	EventDeleted EventKind = "deleted"

	// EventExpired is emitted when a finished operation is swept after the
	// retention period without having been collected.
	EventExpired EventKind = "expired"
)

// String returns the event kind name.
func (k EventKind) String() string {
	return string(k)
}

// Event describes one lifecycle transition.
//
// Event is passed by value to callbacks registered with
// [WithLifecycleCallback].
type Event struct {
	// Kind is the transition that happened.
	Kind EventKind

	// ID is the operation identifier.
	ID string

	// CreatedAt is when the operation was registered.
	CreatedAt time.Time

	// FinishAt is when the operation became (or becomes) complete.
	FinishAt time.Time

	// FinalStatus is the HTTP status the operation completes with.
	FinalStatus int

	// At is when the transition happened.
	At time.Time
}

func eventFromRegistry(ev registry.Event) Event {
	return Event{
		Kind:        EventKind(ev.Kind),
		ID:          ev.Operation.ID,
		CreatedAt:   ev.Operation.CreatedAt,
		FinishAt:    ev.Operation.FinishAt,
		FinalStatus: ev.Operation.FinalStatus,
		At:          ev.At,
	}
}
