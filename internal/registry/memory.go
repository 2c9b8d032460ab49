package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/jpalmerr/slowpoll/internal/clock"
)

// subscriberBuffer is the per-subscriber event channel capacity.
const subscriberBuffer = 100

// MemoryRegistry is an in-memory implementation of [Registry].
//
// The registry lives as long as the process and is never persisted. Every
// transition publishes an [Event] to subscribers through buffered channels;
// if a subscriber's buffer is full the event is dropped for that subscriber
// so request handling never blocks on a slow consumer.
type MemoryRegistry struct {
	mu          sync.Mutex
	operations  map[string]Operation
	clock       clock.Clock
	subscribers map[chan Event]struct{}
	subMu       sync.RWMutex
}

// NewMemoryRegistry creates an empty registry. clk stamps published events;
// nil means the wall clock.
func NewMemoryRegistry(clk clock.Clock) *MemoryRegistry {
	if clk == nil {
		clk = clock.Real{}
	}
	return &MemoryRegistry{
		operations:  make(map[string]Operation),
		clock:       clk,
		subscribers: make(map[chan Event]struct{}),
	}
}

// Insert stores op and publishes [EventStarted].
func (m *MemoryRegistry) Insert(op Operation) {
	m.mu.Lock()
	m.operations[op.ID] = op
	m.mu.Unlock()

	m.publish(EventStarted, op, m.clock.Now())
}

// Lookup returns the record for id.
func (m *MemoryRegistry) Lookup(id string) (Operation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.operations[id]
	return op, ok
}

// Remove deletes id without publishing an event. Removing an unknown id is
// a no-op that returns false.
func (m *MemoryRegistry) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.operations[id]; !ok {
		return false
	}
	delete(m.operations, id)
	return true
}

// Resolve implements [Registry.Resolve].
func (m *MemoryRegistry) Resolve(id string, now time.Time) (Operation, Outcome, error) {
	m.mu.Lock()
	op, ok := m.operations[id]
	if !ok {
		m.mu.Unlock()
		return Operation{}, Pending, ErrNotFound
	}
	if !op.Done(now) {
		m.mu.Unlock()
		return op, Pending, nil
	}
	delete(m.operations, id)
	m.mu.Unlock()

	m.publish(EventCompleted, op, now)
	return op, Completed, nil
}

// Delete implements [Registry.Delete] and publishes [EventDeleted].
func (m *MemoryRegistry) Delete(id string) (Operation, error) {
	m.mu.Lock()
	op, ok := m.operations[id]
	if !ok {
		m.mu.Unlock()
		return Operation{}, ErrNotFound
	}
	delete(m.operations, id)
	m.mu.Unlock()

	m.publish(EventDeleted, op, m.clock.Now())
	return op, nil
}

// Sweep implements [Registry.Sweep] and publishes [EventExpired] for each
// removed operation.
func (m *MemoryRegistry) Sweep(cutoff time.Time) int {
	var expired []Operation

	m.mu.Lock()
	for id, op := range m.operations {
		if op.FinishAt.Before(cutoff) {
			expired = append(expired, op)
			delete(m.operations, id)
		}
	}
	m.mu.Unlock()

	now := m.clock.Now()
	for _, op := range expired {
		m.publish(EventExpired, op, now)
	}
	return len(expired)
}

// All returns a snapshot of tracked operations ordered by creation time.
// The returned slice is a copy.
func (m *MemoryRegistry) All() []Operation {
	m.mu.Lock()
	ops := make([]Operation, 0, len(m.operations))
	for _, op := range m.operations {
		ops = append(ops, op)
	}
	m.mu.Unlock()

	sort.Slice(ops, func(i, j int) bool {
		if ops[i].CreatedAt.Equal(ops[j].CreatedAt) {
			return ops[i].ID < ops[j].ID
		}
		return ops[i].CreatedAt.Before(ops[j].CreatedAt)
	})
	return ops
}

// Len returns the number of tracked operations.
func (m *MemoryRegistry) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.operations)
}

// Subscribe creates a subscription with a buffer of 100 events.
//
// Caller must call [MemoryRegistry.Unsubscribe] when done to prevent
// resource leaks.
func (m *MemoryRegistry) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// multiple times or with an unknown channel.
func (m *MemoryRegistry) Unsubscribe(ch <-chan Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// publish fans an event out without blocking on full subscriber buffers.
func (m *MemoryRegistry) publish(kind EventKind, op Operation, at time.Time) {
	ev := Event{Kind: kind, Operation: op, At: at}

	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
			// subscriber is slow, drop the event
		}
	}
}
