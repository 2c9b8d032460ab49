package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jpalmerr/slowpoll/internal/registry"
)

// sseWriteTimeout is the maximum time allowed for a single SSE write.
// Must be <= shutdownTimeout so streams cannot hold up shutdown.
const sseWriteTimeout = 5 * time.Second

// operationView is the JSON form of a tracked operation.
type operationView struct {
	registry.Operation
	State       string  `json:"state"`
	RemainingMs float64 `json:"remaining_ms"`
}

// operationsResponse is the body of GET /api/operations.
type operationsResponse struct {
	Count      int             `json:"count"`
	Operations []operationView `json:"operations"`
}

// handleOperations returns a snapshot of every tracked operation.
func (s *Server) handleOperations(w http.ResponseWriter, _ *http.Request) {
	now := s.opts.Clock.Now()
	ops := s.registry.All()

	views := make([]operationView, 0, len(ops))
	for _, op := range ops {
		v := operationView{Operation: op, State: registry.Pending.String()}
		if op.Done(now) {
			v.State = "finished"
		} else {
			v.RemainingMs = float64(op.FinishAt.Sub(now)) / float64(time.Millisecond)
		}
		views = append(views, v)
	}

	s.writeJSON(w, http.StatusOK, operationsResponse{Count: len(views), Operations: views})
}

// handleEvents streams lifecycle events via Server-Sent Events.
//
// Each event is written as "event: <kind>" followed by the JSON-encoded
// [registry.Event]. Writes carry a deadline so a stalled client cannot pin
// the handler goroutine.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(ev registry.Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("failed to encode event", "kind", ev.Kind, "error", err)
			return nil
		}
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	ch := s.registry.Subscribe()
	defer s.registry.Unsubscribe(ch)

	// replay what is already in flight as started events
	for _, op := range s.registry.All() {
		if err := writeAndFlush(registry.Event{Kind: registry.EventStarted, Operation: op, At: op.CreatedAt}); err != nil {
			return
		}
	}
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := writeAndFlush(ev); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown
			return
		}
	}
}
