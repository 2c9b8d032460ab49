package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jpalmerr/slowpoll/internal/headers"
	"github.com/jpalmerr/slowpoll/internal/registry"
)

// PollCountCookie is the cookie a client echoes to have its polls counted.
const PollCountCookie = "poll-count"

// handleSlow starts an operation and points the client at its poll URL.
func (s *Server) handleSlow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := parseStartParams(r.URL.Query(), s.opts)
	if err != nil {
		s.reject(w, r, err)
		return
	}

	if p.Delay > 0 {
		select {
		case <-s.opts.Clock.After(p.Delay):
		case <-ctx.Done():
			// client went away during the delay; nothing was registered
			s.logger.Debug("start abandoned during delay", "delay", p.Delay.String())
			return
		}
	}

	now := s.opts.Clock.Now()
	op := registry.Operation{
		ID:          s.opts.IDs.NewID(),
		CreatedAt:   now,
		FinishAt:    now.Add(p.CompleteIn),
		FinalStatus: p.FinalStatus,
	}
	s.registry.Insert(op)
	s.opts.Metrics.Started(ctx)

	location := s.pollLocation(r, op.ID)
	if p.NoContentLocation {
		location += "&" + paramNoCL + "=1"
	}

	h := headers.New(
		"Content-Type", "application/json",
		"Content-Location", location,
	)
	h.WithNewCookies(headers.SetCookie, pollCount(0))

	s.logger.Info("operation started",
		"id", op.ID,
		"complete_in", p.CompleteIn.String(),
		"final_status", op.FinalStatus,
	)
	s.respond(w, http.StatusAccepted, h)
}

// handlePoll answers a poll: 404 for unknown ids, 202 while pending and the
// final status exactly once when complete.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	id := q.Get(paramID)

	next, counted := nextPollCount(headers.FromHTTP(r.Header))

	if id == "" {
		s.notFound(w, r, "poll", id)
		return
	}

	op, outcome, err := s.registry.Resolve(id, s.opts.Clock.Now())
	if errors.Is(err, registry.ErrNotFound) {
		s.notFound(w, r, "poll", id)
		return
	}
	if err != nil {
		s.logger.Error("failed to resolve operation", "id", id, "error", err)
		s.respond(w, http.StatusInternalServerError, nil)
		return
	}

	h := headers.New()
	if counted {
		h.WithNewCookies(headers.SetCookie, pollCount(next))
	}

	if outcome == registry.Pending {
		if !noContentLocation(q) {
			h.Set("Content-Location", s.pollLocation(r, id))
		}
		s.respond(w, http.StatusAccepted, h)
		return
	}

	s.opts.Metrics.Completed(ctx, op.FinalStatus)
	s.logger.Info("operation completed", "id", id, "final_status", op.FinalStatus)
	s.respond(w, op.FinalStatus, h)
}

// handleDelete removes an operation whether or not it has finished.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get(paramID)
	if id == "" {
		s.notFound(w, r, "delete", id)
		return
	}

	if _, err := s.registry.Delete(id); err != nil {
		s.notFound(w, r, "delete", id)
		return
	}

	s.opts.Metrics.Deleted(r.Context())
	s.logger.Info("operation deleted", "id", id)
	s.respond(w, http.StatusOK, nil)
}

// pingResponse is the body of the health endpoints.
type pingResponse struct {
	Ping    string `json:"ping"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, pingResponse{
		Ping:    "pong",
		Service: s.opts.ServiceName,
		Version: s.opts.Version,
	})
}

// respond writes status with h and no body.
func (s *Server) respond(w http.ResponseWriter, status int, h *headers.Headers) {
	if h.Len() > 0 {
		h.WriteTo(w.Header())
		s.logger.Debug("response headers", "status", status, "headers", h.Printable())
	}
	w.WriteHeader(status)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request, op, id string) {
	s.opts.Metrics.NotFound(r.Context(), op)
	s.logger.Debug("operation not found", "op", op, "id", id)
	s.respond(w, http.StatusNotFound, nil)
}

// errorResponse is the body of a rejected request.
type errorResponse struct {
	Error string `json:"error"`
}

// reject answers 400 for a request whose parameters failed validation.
func (s *Server) reject(w http.ResponseWriter, r *http.Request, err error) {
	param := "unknown"
	var pe *paramError
	if errors.As(err, &pe) {
		param = pe.param
	}
	s.opts.Metrics.Rejected(r.Context(), param)
	s.logger.Warn("rejected start request", "param", param, "error", err)
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// pollLocation returns the absolute poll URL for id.
func (s *Server) pollLocation(r *http.Request, id string) string {
	return fmt.Sprintf("%s/poll?%s=%s", s.baseURI(r), paramID, url.QueryEscape(id))
}

// baseURI returns the configured base URI, or one derived from the request.
func (s *Server) baseURI(r *http.Request) string {
	if s.opts.BaseURI != "" {
		return s.opts.BaseURI
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// pollCount is the poll-count cookie carrying n.
func pollCount(n int) headers.CookieSet {
	return headers.CookieSet{{
		Name:     PollCountCookie,
		Fragment: PollCountCookie + "=" + strconv.Itoa(n),
	}}
}

// nextPollCount reads the poll-count cookie from request headers and
// returns its successor. ok is false when the cookie is absent or its
// value is not an integer.
func nextPollCount(req *headers.Headers) (next int, ok bool) {
	fragment, found := req.Cookies(headers.CookieHeader).Get(PollCountCookie)
	if !found {
		return 0, false
	}
	_, raw, _ := strings.Cut(fragment, "=")
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n + 1, true
}
