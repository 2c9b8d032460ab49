package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/slowpoll/internal/headers"
)

const (
	defaultInterval = 500 * time.Millisecond
	defaultTimeout  = 10 * time.Second

	// maxResponseBodySize bounds how much of a body is drained so the
	// connection can go back to the idle pool.
	maxResponseBodySize = 1 << 20 // 1MB
)

// connection pooling limits to prevent resource exhaustion when many runs
// poll the same server
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// pollCountCookie is the cookie the server increments on every poll.
const pollCountCookie = "poll-count"

// ErrGaveUp is returned when an operation is still pending after
// Request.MaxPolls polls.
var ErrGaveUp = errors.New("operation still pending")

// Request describes one start-and-poll run.
type Request struct {
	// BaseURL is the server root, for example http://localhost:8080.
	BaseURL string

	// Delay, CompleteIn and FinalStatus are sent as the start parameters.
	// Zero values are omitted so the server defaults apply.
	Delay       time.Duration
	CompleteIn  time.Duration
	FinalStatus int

	// NoContentLocation asks the server to stop repeating Content-Location.
	NoContentLocation bool

	// Interval is the pause between polls. Defaults to 500ms.
	Interval time.Duration

	// MaxPolls bounds the number of polls. Zero means unbounded.
	MaxPolls int

	// Timeout applies to each HTTP request. Defaults to 10s.
	Timeout time.Duration

	// OnPoll, when set, is called after every poll.
	OnPoll func(Poll)
}

// Poll reports a single poll of a run.
type Poll struct {
	// N is the 1-based poll number.
	N int

	// StatusCode is the status the server answered with.
	StatusCode int

	// PollCount is the poll-count cookie value after the poll, or -1 when
	// the server set none.
	PollCount int
}

// Result is the outcome of a run.
type Result struct {
	// ID is the operation id taken from the first Content-Location.
	ID string

	// FinalStatus is the first non-202 status seen while polling.
	FinalStatus int

	// Polls is the number of poll requests made.
	Polls int

	// PollCount is the last poll-count cookie value, or -1 when none was
	// received.
	PollCount int

	// Elapsed is the wall time from start request to final answer.
	Elapsed time.Duration

	// Error is set by [Client.RunMany] when the run failed.
	Error error
}

// Client starts operations and polls them until they complete.
//
// Client uses per-request timeouts via context rather than a global timeout.
// Cookies received from the server are kept per run and sent back on every
// poll.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new poll [Client].
//
// The client is configured with connection pooling limits:
//   - MaxIdleConns: 100 total idle connections
//   - MaxIdleConnsPerHost: 10 idle connections per host
//   - MaxConnsPerHost: 10 concurrent connections per host
//   - IdleConnTimeout: 60 seconds before closing idle connections
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
			// Content-Location is followed by hand; redirects are answers
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Run starts an operation and polls it until the server answers with
// something other than 202.
//
// The most recent Content-Location is polled; when the server stops sending
// one the last known location is reused. The context bounds the whole run.
func (c *Client) Run(ctx context.Context, req Request) (Result, error) {
	req = req.withDefaults()
	begin := time.Now()
	jar := headers.New()
	result := Result{PollCount: -1}

	start, err := startURL(req)
	if err != nil {
		return result, err
	}

	resp, err := c.fetch(ctx, start, jar, req.Timeout)
	if err != nil {
		return result, fmt.Errorf("start request failed: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return result, fmt.Errorf("start request returned status %d", resp.StatusCode)
	}

	location, err := resolveLocation(start, resp.Location)
	if err != nil || location == "" {
		return result, fmt.Errorf("start response has no usable Content-Location: %q", resp.Location)
	}
	result.ID = operationID(location)
	result.PollCount = pollCount(jar)

	for {
		if req.MaxPolls > 0 && result.Polls >= req.MaxPolls {
			result.Elapsed = time.Since(begin)
			return result, fmt.Errorf("%w after %d polls", ErrGaveUp, result.Polls)
		}

		if result.Polls > 0 {
			select {
			case <-time.After(req.Interval):
			case <-ctx.Done():
				result.Elapsed = time.Since(begin)
				return result, ctx.Err()
			}
		}

		resp, err := c.fetch(ctx, location, jar, req.Timeout)
		if err != nil {
			result.Elapsed = time.Since(begin)
			return result, fmt.Errorf("poll %d failed: %w", result.Polls+1, err)
		}
		result.Polls++
		result.PollCount = pollCount(jar)
		c.notify(req.OnPoll, Poll{N: result.Polls, StatusCode: resp.StatusCode, PollCount: result.PollCount})

		if resp.StatusCode != http.StatusAccepted {
			result.FinalStatus = resp.StatusCode
			result.Elapsed = time.Since(begin)
			return result, nil
		}

		if resp.Location != "" {
			if next, err := resolveLocation(location, resp.Location); err == nil {
				location = next
			}
		}
	}
}

// response is what a run needs from one HTTP exchange.
type response struct {
	StatusCode int
	Location   string
}

// fetch performs a GET, sending the cookies held in jar and merging the
// ones the server sets back into it.
func (c *Client) fetch(ctx context.Context, target string, jar *headers.Headers, timeout time.Duration) (response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return response{}, fmt.Errorf("failed to create request: %w", err)
	}
	if cookies := jar.Cookies(headers.CookieHeader); len(cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(cookies.Fragments(), "; "))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// status and headers carry the whole answer; drain the body for reuse
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))

	jar.WithNewCookies(headers.CookieHeader, headers.CookieList(resp.Header.Values("Set-Cookie")))

	c.logger.Debug("poll response",
		"url", target,
		"status", resp.StatusCode,
		"headers", headers.FromHTTP(resp.Header).Printable(),
	)

	return response{
		StatusCode: resp.StatusCode,
		Location:   resp.Header.Get("Content-Location"),
	}, nil
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

func (r Request) withDefaults() Request {
	if r.Interval <= 0 {
		r.Interval = defaultInterval
	}
	if r.Timeout <= 0 {
		r.Timeout = defaultTimeout
	}
	r.BaseURL = strings.TrimRight(r.BaseURL, "/")
	return r
}

// startURL builds the start request URL from req.
func startURL(req Request) (string, error) {
	u, err := url.Parse(req.BaseURL + "/slow")
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", req.BaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q: scheme and host are required", req.BaseURL)
	}

	q := url.Values{}
	if req.Delay > 0 {
		q.Set("delay", formatSeconds(req.Delay))
	}
	if req.CompleteIn > 0 {
		q.Set("complete_in", formatSeconds(req.CompleteIn))
	}
	if req.FinalStatus != 0 {
		q.Set("final_status", strconv.Itoa(req.FinalStatus))
	}
	if req.NoContentLocation {
		q.Set("nocl", "1")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// resolveLocation resolves a possibly relative Content-Location against
// the URL it was received from.
func resolveLocation(base, location string) (string, error) {
	if location == "" {
		return "", nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	l, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(l).String(), nil
}

func operationID(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return u.Query().Get("id")
}

func pollCount(jar *headers.Headers) int {
	fragment, ok := jar.Cookies(headers.CookieHeader).Get(pollCountCookie)
	if !ok {
		return -1
	}
	_, raw, _ := strings.Cut(fragment, "=")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
