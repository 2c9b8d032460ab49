package server

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Query parameter names.
const (
	paramID          = "id"
	paramDelay       = "delay"
	paramCompleteIn  = "complete_in"
	paramFinalStatus = "final_status"
	paramNoCL        = "nocl"
)

// Final statuses must be final responses: net/http sends 1xx codes as
// informational and follows them with an implicit 200.
const (
	minFinalStatus = 200
	maxFinalStatus = 599
)

// maxSeconds is the largest number of seconds a time.Duration can hold.
var maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// paramError describes a query parameter that failed validation.
type paramError struct {
	param string
	msg   string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.param, e.msg)
}

// startParams are the validated inputs of a start request.
type startParams struct {
	Delay             time.Duration
	CompleteIn        time.Duration
	FinalStatus       int
	NoContentLocation bool
}

// parseStartParams validates the start query against the server options.
// Absent or empty parameters take their defaults.
func parseStartParams(q url.Values, opts Options) (startParams, error) {
	p := startParams{
		CompleteIn:        opts.DefaultCompleteIn,
		FinalStatus:       opts.DefaultFinalStatus,
		NoContentLocation: noContentLocation(q),
	}

	if raw := strings.TrimSpace(q.Get(paramDelay)); raw != "" {
		d, err := parseSeconds(paramDelay, raw)
		if err != nil {
			return startParams{}, err
		}
		if d > opts.MaxDelay {
			return startParams{}, &paramError{paramDelay, fmt.Sprintf("must not exceed %s", opts.MaxDelay)}
		}
		p.Delay = d
	}

	if raw := strings.TrimSpace(q.Get(paramCompleteIn)); raw != "" {
		d, err := parseSeconds(paramCompleteIn, raw)
		if err != nil {
			return startParams{}, err
		}
		p.CompleteIn = d
	}

	if raw := strings.TrimSpace(q.Get(paramFinalStatus)); raw != "" {
		status, err := strconv.Atoi(raw)
		if err != nil {
			return startParams{}, &paramError{paramFinalStatus, fmt.Sprintf("%q is not an integer", raw)}
		}
		if status < minFinalStatus || status > maxFinalStatus {
			return startParams{}, &paramError{paramFinalStatus, fmt.Sprintf("%d is outside %d-%d", status, minFinalStatus, maxFinalStatus)}
		}
		p.FinalStatus = status
	}

	return p, nil
}

// parseSeconds parses a non-negative, possibly fractional, number of
// seconds.
func parseSeconds(param, raw string) (time.Duration, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &paramError{param, fmt.Sprintf("%q is not a number of seconds", raw)}
	}
	if f < 0 {
		return 0, &paramError{param, "must not be negative"}
	}
	if f > maxSeconds {
		return 0, &paramError{param, "is too large"}
	}
	return time.Duration(f * float64(time.Second)), nil
}

func noContentLocation(q url.Values) bool {
	return q.Get(paramNoCL) == "1"
}
