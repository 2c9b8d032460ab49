package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/slowpoll/internal/clock"
)

// minSweepInterval floors the sweep interval to prevent CPU thrashing.
const minSweepInterval = time.Second

// Janitor periodically removes operations that completed more than a
// retention period ago and were never collected by a poll.
//
// Without a janitor an operation that nobody polls stays in the registry
// for the life of the process. All lifecycle methods (Start, Stop) are safe
// for concurrent use.
type Janitor struct {
	registry  Registry
	retention time.Duration
	interval  time.Duration
	clock     clock.Clock
	logger    *slog.Logger
	wg        sync.WaitGroup

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	stopped bool
}

// NewJanitor creates a [Janitor] for reg.
//
// Operations are swept once their FinishAt is older than retention. The
// sweep runs every retention/2, floored at one second.
func NewJanitor(reg Registry, retention time.Duration, clk clock.Clock, logger *slog.Logger) *Janitor {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	interval := retention / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	return &Janitor{
		registry:  reg,
		retention: retention,
		interval:  interval,
		clock:     clk,
		logger:    logger,
	}
}

// Interval returns the time between sweeps.
func (j *Janitor) Interval() time.Duration {
	return j.interval
}

// Start begins sweeping in a background goroutine.
//
// Start is non-blocking and idempotent. If Stop was called before Start,
// Start is a no-op. The loop ends when ctx is cancelled or Stop is called.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	if j.started || j.stopped {
		j.mu.Unlock()
		return
	}
	j.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-j.clock.After(j.interval):
				j.SweepOnce()
			}
		}
	}()
}

// SweepOnce runs a single sweep and returns how many operations it removed.
func (j *Janitor) SweepOnce() int {
	cutoff := j.clock.Now().Add(-j.retention)
	n := j.registry.Sweep(cutoff)
	if n > 0 {
		j.logger.Info("expired uncollected operations",
			"count", n,
			"retention", j.retention.String(),
		)
	}
	return n
}

// Stop halts the sweep loop and waits for it to exit. Stop is idempotent
// and safe to call before Start.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.stopped {
		j.stopped = true
		if j.cancel != nil {
			j.cancel()
		}
	}
	j.mu.Unlock()

	j.wg.Wait()
}
