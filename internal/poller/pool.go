package poller

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// RunMany executes reqs with at most concurrency runs in flight and returns
// one [Result] per request, in request order. Failures are reported through
// Result.Error rather than aborting the batch.
//
// Cancelling ctx stops scheduling new runs; runs never started report
// ctx.Err().
func (c *Client) RunMany(ctx context.Context, reqs []Request, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]Result, len(reqs))
	jobs := make(chan int, len(reqs))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = c.safeRun(ctx, reqs[idx])
			}
		}()
	}

	scheduled := 0
	for i := range reqs {
		if ctx.Err() != nil {
			break
		}
		jobs <- i
		scheduled++
	}
	close(jobs)
	wg.Wait()

	for i := scheduled; i < len(reqs); i++ {
		results[i] = Result{PollCount: -1, Error: ctx.Err()}
	}
	return results
}

// safeRun runs req and folds its error into the result. A panic in the run
// is logged with a correlation ID and reported as an error.
func (c *Client) safeRun(ctx context.Context, req Request) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := c.logPanic("run panic", r)
			result = Result{PollCount: -1, Error: fmt.Errorf("run panic (correlation_id: %s)", correlationID)}
		}
	}()
	res, err := c.Run(ctx, req)
	res.Error = err
	return res
}

// notify calls fn with p. A panicking callback is logged and otherwise
// ignored so it cannot end the run.
func (c *Client) notify(fn func(Poll), p Poll) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logPanic("poll callback panic", r)
		}
	}()
	fn(p)
}

// logPanic logs a recovered panic with its stack and returns the
// correlation ID it was logged under.
func (c *Client) logPanic(msg string, r any) string {
	correlationID := uuid.NewString()
	c.logger.Error(msg,
		"correlation_id", correlationID,
		"panic", fmt.Sprintf("%v", r),
		"stack", string(debug.Stack()),
	)
	return correlationID
}
