package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/jpalmerr/slowpoll/internal/poller"
)

// demoRun is one operation started by the demo. Zero fields use server
// defaults.
type demoRun struct {
	completeIn  time.Duration
	finalStatus int
}

// runDemoClients polls every run to completion once the server is up.
func runDemoClients(ctx context.Context, baseURL string, runs []demoRun, logger *slog.Logger) {
	client := poller.NewClient(logger)
	defer client.Close()

	// give Start a moment to bind the port
	select {
	case <-time.After(200 * time.Millisecond):
	case <-ctx.Done():
		return
	}

	reqs := make([]poller.Request, len(runs))
	for i, r := range runs {
		reqs[i] = poller.Request{
			BaseURL:     baseURL,
			CompleteIn:  r.completeIn,
			FinalStatus: r.finalStatus,
			Interval:    250 * time.Millisecond,
		}
	}

	for _, res := range client.RunMany(ctx, reqs, len(reqs)) {
		if res.Error != nil {
			logger.Warn("demo run failed", "error", res.Error)
			continue
		}
		logger.Info("demo run finished",
			"id", res.ID,
			"status", res.FinalStatus,
			"polls", res.Polls,
			"elapsed", res.Elapsed.Round(time.Millisecond).String(),
		)
	}
}
