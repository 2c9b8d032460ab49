package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/slowpoll"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	sp, err := slowpoll.New(
		slowpoll.WithPort(8080),
		slowpoll.WithDefaultCompleteIn(3*time.Second),
		slowpoll.WithRetention(time.Minute),
		slowpoll.WithIDFormat("xid"),
		slowpoll.WithLogger(logger),
		slowpoll.WithLifecycleCallback(func(ev slowpoll.Event) {
			logger.Info("lifecycle", "kind", ev.Kind, "id", ev.ID, "final_status", ev.FinalStatus)
		}),
	)
	if err != nil {
		slog.Error("failed to create slowpoll", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  SlowPoll demo on http://localhost:8080")
	fmt.Println()
	fmt.Println("  Three operations are started and polled to completion")
	fmt.Println("  (201 after 1s, 200 after 3s, 500 after 5s).")
	fmt.Println("  Watch them live with: curl -N localhost:8080/api/events")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runDemoClients(ctx, "http://localhost:8080", []demoRun{
		{completeIn: time.Second, finalStatus: http.StatusCreated},
		{},
		{completeIn: 5 * time.Second, finalStatus: http.StatusInternalServerError},
	}, logger)

	if err := sp.Start(ctx); err != nil {
		slog.Error("slowpoll error", "error", err)
		os.Exit(1)
	}
}
