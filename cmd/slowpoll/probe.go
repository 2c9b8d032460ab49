package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/slowpoll/internal/poller"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Start operations against a server and poll them to completion",
	Long: `Start one or more operations on a running SlowPoll server and poll
each one until it answers with something other than 202.

Each run prints its operation id, final status, number of polls, the last
poll-count cookie and the elapsed time. The command fails if any run does.

Example:
  slowpoll probe --url http://localhost:8080 --complete-in 2s --final-status 201
  slowpoll probe --count 20 --concurrency 5 --nocl`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	f := probeCmd.Flags()
	f.String("url", "http://localhost:8080", "server base URL")
	f.Duration("delay", 0, "delay before the start request answers")
	f.Duration("complete-in", 0, "how long the operation stays pending (server default when zero)")
	f.Int("final-status", 0, "status the operation completes with (server default when zero)")
	f.Bool("nocl", false, "ask the server to stop repeating Content-Location")
	f.Duration("interval", 500*time.Millisecond, "pause between polls")
	f.Int("max-polls", 0, "give up after this many polls (zero is unbounded)")
	f.Duration("timeout", time.Minute, "overall deadline for all runs")
	f.Int("count", 1, "number of operations to run")
	f.Int("concurrency", 4, "number of operations polled at once")
	f.BoolP("verbose", "v", false, "print every poll")
}

func runProbe(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	baseURL, _ := f.GetString("url")
	delay, _ := f.GetDuration("delay")
	completeIn, _ := f.GetDuration("complete-in")
	finalStatus, _ := f.GetInt("final-status")
	nocl, _ := f.GetBool("nocl")
	interval, _ := f.GetDuration("interval")
	maxPolls, _ := f.GetInt("max-polls")
	timeout, _ := f.GetDuration("timeout")
	count, _ := f.GetInt("count")
	concurrency, _ := f.GetInt("concurrency")
	verbose, _ := f.GetBool("verbose")

	if count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", count)
	}

	out := cmd.OutOrStdout()
	client := poller.NewClient(newLogger(false))
	defer client.Close()

	reqs := make([]poller.Request, count)
	for i := range reqs {
		reqs[i] = poller.Request{
			BaseURL:           strings.TrimSuffix(baseURL, "/"),
			Delay:             delay,
			CompleteIn:        completeIn,
			FinalStatus:       finalStatus,
			NoContentLocation: nocl,
			Interval:          interval,
			MaxPolls:          maxPolls,
		}
		if verbose {
			run := i + 1
			reqs[i].OnPoll = func(p poller.Poll) {
				_, _ = fmt.Fprintf(out, "  run %d poll %d: %d (poll-count %d)\n", run, p.N, p.StatusCode, p.PollCount)
			}
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	results := client.RunMany(ctx, reqs, concurrency)
	failed := printResults(out, results)
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
	return nil
}

// printResults writes one line per run and returns the number of failures.
func printResults(w io.Writer, results []poller.Result) int {
	failed := 0
	for i, r := range results {
		if r.Error != nil {
			failed++
			_, _ = fmt.Fprintf(w, "run %d: error: %v\n", i+1, r.Error)
			continue
		}
		_, _ = fmt.Fprintf(w, "run %d: id=%s status=%d polls=%d poll-count=%d elapsed=%s\n",
			i+1, r.ID, r.FinalStatus, r.Polls, r.PollCount, r.Elapsed.Round(time.Millisecond))
	}
	return failed
}
