// Package main is the entry point for the slowpoll CLI.
//
// SlowPoll can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	slowpoll serve -c config.yaml    # Start the simulator
//	slowpoll validate -c config.yaml # Validate configuration
//	slowpoll probe --url http://...  # Run operations against a server
//	slowpoll version                 # Show version info
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd only displays help; functionality lives in subcommands.
var rootCmd = &cobra.Command{
	Use:   "slowpoll",
	Short: "A simulator for long-running asynchronous HTTP operations",
	Long: `SlowPoll simulates long-running operations using the
poll-until-complete pattern.

GET /slow answers 202 Accepted with a Content-Location to poll. Polling
that location answers 202 until the operation's completion time has
passed, then answers once with the final status.

Quick start:
  1. Run: slowpoll serve
  2. curl -i "http://localhost:8080/slow?complete_in=2&final_status=201"
  3. Poll the returned Content-Location until it stops answering 202

Example config:
  port: 8080
  base_uri: ${PUBLIC_URL:-http://localhost:8080}
  defaults:
    complete_in: 5s
    final_status: 200
  retention: 10m`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}
