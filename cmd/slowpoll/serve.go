package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/slowpoll"
	"github.com/jpalmerr/slowpoll/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// loadConfig loads the file named by --config, or the defaults when the
// flag is empty.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return config.Parse(nil)
	}
	return config.Load(configFile)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the simulator server",
	Long: `Start the SlowPoll server.

The server will:
  - Load configuration from the YAML file, if one is given
  - Serve /slow, /poll, /delete and the ping endpoints
  - Expose /metrics and the /api snapshot and event stream

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  slowpoll serve
  slowpoll serve -c config.yaml --port 9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file")
	serveCmd.Flags().IntP("port", "p", 0, "override the configured port")
	serveCmd.Flags().Bool("debug", false, "log response headers of every request")
}

func runServe(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	logger := newLogger(debug)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var overrides []slowpoll.Option
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		overrides = append(overrides, slowpoll.WithPort(port))
	}

	logger.Info("config loaded",
		"service", cfg.ServiceName,
		"default_complete_in", cfg.Defaults.CompleteIn.Duration().String(),
		"default_final_status", cfg.Defaults.FinalStatus,
		"max_delay", cfg.MaxDelay.Duration().String(),
		"id_format", cfg.IDFormat,
	)

	sp, err := slowpoll.New(config.BuildOptions(cfg, logger, version, overrides...)...)
	if err != nil {
		return fmt.Errorf("failed to create SlowPoll: %w", err)
	}

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- sp.Start(ctx)
	}()

	return awaitShutdown(ctx, done, logger)
}

// awaitShutdown waits for Start to return. Once ctx is cancelled it allows
// shutdownTimeout for a graceful stop before giving up on the server.
func awaitShutdown(ctx context.Context, done <-chan error, logger *slog.Logger) error {
	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		select {
		case err = <-done:
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}

	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
