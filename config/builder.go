package config

import (
	"log/slog"

	"github.com/jpalmerr/slowpoll"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The logger and version are not part of the file and are passed through
// by the caller. Extra options are appended last so they override the file.
func BuildOptions(cfg *Config, logger *slog.Logger, version string, extra ...slowpoll.Option) []slowpoll.Option {
	opts := []slowpoll.Option{
		slowpoll.WithPort(cfg.Port),
		slowpoll.WithServiceName(cfg.ServiceName),
		slowpoll.WithIDFormat(cfg.IDFormat),
		slowpoll.WithDefaultCompleteIn(cfg.Defaults.CompleteIn.Duration()),
		slowpoll.WithDefaultFinalStatus(cfg.Defaults.FinalStatus),
		slowpoll.WithRetention(cfg.Retention.Duration()),
		slowpoll.WithMetrics(cfg.MetricsEnabled()),
	}

	if cfg.BaseURI != "" {
		opts = append(opts, slowpoll.WithBaseURI(cfg.BaseURI))
	}
	if cfg.MaxDelay != 0 {
		opts = append(opts, slowpoll.WithMaxDelay(cfg.MaxDelay.Duration()))
	}
	if version != "" {
		opts = append(opts, slowpoll.WithVersion(version))
	}
	if logger != nil {
		opts = append(opts, slowpoll.WithLogger(logger))
	}

	return append(opts, extra...)
}
