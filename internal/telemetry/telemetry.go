// Package telemetry wires OpenTelemetry metrics to a Prometheus scrape
// endpoint and defines the instruments recorded by the poll lifecycle.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/jpalmerr/slowpoll"

// Provider owns the meter provider and the Prometheus registry behind it.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	handler       http.Handler
}

// NewProvider creates a meter provider that exports through a private
// Prometheus registry.
func NewProvider() (*Provider, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("telemetry: start prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return &Provider{
		meterProvider: mp,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

// MeterProvider returns the provider instruments are created from.
func (p *Provider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

// Handler serves the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return p.handler
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.meterProvider.Shutdown(ctx)
}

// Metrics records poll lifecycle transitions. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	started   metric.Int64Counter
	completed metric.Int64Counter
	deleted   metric.Int64Counter
	notFound  metric.Int64Counter
	rejected  metric.Int64Counter
	expired   metric.Int64Counter
}

// NewMetrics creates the lifecycle instruments on mp. pending is sampled
// for the pending-operations gauge on every collection. A nil mp yields
// no-op instruments.
func NewMetrics(mp metric.MeterProvider, pending func() int, logger *slog.Logger) *Metrics {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	if logger == nil {
		logger = slog.Default()
	}
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.started, err = meter.Int64Counter(
		"slowpoll.operations.started",
		metric.WithDescription("Operations started"),
	)
	logInitError(logger, "slowpoll.operations.started", err)

	m.completed, err = meter.Int64Counter(
		"slowpoll.operations.completed",
		metric.WithDescription("Operations whose completion was delivered to a poll"),
	)
	logInitError(logger, "slowpoll.operations.completed", err)

	m.deleted, err = meter.Int64Counter(
		"slowpoll.operations.deleted",
		metric.WithDescription("Operations removed by an explicit delete"),
	)
	logInitError(logger, "slowpoll.operations.deleted", err)

	m.notFound, err = meter.Int64Counter(
		"slowpoll.operations.not_found",
		metric.WithDescription("Polls or deletes for unknown operation ids"),
	)
	logInitError(logger, "slowpoll.operations.not_found", err)

	m.rejected, err = meter.Int64Counter(
		"slowpoll.requests.rejected",
		metric.WithDescription("Requests rejected for invalid parameters"),
	)
	logInitError(logger, "slowpoll.requests.rejected", err)

	m.expired, err = meter.Int64Counter(
		"slowpoll.operations.expired",
		metric.WithDescription("Operations swept after the retention period"),
	)
	logInitError(logger, "slowpoll.operations.expired", err)

	if pending != nil {
		_, err = meter.Int64ObservableGauge(
			"slowpoll.operations.pending",
			metric.WithDescription("Operations currently tracked"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(pending()))
				return nil
			}),
		)
		logInitError(logger, "slowpoll.operations.pending", err)
	}

	return m
}

// Started records a new operation.
func (m *Metrics) Started(ctx context.Context) {
	if m == nil || m.started == nil {
		return
	}
	m.started.Add(ctx, 1)
}

// Completed records a delivered completion with its final status.
func (m *Metrics) Completed(ctx context.Context, status int) {
	if m == nil || m.completed == nil {
		return
	}
	m.completed.Add(ctx, 1, metric.WithAttributes(attribute.String("status", strconv.Itoa(status))))
}

// Deleted records an explicit delete.
func (m *Metrics) Deleted(ctx context.Context) {
	if m == nil || m.deleted == nil {
		return
	}
	m.deleted.Add(ctx, 1)
}

// NotFound records a lookup of an unknown id by the named operation.
func (m *Metrics) NotFound(ctx context.Context, op string) {
	if m == nil || m.notFound == nil {
		return
	}
	m.notFound.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// Rejected records a request refused for the named invalid parameter.
func (m *Metrics) Rejected(ctx context.Context, param string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("param", param)))
}

// Expired records n swept operations.
func (m *Metrics) Expired(ctx context.Context, n int) {
	if m == nil || m.expired == nil || n <= 0 {
		return
	}
	m.expired.Add(ctx, int64(n))
}

func logInitError(logger *slog.Logger, name string, err error) {
	if err == nil {
		return
	}
	logger.Warn("metric init failed", "name", name, "error", err)
}
