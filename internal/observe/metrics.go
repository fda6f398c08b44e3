// Package observe provides application-wide observability primitives for
// Loom: OpenTelemetry metrics, invocation tracing, and HTTP middleware that
// ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Loom metrics.
const meterName = "github.com/loomworks/loom"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// InvokeDuration tracks connector invocation latency. Use with
	// attribute.String("connector", ...).
	InvokeDuration metric.Float64Histogram

	// Invocations counts connector invocations. Use with attributes:
	//   attribute.String("connector", ...), attribute.String("status", ...)
	// where status is "ok" or "error".
	Invocations metric.Int64Counter

	// InvokeErrors counts invocations that produced a failure envelope.
	// Use with attribute.String("connector", ...).
	InvokeErrors metric.Int64Counter

	// ActiveInvocations tracks the number of in-flight invocations.
	ActiveInvocations metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// external API round-trips, which dominate connector invocation time.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.InvokeDuration, err = m.Float64Histogram("loom.connector.invoke.duration",
		metric.WithDescription("Latency of connector invocations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Invocations, err = m.Int64Counter("loom.connector.invocations",
		metric.WithDescription("Total connector invocations by connector and status."),
	); err != nil {
		return nil, err
	}
	if met.InvokeErrors, err = m.Int64Counter("loom.connector.errors",
		metric.WithDescription("Total invocations that produced a failure envelope."),
	); err != nil {
		return nil, err
	}
	if met.ActiveInvocations, err = m.Int64UpDownCounter("loom.connector.active_invocations",
		metric.WithDescription("Number of in-flight connector invocations."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("loom.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordInvocation records one finished invocation: the counter increment,
// the duration sample, and the error counter when the envelope is a failure.
func (m *Metrics) RecordInvocation(ctx context.Context, connectorID string, seconds float64, isError bool) {
	status := "ok"
	if isError {
		status = "error"
		m.InvokeErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("connector", connectorID)))
	}
	m.Invocations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("connector", connectorID),
			attribute.String("status", status),
		))
	m.InvokeDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("connector", connectorID)))
}
