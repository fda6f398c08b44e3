package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordInvocation_Success(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordInvocation(ctx, "homeassistant", 0.42, false)

	rm := collect(t, reader)

	inv := findMetric(rm, "loom.connector.invocations")
	if inv == nil {
		t.Fatal("invocations counter not recorded")
	}
	sum, ok := inv.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("unexpected invocations data: %+v", inv.Data)
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("invocations = %d, want 1", sum.DataPoints[0].Value)
	}

	dur := findMetric(rm, "loom.connector.invoke.duration")
	if dur == nil {
		t.Fatal("duration histogram not recorded")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("unexpected duration data: %+v", dur.Data)
	}
	if hist.DataPoints[0].Count != 1 {
		t.Errorf("duration count = %d, want 1", hist.DataPoints[0].Count)
	}

	if errs := findMetric(rm, "loom.connector.errors"); errs != nil {
		t.Error("error counter should not be recorded for a success")
	}
}

func TestRecordInvocation_Error(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordInvocation(ctx, "openai", 1.5, true)

	rm := collect(t, reader)
	errs := findMetric(rm, "loom.connector.errors")
	if errs == nil {
		t.Fatal("error counter not recorded")
	}
	sum, ok := errs.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Fatalf("unexpected error data: %+v", errs.Data)
	}
}

func TestActiveInvocations_UpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveInvocations.Add(ctx, 1)
	m.ActiveInvocations.Add(ctx, 1)
	m.ActiveInvocations.Add(ctx, -1)

	rm := collect(t, reader)
	active := findMetric(rm, "loom.connector.active_invocations")
	if active == nil {
		t.Fatal("active invocations not recorded")
	}
	sum, ok := active.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("unexpected active data: %+v", active.Data)
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("active = %d, want 1", sum.DataPoints[0].Value)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics should return the same instance")
	}
}
