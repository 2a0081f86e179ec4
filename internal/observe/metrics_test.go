package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
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

// sumWhere returns the value of the data point whose attributes include
// key=value, and whether one was found.
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) (int64, bool) {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value, true
		}
	}
	return 0, false
}

func gaugeValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	g, ok := met.Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("metric %q is not a gauge", name)
	}
	if len(g.DataPoints) == 0 {
		t.Fatalf("metric %q has no data points", name)
	}
	return g.DataPoints[0].Value
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"silibot.resolve.duration", m.ResolveDuration},
		{"silibot.fetch.duration", m.FetchDuration},
		{"silibot.search.duration", m.SearchDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.0012)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordResolve(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordResolve(ctx, "discord", "ok", 2*time.Millisecond)
	m.RecordResolve(ctx, "discord", "ok", 3*time.Millisecond)
	m.RecordResolve(ctx, "discord", "entity_not_found", time.Millisecond)

	rm := collect(t, reader)
	if v, ok := sumWhere(t, rm, "silibot.resolve.requests", "status", "ok"); !ok || v != 2 {
		t.Errorf("ok resolves = %d (found=%v), want 2", v, ok)
	}
	if v, ok := sumWhere(t, rm, "silibot.resolve.requests", "status", "entity_not_found"); !ok || v != 1 {
		t.Errorf("entity_not_found resolves = %d (found=%v), want 1", v, ok)
	}

	hist, ok := findMetric(rm, "silibot.resolve.duration").Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("resolve duration is not a histogram")
	}
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	if total != 3 {
		t.Errorf("resolve duration samples = %d, want 3", total)
	}
}

func TestRecordFetch(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFetch(ctx, "ok", 300*time.Millisecond)
	m.RecordFetch(ctx, "error", time.Second)

	rm := collect(t, reader)
	if v, ok := sumWhere(t, rm, "silibot.fetch.requests", "status", "error"); !ok || v != 1 {
		t.Errorf("error fetches = %d (found=%v), want 1", v, ok)
	}
}

func TestRecordCorpusReload(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCorpusReload(ctx, 1, 120, 9000, nil)
	m.RecordCorpusReload(ctx, 0, 0, 0, errors.New("corrupted"))
	m.RecordCorpusReload(ctx, 2, 121, 9100, nil)

	rm := collect(t, reader)
	if v, ok := sumWhere(t, rm, "silibot.corpus.reloads", "status", "ok"); !ok || v != 2 {
		t.Errorf("ok reloads = %d (found=%v), want 2", v, ok)
	}
	if v, ok := sumWhere(t, rm, "silibot.corpus.reloads", "status", "error"); !ok || v != 1 {
		t.Errorf("error reloads = %d (found=%v), want 1", v, ok)
	}

	// A failed reload leaves the gauges at the last good snapshot.
	gauges := []struct {
		name string
		want int64
	}{
		{"silibot.corpus.entities", 121},
		{"silibot.corpus.responses", 9100},
		{"silibot.corpus.version", 2},
	}
	for _, tc := range gauges {
		if got := gaugeValue(t, rm, tc.name); got != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/readyz"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "silibot.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
