// Package observe provides application-wide observability primitives for
// silibot: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all silibot metrics.
const meterName = "github.com/MrWong99/silibot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ResolveDuration tracks query parse plus resolution latency.
	ResolveDuration metric.Float64Histogram

	// FetchDuration tracks audio download latency.
	FetchDuration metric.Float64Histogram

	// SearchDuration tracks inline search latency.
	SearchDuration metric.Float64Histogram

	// --- Counters ---

	// Resolves counts resolution attempts. Use with attributes:
	//   attribute.String("source", ...), attribute.String("status", ...)
	Resolves metric.Int64Counter

	// Fetches counts audio downloads. Use with attribute:
	//   attribute.String("status", ...)
	Fetches metric.Int64Counter

	// CorpusReloads counts corpus load attempts. Use with attribute:
	//   attribute.String("status", ...)
	CorpusReloads metric.Int64Counter

	// --- Gauges ---

	// CorpusEntities is the number of entities in the current snapshot.
	CorpusEntities metric.Int64Gauge

	// CorpusResponses is the number of responses in the current snapshot.
	CorpusResponses metric.Int64Gauge

	// CorpusVersion is the version of the current snapshot.
	CorpusVersion metric.Int64Gauge

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Resolution
// is sub-millisecond to a few ms; downloads run into seconds.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ResolveDuration, err = m.Float64Histogram("silibot.resolve.duration",
		metric.WithDescription("Latency of voice line resolution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FetchDuration, err = m.Float64Histogram("silibot.fetch.duration",
		metric.WithDescription("Latency of audio downloads."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SearchDuration, err = m.Float64Histogram("silibot.search.duration",
		metric.WithDescription("Latency of inline voice line search."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Resolves, err = m.Int64Counter("silibot.resolve.requests",
		metric.WithDescription("Total resolution attempts by source and status."),
	); err != nil {
		return nil, err
	}
	if met.Fetches, err = m.Int64Counter("silibot.fetch.requests",
		metric.WithDescription("Total audio downloads by status."),
	); err != nil {
		return nil, err
	}
	if met.CorpusReloads, err = m.Int64Counter("silibot.corpus.reloads",
		metric.WithDescription("Total corpus load attempts by status."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.CorpusEntities, err = m.Int64Gauge("silibot.corpus.entities",
		metric.WithDescription("Entities in the current corpus snapshot."),
	); err != nil {
		return nil, err
	}
	if met.CorpusResponses, err = m.Int64Gauge("silibot.corpus.responses",
		metric.WithDescription("Responses in the current corpus snapshot."),
	); err != nil {
		return nil, err
	}
	if met.CorpusVersion, err = m.Int64Gauge("silibot.corpus.version",
		metric.WithDescription("Version of the current corpus snapshot."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("silibot.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordResolve records one resolution attempt and its latency.
func (m *Metrics) RecordResolve(ctx context.Context, source, status string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	)
	m.Resolves.Add(ctx, 1, attrs)
	m.ResolveDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordFetch records one audio download and its latency.
func (m *Metrics) RecordFetch(ctx context.Context, status string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Fetches.Add(ctx, 1, attrs)
	m.FetchDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordSearch records the latency of one inline search.
func (m *Metrics) RecordSearch(ctx context.Context, source string, d time.Duration) {
	m.SearchDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordCorpusReload records a corpus load attempt. On success the corpus
// gauges are set from the new snapshot's sizes.
func (m *Metrics) RecordCorpusReload(ctx context.Context, version uint64, entities, responses int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CorpusReloads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if err != nil {
		return
	}
	m.CorpusEntities.Record(ctx, int64(entities))
	m.CorpusResponses.Record(ctx, int64(responses))
	m.CorpusVersion.Record(ctx, int64(version))
}
