// Package observe provides application-wide observability primitives for
// Orthoepy: OpenTelemetry metrics, distributed tracing, structured logging,
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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Orthoepy metrics.
const meterName = "github.com/speechlab-io/orthoepy"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ASRDuration tracks speech recognition latency.
	ASRDuration metric.Float64Histogram

	// AlignDuration tracks forced-alignment tool latency.
	AlignDuration metric.Float64Histogram

	// ScoreDuration tracks end-to-end POST /score processing latency.
	ScoreDuration metric.Float64Histogram

	// FeedbackDuration tracks feedback LLM completion latency.
	FeedbackDuration metric.Float64Histogram

	// --- Counters ---

	// ScoreRequests counts scoring requests. Use with attribute:
	//   attribute.String("status", ...)
	ScoreRequests metric.Int64Counter

	// DictionaryMisses counts reference words absent from the pronunciation
	// dictionary.
	DictionaryMisses metric.Int64Counter

	// DegradedReports counts reports produced without a usable alignment.
	DegradedReports metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// StoredSessions tracks the number of sessions held in the session store.
	StoredSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Alignment
// runs dominate the upper range, so buckets extend further than typical
// request-latency defaults.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns the first instrument-creation error, if any.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	var firstErr error
	stageHist := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return h
	}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return c
	}

	met := &Metrics{
		ASRDuration:      stageHist("orthoepy.asr.duration", "Latency of speech recognition."),
		AlignDuration:    stageHist("orthoepy.align.duration", "Latency of forced alignment."),
		ScoreDuration:    stageHist("orthoepy.score.duration", "End-to-end scoring request latency."),
		FeedbackDuration: stageHist("orthoepy.feedback.duration", "Latency of feedback LLM completion."),

		ScoreRequests:    counter("orthoepy.score.requests", "Total scoring requests by status."),
		DictionaryMisses: counter("orthoepy.dictionary.misses", "Total reference words not found in the pronunciation dictionary."),
		DegradedReports:  counter("orthoepy.reports.degraded", "Total reports produced without a usable alignment."),
		ProviderErrors:   counter("orthoepy.provider.errors", "Total provider errors by provider and kind."),
	}

	var err error
	if met.StoredSessions, err = meter.Int64UpDownCounter("orthoepy.sessions.stored",
		metric.WithDescription("Number of sessions held in the session store."),
	); err != nil && firstErr == nil {
		firstErr = err
	}
	// The HTTP histogram keeps the SDK's default request-latency buckets; the
	// wide pipeline buckets would waste resolution below one second.
	if met.HTTPRequestDuration, err = meter.Float64Histogram("orthoepy.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil && firstErr == nil {
		firstErr = err
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return met, nil
}

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

// RecordScoreRequest increments the scoring request counter with the standard
// status attribute.
func (m *Metrics) RecordScoreRequest(ctx context.Context, status string) {
	m.ScoreRequests.Add(ctx, 1, metric.WithAttributes(Attr("status", status)))
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("kind", kind),
	))
}
