// Package observe provides application-wide observability primitives for
// speechcoach: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all speechcoach metrics.
const meterName = "github.com/CoachAI26/ai"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Providers ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ProviderDuration tracks provider call latency. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderDuration metric.Float64Histogram

	// BreakerTransitions counts circuit breaker state changes. Use with
	// attributes provider, kind, to.
	BreakerTransitions metric.Int64Counter

	// --- Analysis ---

	// AnalysisDuration tracks end-to-end analysis latency. Use with attribute:
	//   attribute.String("source", "audio"|"text")
	AnalysisDuration metric.Float64Histogram

	// AnalysisDegraded counts sub-steps that fell back. Use with attribute:
	//   attribute.String("component", ...)
	AnalysisDegraded metric.Int64Counter

	// FillersDetected counts filler spans found across all analyses.
	FillersDetected metric.Int64Counter

	// ConfidenceScore records the final composite score. Use with attributes:
	//   attribute.String("rating", ...), attribute.String("preset", ...)
	ConfidenceScore metric.Float64Histogram

	// OffTopic counts answers judged not to address their topic.
	OffTopic metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequests counts HTTP requests. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...), attribute.Int("status", ...)
	HTTPRequests metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// model calls and audio transcription.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60,
}

// scoreBuckets splits the 0-100 score range at the rating thresholds.
var scoreBuckets = []float64{
	10, 20, 30, 40, 42, 50, 55, 58, 70, 75, 85, 90, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("speechcoach.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("speechcoach.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("speechcoach.provider.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by provider, kind, and target state."),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDegraded, err = m.Int64Counter("speechcoach.analysis.degraded",
		metric.WithDescription("Analysis sub-steps that used their fallback, by component."),
	); err != nil {
		return nil, err
	}
	if met.FillersDetected, err = m.Int64Counter("speechcoach.fillers.detected",
		metric.WithDescription("Total filler spans detected."),
	); err != nil {
		return nil, err
	}
	if met.OffTopic, err = m.Int64Counter("speechcoach.offtopic.total",
		metric.WithDescription("Answers judged off-topic for their challenge."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequests, err = m.Int64Counter("speechcoach.http.requests",
		metric.WithDescription("HTTP requests by method, path, and status."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.ProviderDuration, err = m.Float64Histogram("speechcoach.provider.duration",
		metric.WithDescription("Latency of provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("speechcoach.analysis.duration",
		metric.WithDescription("End-to-end analysis latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConfidenceScore, err = m.Float64Histogram("speechcoach.confidence.score",
		metric.WithDescription("Distribution of final confidence scores."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("speechcoach.http.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
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

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordBreakerTransition counts a breaker moving to state to.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, kind, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("to", to),
		),
	)
}

// RecordDegraded counts a sub-step that fell back to its local default.
func (m *Metrics) RecordDegraded(ctx context.Context, component string) {
	m.AnalysisDegraded.Add(ctx, 1,
		metric.WithAttributes(attribute.String("component", component)),
	)
}

// RecordScore records a final confidence score with its rating and preset.
func (m *Metrics) RecordScore(ctx context.Context, score float64, rating, preset string) {
	m.ConfidenceScore.Record(ctx, score,
		metric.WithAttributes(
			attribute.String("rating", rating),
			attribute.String("preset", preset),
		),
	)
}
