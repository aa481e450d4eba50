// Package observe provides application-wide observability primitives for
// scriptpipe: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all scriptpipe metrics.
const meterName = "github.com/readingpartner/scriptpipe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks per-stage pipeline latency. Use with attributes:
	//   attribute.String("stage", ...)   // extract, reconcile, synthesize, align, persist
	StageDuration metric.Float64Histogram

	// StageOutcomes counts stage completions. Use with attributes:
	//   attribute.String("stage", ...), attribute.String("status", ...)
	StageOutcomes metric.Int64Counter

	// ProviderRequests counts external service API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts external service errors by provider.
	ProviderErrors metric.Int64Counter

	// ExtractionFallbacks counts extractor responses that degraded to
	// text-only parsing (missing delimiter, malformed payload).
	ExtractionFallbacks metric.Int64Counter

	// MergeDecisions counts reconciler outcomes. Use with attribute:
	//   attribute.String("decision", ...) // "heuristic_preferred" or "merged"
	MergeDecisions metric.Int64Counter

	// RecoveredLines counts heuristic lines the reconciler added to the
	// model's output.
	RecoveredLines metric.Int64Counter

	// ActiveJobs tracks the number of pipeline runs currently in flight.
	ActiveJobs metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Pipeline
// stages are network round-trips to document and speech services, so the
// buckets stretch well past typical HTTP latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("scriptpipe.stage.duration",
		metric.WithDescription("Latency of pipeline stages."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageOutcomes, err = m.Int64Counter("scriptpipe.stage.outcomes",
		metric.WithDescription("Total stage completions by stage and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("scriptpipe.provider.requests",
		metric.WithDescription("Total external service requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("scriptpipe.provider.errors",
		metric.WithDescription("Total external service errors by provider."),
	); err != nil {
		return nil, err
	}
	if met.ExtractionFallbacks, err = m.Int64Counter("scriptpipe.extraction.fallbacks",
		metric.WithDescription("Extractor responses that degraded to text-only parsing."),
	); err != nil {
		return nil, err
	}
	if met.MergeDecisions, err = m.Int64Counter("scriptpipe.reconcile.decisions",
		metric.WithDescription("Reconciler outcomes by decision."),
	); err != nil {
		return nil, err
	}
	if met.RecoveredLines, err = m.Int64Counter("scriptpipe.reconcile.recovered_lines",
		metric.WithDescription("Heuristic lines recovered into the merged sequence."),
	); err != nil {
		return nil, err
	}
	if met.ActiveJobs, err = m.Int64UpDownCounter("scriptpipe.active_jobs",
		metric.WithDescription("Number of pipeline runs currently in flight."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("scriptpipe.http.request.duration",
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

// RecordStage records one stage completion: its duration histogram sample and
// its outcome counter increment.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
	m.StageOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}

// RecordProviderRequest records an external service request with its outcome.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records an external service error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordMergeDecision records a reconciler outcome and the number of lines it
// recovered from the heuristic parse.
func (m *Metrics) RecordMergeDecision(ctx context.Context, heuristicPreferred bool, recovered int) {
	decision := "merged"
	if heuristicPreferred {
		decision = "heuristic_preferred"
	}
	m.MergeDecisions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("decision", decision)),
	)
	if recovered > 0 {
		m.RecoveredLines.Add(ctx, int64(recovered))
	}
}
