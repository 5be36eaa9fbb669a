// Package observe provides observability primitives for ordervox:
// OpenTelemetry metrics with a Prometheus exporter bridge so the standard
// /metrics endpoint keeps working.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all ordervox metrics.
const meterName = "github.com/ordervox/ordervox"

// Metrics holds all OpenTelemetry metric instruments for the voice pipeline.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RecognitionDuration tracks time from listening start to final result.
	RecognitionDuration metric.Float64Histogram

	// SynthesisDuration tracks per-utterance synthesis and playback latency.
	SynthesisDuration metric.Float64Histogram

	// ResolverDuration tracks external intent resolver round-trip latency.
	ResolverDuration metric.Float64Histogram

	// --- Counters ---

	// SessionsStarted counts recognition sessions.
	SessionsStarted metric.Int64Counter

	// Recognitions counts accepted final transcripts. Use with attribute:
	//   attribute.String("language", ...)
	Recognitions metric.Int64Counter

	// PipelineErrors counts typed pipeline errors. Use with attribute:
	//   attribute.String("code", ...)
	PipelineErrors metric.Int64Counter

	// CacheLookups counts synthesis cache lookups. Use with attribute:
	//   attribute.String("outcome", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// QueueOverflows counts rejected speech requests.
	QueueOverflows metric.Int64Counter

	// FallbackSwitches counts primary→fallback engine substitutions.
	FallbackSwitches metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks live recognition sessions (0 or 1 per pipeline).
	ActiveSessions metric.Int64UpDownCounter

	// QueueDepth tracks the current synthesis queue depth.
	QueueDepth metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecognitionDuration, err = m.Float64Histogram("ordervox.recognition.duration",
		metric.WithDescription("Latency from listening start to final recognition result."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("ordervox.synthesis.duration",
		metric.WithDescription("Latency of a single synthesized utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ResolverDuration, err = m.Float64Histogram("ordervox.resolver.duration",
		metric.WithDescription("Round-trip latency of the external intent resolver."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SessionsStarted, err = m.Int64Counter("ordervox.sessions.started",
		metric.WithDescription("Total recognition sessions started."),
	); err != nil {
		return nil, err
	}
	if met.Recognitions, err = m.Int64Counter("ordervox.recognitions",
		metric.WithDescription("Total accepted final transcripts by language."),
	); err != nil {
		return nil, err
	}
	if met.PipelineErrors, err = m.Int64Counter("ordervox.errors",
		metric.WithDescription("Total typed pipeline errors by machine code."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("ordervox.synthesis.cache.lookups",
		metric.WithDescription("Synthesis cache lookups by outcome."),
	); err != nil {
		return nil, err
	}
	if met.QueueOverflows, err = m.Int64Counter("ordervox.synthesis.queue.overflows",
		metric.WithDescription("Speech requests rejected because the queue was full."),
	); err != nil {
		return nil, err
	}
	if met.FallbackSwitches, err = m.Int64Counter("ordervox.recognition.fallback_switches",
		metric.WithDescription("Primary to fallback engine substitutions."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("ordervox.active_sessions",
		metric.WithDescription("Number of live recognition sessions."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("ordervox.synthesis.queue.depth",
		metric.WithDescription("Current synthesis queue depth."),
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

// RecordError records a typed pipeline error by machine code.
func (m *Metrics) RecordError(ctx context.Context, code string) {
	m.PipelineErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("code", code)),
	)
}

// RecordRecognition records an accepted final transcript and its latency.
func (m *Metrics) RecordRecognition(ctx context.Context, language string, elapsed time.Duration) {
	m.Recognitions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("language", language)),
	)
	m.RecognitionDuration.Record(ctx, elapsed.Seconds())
}

// RecordCacheLookup records a synthesis cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}
