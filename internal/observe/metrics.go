// Package observe provides application-wide observability primitives for
// Orator: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all Orator metrics.
const meterName = "github.com/oratorbot/orator"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// SynthDuration tracks text-to-speech synthesis latency.
	SynthDuration metric.Float64Histogram

	// PlaybackDuration tracks how long a clip keeps the voice connection
	// busy, from dispatch to completion or skip.
	PlaybackDuration metric.Float64Histogram

	// --- Counters ---

	// Commands counts handled commands. Use with attributes:
	//   attribute.String("command", ...), attribute.String("status", ...)
	Commands metric.Int64Counter

	// PlayRequests counts enqueued play requests. Use with attribute:
	//   attribute.String("origin", "user"|"farewell")
	PlayRequests metric.Int64Counter

	// SkipVotes counts skip votes by outcome. Use with attribute:
	//   attribute.String("outcome", ...)
	SkipVotes metric.Int64Counter

	// SynthErrors counts failed synthesis calls. Use with attribute:
	//   attribute.String("kind", "too_long"|"timeout"|"process")
	SynthErrors metric.Int64Counter

	// PrivacyDeletes counts users purged from the audit store.
	PrivacyDeletes metric.Int64Counter

	// --- Gauges ---

	// ActiveSchedulers tracks the number of live per-guild schedulers.
	ActiveSchedulers metric.Int64UpDownCounter

	// QueuedRequests tracks play requests waiting across all guilds.
	QueuedRequests metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// synthesis and short-clip playback.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SynthDuration, err = m.Float64Histogram("orator.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("orator.playback.duration",
		metric.WithDescription("Time a clip occupies the voice connection."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Commands, err = m.Int64Counter("orator.commands",
		metric.WithDescription("Total handled commands by name and status."),
	); err != nil {
		return nil, err
	}
	if met.PlayRequests, err = m.Int64Counter("orator.play.requests",
		metric.WithDescription("Total enqueued play requests by origin."),
	); err != nil {
		return nil, err
	}
	if met.SkipVotes, err = m.Int64Counter("orator.skip.votes",
		metric.WithDescription("Total skip votes by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SynthErrors, err = m.Int64Counter("orator.tts.errors",
		metric.WithDescription("Total failed synthesis calls by kind."),
	); err != nil {
		return nil, err
	}
	if met.PrivacyDeletes, err = m.Int64Counter("orator.privacy.deletes",
		metric.WithDescription("Total users purged from the audit store."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSchedulers, err = m.Int64UpDownCounter("orator.active_schedulers",
		metric.WithDescription("Number of live per-guild audio schedulers."),
	); err != nil {
		return nil, err
	}
	if met.QueuedRequests, err = m.Int64UpDownCounter("orator.queued_requests",
		metric.WithDescription("Play requests waiting across all guilds."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("orator.http.request.duration",
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

// RecordCommand records a handled command with the standard attribute set.
func (m *Metrics) RecordCommand(ctx context.Context, command, status string) {
	m.Commands.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("status", status),
		),
	)
}

// RecordSkipVote records one skip vote by outcome.
func (m *Metrics) RecordSkipVote(ctx context.Context, outcome string) {
	m.SkipVotes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordSynth records one synthesis call: its latency on success, or an error
// counter increment by kind otherwise.
func (m *Metrics) RecordSynth(ctx context.Context, d time.Duration, errKind string) {
	if errKind == "" {
		m.SynthDuration.Record(ctx, d.Seconds())
		return
	}
	m.SynthErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", errKind)),
	)
}

// RecordPlayRequest records one enqueued play request by origin.
func (m *Metrics) RecordPlayRequest(ctx context.Context, origin string) {
	m.PlayRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("origin", origin)),
	)
}

// RecordPlayback records how long one clip occupied the voice connection.
func (m *Metrics) RecordPlayback(ctx context.Context, d time.Duration) {
	m.PlaybackDuration.Record(ctx, d.Seconds())
}

// RecordPrivacyPurge records users purged from the audit store.
func (m *Metrics) RecordPrivacyPurge(ctx context.Context, users int) {
	if users == 0 {
		return
	}
	m.PrivacyDeletes.Add(ctx, int64(users))
}

// AddActiveSchedulers moves the live-scheduler gauge by delta.
func (m *Metrics) AddActiveSchedulers(ctx context.Context, delta int64) {
	m.ActiveSchedulers.Add(ctx, delta)
}

// AddQueuedRequests moves the waiting-request gauge by delta.
func (m *Metrics) AddQueuedRequests(ctx context.Context, delta int64) {
	m.QueuedRequests.Add(ctx, delta)
}
