// Package observe provides OpenTelemetry metrics for the transcription
// service and the Prometheus bridge that serves them on /metrics.
//
// Tests should build a [Metrics] with [NewMetrics] and a ManualReader backed
// provider. A nil *Metrics is valid and records nothing.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/verse-scribe/internal/types"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/verse-scribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
type Metrics struct {
	// VersesCompleted counts persisted verse completions by mode.
	VersesCompleted metric.Int64Counter

	// CreditsAwarded sums awarded credits by mode.
	CreditsAwarded metric.Int64Counter

	// DailyLimitReached counts awards refused or sessions ended by the cap.
	DailyLimitReached metric.Int64Counter

	// PersistenceFailures counts failed ledger writes by operation.
	PersistenceFailures metric.Int64Counter

	// ActiveSessions tracks live server-held transcription sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks request latency by method, route and status.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.VersesCompleted, err = m.Int64Counter("scribe.verses.completed",
		metric.WithDescription("Verse completions persisted to the ledger, by mode."),
	); err != nil {
		return nil, err
	}
	if met.CreditsAwarded, err = m.Int64Counter("scribe.credits.awarded",
		metric.WithDescription("Credits awarded, by mode."),
	); err != nil {
		return nil, err
	}
	if met.DailyLimitReached, err = m.Int64Counter("scribe.daily_limit.reached",
		metric.WithDescription("Awards stopped by the daily credit limit."),
	); err != nil {
		return nil, err
	}
	if met.PersistenceFailures, err = m.Int64Counter("scribe.persistence.failures",
		metric.WithDescription("Failed ledger writes, by operation."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("scribe.sessions.active",
		metric.WithDescription("Live transcription sessions held by the server."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("scribe.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on the global
// provider. Call it after InitProvider.
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

// RecordVerseCompleted records one persisted completion and its award
func (m *Metrics) RecordVerseCompleted(ctx context.Context, mode types.Mode, credits int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mode", string(mode)))
	m.VersesCompleted.Add(ctx, 1, attrs)
	if credits > 0 {
		m.CreditsAwarded.Add(ctx, int64(credits), attrs)
	}
}

// RecordDailyLimitReached records an award stopped by the cap
func (m *Metrics) RecordDailyLimitReached(ctx context.Context) {
	if m == nil {
		return
	}
	m.DailyLimitReached.Add(ctx, 1)
}

// RecordPersistenceFailure records a failed ledger write
func (m *Metrics) RecordPersistenceFailure(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.PersistenceFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// SessionStarted increments the active session gauge
func (m *Metrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

// SessionEnded decrements the active session gauge
func (m *Metrics) SessionEnded(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}

// RecordHTTPRequest records the latency of one request
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
}
