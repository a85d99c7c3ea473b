// File: observability/otel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/momentics/hioload-jobs/api"
)

// meterName is the instrumentation scope name for job system metrics.
const meterName = "github.com/momentics/hioload-jobs"

// Metrics records job execution telemetry.
//
// Instruments:
//   - hioload_jobs.job.submitted (Int64Counter): attributes group, priority
//   - hioload_jobs.job.duration (Float64Histogram, s): attributes group, state, stolen
//   - hioload_jobs.job.finished (Int64Counter): attributes group, state, stolen
//   - hioload_jobs.stall.detected (Int64Counter): attribute group
//   - hioload_jobs.stall.duration (Float64Histogram, s): attribute group
type Metrics struct {
	submitted     metric.Int64Counter
	duration      metric.Float64Histogram
	finished      metric.Int64Counter
	stalls        metric.Int64Counter
	stallDuration metric.Float64Histogram
}

var _ api.Observer = (*Metrics)(nil)

// NewMetrics uses the global MeterProvider. Without one configured the
// instruments are no-ops.
func NewMetrics() *Metrics {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter builds the instruments from meter.
func NewMetricsWithMeter(meter metric.Meter) *Metrics {
	m := &Metrics{}
	// On error the API returns no-op instruments, so errors are not fatal.
	m.submitted, _ = meter.Int64Counter(
		"hioload_jobs.job.submitted",
		metric.WithDescription("Jobs accepted by the pool"),
		metric.WithUnit("{job}"),
	)
	m.duration, _ = meter.Float64Histogram(
		"hioload_jobs.job.duration",
		metric.WithDescription("Payload execution time"),
		metric.WithUnit("s"),
	)
	m.finished, _ = meter.Int64Counter(
		"hioload_jobs.job.finished",
		metric.WithDescription("Jobs that reached a terminal state"),
		metric.WithUnit("{job}"),
	)
	m.stalls, _ = meter.Int64Counter(
		"hioload_jobs.stall.detected",
		metric.WithDescription("Stall episodes reported by the detector"),
		metric.WithUnit("{stall}"),
	)
	m.stallDuration, _ = meter.Float64Histogram(
		"hioload_jobs.stall.duration",
		metric.WithDescription("Time without progress when a stall was reported"),
		metric.WithUnit("s"),
	)
	return m
}

func (m *Metrics) JobSubmitted(group string, priority api.Priority) {
	m.submitted.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("group", group),
		attribute.String("priority", priority.String()),
	))
}

func (m *Metrics) JobFinished(group string, state api.State, elapsed time.Duration, stolen bool) {
	attrs := metric.WithAttributes(
		attribute.String("group", group),
		attribute.String("state", state.String()),
		attribute.Bool("stolen", stolen),
	)
	ctx := context.Background()
	if state != api.StateCancelled {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
	m.finished.Add(ctx, 1, attrs)
}

func (m *Metrics) StallDetected(ev api.StallDetected) {
	attrs := metric.WithAttributes(attribute.String("group", ev.Group))
	ctx := context.Background()
	m.stalls.Add(ctx, 1, attrs)
	m.stallDuration.Record(ctx, ev.Duration.Seconds(), attrs)
}
