package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "careline"

// Metrics holds all Careline metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	Turns             metric.Int64Counter
	SoftFails         metric.Int64Counter
	CapabilityCalls   metric.Int64Counter
	CapabilityLatency metric.Float64Histogram
	SessionsRecorded  metric.Int64Counter
	SessionDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFromMeter(otel.Meter(meterName))
}

// NewMetricsFromMeter creates all metric instruments on the given meter.
func NewMetricsFromMeter(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.Turns, err = meter.Int64Counter("careline.turns",
		metric.WithDescription("Number of conversation turns processed"))
	if err != nil {
		return nil, err
	}

	m.SoftFails, err = meter.Int64Counter("careline.turns.soft_failed",
		metric.WithDescription("Number of turns whose primary capability soft-failed"))
	if err != nil {
		return nil, err
	}

	m.CapabilityCalls, err = meter.Int64Counter("careline.capability.calls",
		metric.WithDescription("Number of external capability calls"))
	if err != nil {
		return nil, err
	}

	m.CapabilityLatency, err = meter.Float64Histogram("careline.capability.latency_ms",
		metric.WithDescription("External capability call latency in milliseconds"))
	if err != nil {
		return nil, err
	}

	m.SessionsRecorded, err = meter.Int64Counter("careline.sessions.recorded",
		metric.WithDescription("Number of finished sessions written"))
	if err != nil {
		return nil, err
	}

	m.SessionDuration, err = meter.Float64Histogram("careline.session.duration_seconds",
		metric.WithDescription("Session duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCapabilityCall counts one call and its latency.
func (m *Metrics) RecordCapabilityCall(ctx context.Context, capability, operation string, success bool, latency time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	)
	m.CapabilityCalls.Add(ctx, 1, attrs)
	m.CapabilityLatency.Record(ctx, float64(latency.Microseconds())/1000, attrs)
}

// RecordTurn counts one committed turn.
func (m *Metrics) RecordTurn(ctx context.Context, state string, softFailed bool) {
	if m == nil {
		return
	}
	m.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
	if softFailed {
		m.SoftFails.Add(ctx, 1)
	}
}

// RecordSession counts one written session record.
func (m *Metrics) RecordSession(ctx context.Context, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("end_reason", reason))
	m.SessionsRecorded.Add(ctx, 1, attrs)
	m.SessionDuration.Record(ctx, duration.Seconds(), attrs)
}
