package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records request-level measurements.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records one logical request after all internal retries:
	// total duration, retry count, and error status.
	RecordRequest(ctx context.Context, meta RequestMeta, duration time.Duration, retries int, err error)

	// RecordBackpressureTransition records one queue-state change observed
	// while polling a handle.
	RecordBackpressureTransition(ctx context.Context, meta RequestMeta, oldState, newState string)
}

type metricsImpl struct {
	meter           metric.Meter
	requestCount    metric.Int64Counter
	requestErrors   metric.Int64Counter
	requestRetries  metric.Int64Counter
	requestDuration metric.Float64Histogram
	backpressure    metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	requestCount, err := meter.Int64Counter(
		"tinkex.request.total",
		metric.WithDescription("Total number of logical requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestErrors, err := meter.Int64Counter(
		"tinkex.request.errors",
		metric.WithDescription("Total number of logical requests ending in error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	requestRetries, err := meter.Int64Counter(
		"tinkex.request.retries",
		metric.WithDescription("Total number of retry attempts across all requests"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"tinkex.request.duration_ms",
		metric.WithDescription("Logical request duration including retries, in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	backpressure, err := meter.Int64Counter(
		"tinkex.poll.backpressure_transitions",
		metric.WithDescription("Queue-state transitions observed while polling"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:           meter,
		requestCount:    requestCount,
		requestErrors:   requestErrors,
		requestRetries:  requestRetries,
		requestDuration: requestDuration,
		backpressure:    backpressure,
	}, nil
}

func (m *metricsImpl) RecordRequest(ctx context.Context, meta RequestMeta, duration time.Duration, retries int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("tinkex.operation", meta.Operation),
	}
	if meta.Tenant != "" {
		attrs = append(attrs, attribute.String("tinkex.tenant", meta.Tenant))
	}
	opt := metric.WithAttributes(attrs...)

	m.requestCount.Add(ctx, 1, opt)
	if err != nil {
		m.requestErrors.Add(ctx, 1, opt)
	}
	if retries > 0 {
		m.requestRetries.Add(ctx, int64(retries), opt)
	}
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordBackpressureTransition(ctx context.Context, meta RequestMeta, oldState, newState string) {
	m.backpressure.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tinkex.operation", meta.Operation),
		attribute.String("queue_state.old", oldState),
		attribute.String("queue_state.new", newState),
	))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordRequest(ctx context.Context, meta RequestMeta, duration time.Duration, retries int, err error) {
}

func (m *noopMetrics) RecordBackpressureTransition(ctx context.Context, meta RequestMeta, oldState, newState string) {
}
