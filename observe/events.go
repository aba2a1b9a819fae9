package observe

import (
	"context"
	"time"
)

// Events is the domain-event recorder the runtime components hold. It emits
// one start/stop record per logical request — after all internal retries,
// never one per attempt — and one record per backpressure queue-state
// transition.
//
// A nil *Events is valid and records nothing, so components never need
// nil checks around instrumentation.
type Events struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewEvents builds an Events recorder from an Observer.
func NewEvents(obs Observer) (*Events, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return &Events{
		tracer:  newTracer(obs.Tracer()),
		metrics: metrics,
		logger:  obs.Logger(),
	}, nil
}

// NopEvents returns a recorder that discards everything.
func NopEvents() *Events {
	return &Events{
		tracer:  newNoopTracer(),
		metrics: &noopMetrics{},
		logger:  &noopLogger{},
	}
}

// RequestTimer tracks one in-flight logical request from start to stop.
type RequestTimer struct {
	events *Events
	meta   RequestMeta
	span   spanCloser
	start  time.Time
}

// spanCloser is the minimal handle RequestTimer keeps on an open span.
type spanCloser struct {
	end func(err error)
}

// RequestStart opens the span and timer for one logical request.
func (e *Events) RequestStart(ctx context.Context, meta RequestMeta) (context.Context, *RequestTimer) {
	if e == nil {
		return ctx, nil
	}

	ctx, span := e.tracer.StartSpan(ctx, meta)
	return ctx, &RequestTimer{
		events: e,
		meta:   meta,
		span:   spanCloser{end: func(err error) { e.tracer.EndSpan(span, err) }},
		start:  time.Now(),
	}
}

// End closes the request: it ends the span, records metrics, and logs the
// outcome with elapsed time and retry count.
func (t *RequestTimer) End(ctx context.Context, retries int, err error) {
	if t == nil {
		return
	}

	duration := time.Since(t.start)
	t.span.end(err)
	t.events.metrics.RecordRequest(ctx, t.meta, duration, retries, err)

	logger := t.events.logger.WithRequest(t.meta)
	fields := []Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		{Key: "retries", Value: retries},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		logger.Error(ctx, "request failed", fields...)
	} else {
		logger.Info(ctx, "request completed", fields...)
	}
}

// BackpressureChange records one queue-state transition for a polled handle.
func (e *Events) BackpressureChange(ctx context.Context, meta RequestMeta, oldState, newState string) {
	if e == nil {
		return
	}

	e.metrics.RecordBackpressureTransition(ctx, meta, oldState, newState)
	e.logger.WithRequest(meta).Info(ctx, "queue state changed",
		Field{Key: "old_state", Value: oldState},
		Field{Key: "new_state", Value: newState},
	)
}

// Logger exposes the underlying logger for components that log outside the
// two domain events. Returns a no-op logger on a nil recorder.
func (e *Events) Logger() Logger {
	if e == nil {
		return &noopLogger{}
	}
	return e.logger
}
