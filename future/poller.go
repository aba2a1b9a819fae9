package future

import (
	"context"
	"net/http"
	"time"

	"github.com/North-Shore-AI/tinkex/client"
	"github.com/North-Shore-AI/tinkex/fault"
	"github.com/North-Shore-AI/tinkex/observe"
)

// DefaultRetrievePath is the retrieval endpoint polled for every handle.
const DefaultRetrievePath = "/v1/futures/retrieve"

// Poll backoff schedule: doubling, no jitter. Backpressure outcomes use
// the server-suggested delay instead, falling back to the base.
const (
	pollBase = time.Second
	pollCap  = 30 * time.Second
)

// PollOptions configures one poll loop.
type PollOptions struct {
	// Timeout bounds the whole loop. Zero means poll until terminal.
	Timeout time.Duration

	// OnQueueState is invoked on every queue-state change, deduplicated
	// so repeated identical states never re-fire. May be nil.
	OnQueueState func(QueueState)
}

// Poller drives handles to completion through a client.
type Poller struct {
	client       *client.Client
	retrievePath string
	events       *observe.Events

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithRetrievePath overrides the retrieval endpoint path.
func WithRetrievePath(path string) PollerOption {
	return func(p *Poller) { p.retrievePath = path }
}

// WithEvents supplies the observability event sink.
func WithEvents(e *observe.Events) PollerOption {
	return func(p *Poller) { p.events = e }
}

// NewPoller creates a Poller issuing retrievals through c.
func NewPoller(c *client.Client, opts ...PollerOption) *Poller {
	p := &Poller{
		client:       c,
		retrievePath: DefaultRetrievePath,
		events:       observe.NopEvents(),
		now:          time.Now,
		sleep:        sleepWithContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll retrieves the handle's result, looping until the server reports a
// terminal outcome or the poll timeout elapses. Each iteration is one
// logical call through the client; its HTTP-level retries still apply, but
// no second retry loop wraps them. The returned error, when non-nil, is
// always a *fault.Error.
func (p *Poller) Poll(ctx context.Context, handle Handle, opts PollOptions) (map[string]any, error) {
	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = p.now().Add(opts.Timeout)
	}

	meta := observe.RequestMeta{
		Operation: "poll",
		Tenant:    p.client.Tenant(),
		RequestID: handle.RequestID,
	}

	var (
		lastState QueueState
		seenState bool
		backoff   = pollBase
	)

	for {
		body, err := p.client.Execute(ctx, http.MethodPost, p.retrievePath, map[string]any{
			"request_id": handle.RequestID,
		})

		var delay time.Duration
		switch {
		case err != nil:
			ferr, ok := fault.As(err)
			if !ok || ferr.Category == fault.CategoryUser {
				return nil, err
			}
			delay, backoff = backoff, nextBackoff(backoff)

		default:
			o := parseOutcome(body)
			switch o.kind {
			case outcomeCompleted:
				return o.result, nil
			case outcomeFailed:
				if o.err.Category == fault.CategoryUser {
					return nil, o.err
				}
				delay, backoff = backoff, nextBackoff(backoff)
			case outcomeBackpressure:
				if !seenState || o.queueState != lastState {
					old := lastState.String()
					if !seenState {
						old = ""
					}
					p.events.BackpressureChange(ctx, meta, old, o.queueState.String())
					if opts.OnQueueState != nil {
						opts.OnQueueState(o.queueState)
					}
					lastState, seenState = o.queueState, true
				}
				delay = o.retryAfter
				if delay <= 0 {
					delay = pollBase
				}
			default:
				delay, backoff = backoff, nextBackoff(backoff)
			}
		}

		if !deadline.IsZero() {
			remaining := deadline.Sub(p.now())
			if remaining <= 0 || delay > remaining {
				return nil, fault.Timeout("poll timed out before completion", nil)
			}
		}
		if err := p.sleep(ctx, delay); err != nil {
			return nil, fault.Connection("poll wait interrupted", err)
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > pollCap {
		return pollCap
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
