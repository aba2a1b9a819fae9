// Package ratelimit provides the per-tenant shared backoff clock consulted
// before every rate-limited request.
//
// State is a single monotonically advancing deadline per tenant. Tenants
// never contend with each other: each entry is created lazily on first use
// and mutated only by compare-and-advance on an atomic timestamp — there is
// no global lock.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter tracks a backoff deadline per tenant key.
//
// The zero value is not usable; create with New. Entries live for the
// process lifetime — cardinality is bounded by the number of distinct
// tenants, so nothing is ever evicted.
type Limiter struct {
	entries sync.Map // string -> *entry

	// now and sleep are injectable for tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// entry holds the backoff deadline as unix nanoseconds.
type entry struct {
	until atomic.Int64
}

// New creates an empty Limiter.
func New() *Limiter {
	return &Limiter{
		now:   time.Now,
		sleep: sleepWithContext,
	}
}

// AwaitReady blocks until the tenant's backoff deadline has elapsed, or
// returns immediately when no deadline is set. It never blocks callers for
// unrelated tenants. The context bounds the wait.
func (l *Limiter) AwaitReady(ctx context.Context, key string) error {
	v, ok := l.entries.Load(key)
	if !ok {
		return nil
	}
	e := v.(*entry)

	// The deadline can advance while we sleep, so re-check in a loop.
	for {
		remaining := e.until.Load() - l.now().UnixNano()
		if remaining <= 0 {
			return nil
		}
		if err := l.sleep(ctx, time.Duration(remaining)); err != nil {
			return err
		}
	}
}

// RecordBackoff advances the tenant's deadline to now+d if that is later
// than the current deadline. The deadline never moves backward; concurrent
// callers racing to create the entry reuse the first writer's entry.
func (l *Limiter) RecordBackoff(key string, d time.Duration) {
	if d <= 0 {
		return
	}
	target := l.now().Add(d).UnixNano()

	v, ok := l.entries.Load(key)
	if !ok {
		v, _ = l.entries.LoadOrStore(key, &entry{})
	}
	e := v.(*entry)

	for {
		cur := e.until.Load()
		if cur >= target {
			return
		}
		if e.until.CompareAndSwap(cur, target) {
			return
		}
	}
}

// Deadline returns the tenant's current backoff deadline and whether one
// has ever been recorded.
func (l *Limiter) Deadline(key string) (time.Time, bool) {
	v, ok := l.entries.Load(key)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(0, v.(*entry).until.Load()), true
}

// Ready reports whether a request for the tenant may be sent now.
func (l *Limiter) Ready(key string) bool {
	v, ok := l.entries.Load(key)
	if !ok {
		return true
	}
	return v.(*entry).until.Load() <= l.now().UnixNano()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
