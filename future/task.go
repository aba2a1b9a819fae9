package future

import (
	"context"
	"time"

	"github.com/North-Shore-AI/tinkex/fault"
)

// Task is a cancellable in-flight operation producing a value of type T.
// Abandoning a Task with Cancel stops the underlying work; the work itself
// must honor context cancellation.
type Task[T any] struct {
	cancel context.CancelFunc
	done   chan struct{}

	value T
	err   error
}

// Go starts fn in its own goroutine and returns a Task for its result.
// The function receives a context derived from ctx that is cancelled when
// the Task is cancelled or abandoned.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		defer cancel()
		t.value, t.err = fn(ctx)
	}()
	return t
}

// Cancel stops the underlying work. Safe to call multiple times.
func (t *Task[T]) Cancel() {
	t.cancel()
}

// Done is closed when the task has finished.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Await blocks until the task finishes or the timeout elapses. Zero means
// wait indefinitely. On timeout the underlying work is cancelled and a
// timeout-kind error is returned, so an abandoned wait never leaks the
// work it was waiting on.
func (t *Task[T]) Await(timeout time.Duration) (T, error) {
	if timeout <= 0 {
		<-t.done
		return t.value, t.err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.done:
		return t.value, t.err
	case <-timer.C:
		t.cancel()
		var zero T
		return zero, fault.Timeout("timed out awaiting task", nil)
	}
}

// Result is one slot of an AwaitMany call.
type Result[T any] struct {
	Value T
	Err   error
}

// AwaitMany waits for every task under one shared timeout and returns one
// Result per task, in input order. A per-task failure or timeout populates
// that slot's Err; AwaitMany itself never fails.
func AwaitMany[T any](tasks []*Task[T], timeout time.Duration) []Result[T] {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	results := make([]Result[T], len(tasks))
	for i, task := range tasks {
		if task == nil {
			results[i].Err = fault.Validation("nil task", nil)
			continue
		}
		remaining := time.Duration(0)
		if !deadline.IsZero() {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				task.Cancel()
				results[i].Err = fault.Timeout("timed out awaiting task", nil)
				continue
			}
		}
		results[i].Value, results[i].Err = task.Await(remaining)
	}
	return results
}
