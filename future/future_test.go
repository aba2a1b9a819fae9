package future

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/North-Shore-AI/tinkex/auth"
	"github.com/North-Shore-AI/tinkex/client"
	"github.com/North-Shore-AI/tinkex/config"
	"github.com/North-Shore-AI/tinkex/fault"
)

func TestParseQueueState(t *testing.T) {
	tests := []struct {
		in   string
		want QueueState
	}{
		{"active", StateActive},
		{"PAUSED_CAPACITY", StatePausedCapacity},
		{"paused_rate_limit", StatePausedRateLimit},
		{"draining", StateUnknown},
		{"", StateUnknown},
	}
	for _, tt := range tests {
		if got := ParseQueueState(tt.in); got != tt.want {
			t.Errorf("ParseQueueState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseOutcome(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		o := parseOutcome(map[string]any{
			"status": "completed",
			"result": map[string]any{"loss": 0.5},
		})
		if o.kind != outcomeCompleted {
			t.Fatalf("kind = %v, want completed", o.kind)
		}
		if o.result["loss"] != 0.5 {
			t.Errorf("result = %v, want loss=0.5", o.result)
		}
	})

	t.Run("failed", func(t *testing.T) {
		o := parseOutcome(map[string]any{
			"status": "failed",
			"error":  map[string]any{"category": "user", "message": "bad shape"},
		})
		if o.kind != outcomeFailed {
			t.Fatalf("kind = %v, want failed", o.kind)
		}
		if o.err.Category != fault.CategoryUser || o.err.Message != "bad shape" {
			t.Errorf("err = %v, want user/bad shape", o.err)
		}
	})

	t.Run("queued", func(t *testing.T) {
		o := parseOutcome(map[string]any{
			"status":         "queued",
			"queue_state":    "paused_capacity",
			"retry_after_ms": float64(500),
		})
		if o.kind != outcomeBackpressure {
			t.Fatalf("kind = %v, want backpressure", o.kind)
		}
		if o.queueState != StatePausedCapacity {
			t.Errorf("queueState = %v, want paused_capacity", o.queueState)
		}
		if o.retryAfter != 500*time.Millisecond {
			t.Errorf("retryAfter = %v, want 500ms", o.retryAfter)
		}
	})

	t.Run("pending and unrecognized", func(t *testing.T) {
		for _, body := range []map[string]any{
			{"status": "pending"},
			{"status": 7},
			{},
		} {
			if o := parseOutcome(body); o.kind != outcomePending {
				t.Errorf("parseOutcome(%v).kind = %v, want pending", body, o.kind)
			}
		}
	})
}

// newTestPoller builds a poller over a real client whose sleeps return
// instantly but are recorded.
func newTestPoller(t *testing.T, baseURL string, opts ...PollerOption) (*Poller, *[]time.Duration) {
	t.Helper()
	c, err := client.New(config.Config{
		BaseURL:    baseURL,
		Credential: auth.NewCredential("test-key"),
	})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	p := NewPoller(c, opts...)
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func TestPoll_PendingThenCompleted(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultRetrievePath {
			t.Errorf("path = %q, want %q", r.URL.Path, DefaultRetrievePath)
		}
		if polls.Add(1) < 3 {
			w.Write([]byte(`{"status": "pending"}`))
			return
		}
		w.Write([]byte(`{"status": "completed", "result": {"loss": 1.25}}`))
	}))
	defer srv.Close()

	p, slept := newTestPoller(t, srv.URL)
	result, err := p.Poll(context.Background(), Handle{RequestID: "req-1"}, PollOptions{})
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if result["loss"] != 1.25 {
		t.Errorf("result = %v, want loss=1.25", result)
	}
	// Doubling schedule from 1s.
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("slept %d times, want %d", len(*slept), len(want))
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("delay[%d] = %v, want %v", i, (*slept)[i], d)
		}
	}
}

func TestPoll_UserFailureImmediate(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.Write([]byte(`{"status": "failed", "error": {"category": "user", "message": "bad input"}}`))
	}))
	defer srv.Close()

	p, _ := newTestPoller(t, srv.URL)
	_, err := p.Poll(context.Background(), Handle{RequestID: "req-1"}, PollOptions{})
	ferr, ok := fault.As(err)
	if !ok {
		t.Fatalf("error = %v, want *fault.Error", err)
	}
	if ferr.Kind != fault.KindOperation || ferr.Category != fault.CategoryUser {
		t.Errorf("got kind=%v category=%v, want operation_failed/user", ferr.Kind, ferr.Category)
	}
	if got := polls.Load(); got != 1 {
		t.Errorf("polls = %d, want 1 (user failures are terminal)", got)
	}
}

func TestPoll_ServerFailureRetried(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) == 1 {
			w.Write([]byte(`{"status": "failed", "error": {"category": "server", "message": "worker lost"}}`))
			return
		}
		w.Write([]byte(`{"status": "completed", "result": {}}`))
	}))
	defer srv.Close()

	p, _ := newTestPoller(t, srv.URL)
	if _, err := p.Poll(context.Background(), Handle{RequestID: "req-1"}, PollOptions{}); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if got := polls.Load(); got != 2 {
		t.Errorf("polls = %d, want 2", got)
	}
}

func TestPoll_BackpressureDedup(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) <= 3 {
			w.Write([]byte(`{"status": "queued", "queue_state": "paused_capacity", "retry_after_ms": 100}`))
			return
		}
		w.Write([]byte(`{"status": "completed", "result": {}}`))
	}))
	defer srv.Close()

	var transitions []QueueState
	p, slept := newTestPoller(t, srv.URL)
	_, err := p.Poll(context.Background(), Handle{RequestID: "req-1"}, PollOptions{
		OnQueueState: func(s QueueState) { transitions = append(transitions, s) },
	})
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if len(transitions) != 1 {
		t.Fatalf("observer fired %d times, want 1 (repeated states deduplicate)", len(transitions))
	}
	if transitions[0] != StatePausedCapacity {
		t.Errorf("state = %v, want paused_capacity", transitions[0])
	}
	for i, d := range *slept {
		if d != 100*time.Millisecond {
			t.Errorf("delay[%d] = %v, want 100ms from retry_after_ms", i, d)
		}
	}
}

func TestPoll_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "pending"}`))
	}))
	defer srv.Close()

	p, _ := newTestPoller(t, srv.URL)
	base := time.Now()
	var calls int
	p.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 3 * time.Second)
	}

	_, err := p.Poll(context.Background(), Handle{RequestID: "req-1"}, PollOptions{Timeout: 5 * time.Second})
	ferr, ok := fault.As(err)
	if !ok {
		t.Fatalf("error = %v, want *fault.Error", err)
	}
	if ferr.Kind != fault.KindTimeout {
		t.Errorf("kind = %v, want timeout", ferr.Kind)
	}
}

func TestTask_Await(t *testing.T) {
	task := Go(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	v, err := task.Await(time.Second)
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if v != 42 {
		t.Errorf("value = %d, want 42", v)
	}
}

func TestTask_AwaitTimeoutCancelsWork(t *testing.T) {
	cancelled := make(chan struct{})
	task := Go(context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(cancelled)
		return 0, ctx.Err()
	})

	_, err := task.Await(10 * time.Millisecond)
	ferr, ok := fault.As(err)
	if !ok || ferr.Kind != fault.KindTimeout {
		t.Fatalf("error = %v, want timeout-kind fault", err)
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Error("underlying work was not cancelled after abandoned wait")
	}
}

func TestAwaitMany_OrderAndPerSlotErrors(t *testing.T) {
	tasks := []*Task[string]{
		Go(context.Background(), func(ctx context.Context) (string, error) {
			return "first", nil
		}),
		Go(context.Background(), func(ctx context.Context) (string, error) {
			return "", fault.New(fault.KindOperation, fault.CategoryServer, "boom")
		}),
		Go(context.Background(), func(ctx context.Context) (string, error) {
			time.Sleep(5 * time.Millisecond)
			return "third", nil
		}),
	}

	results := AwaitMany(tasks, time.Second)
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0].Value != "first" || results[0].Err != nil {
		t.Errorf("results[0] = %+v, want first/nil", results[0])
	}
	if results[1].Err == nil {
		t.Error("results[1].Err = nil, want failure in its slot")
	}
	if results[2].Value != "third" || results[2].Err != nil {
		t.Errorf("results[2] = %+v, want third/nil", results[2])
	}
}

func TestAwaitMany_TimeoutPopulatesSlots(t *testing.T) {
	tasks := []*Task[int]{
		Go(context.Background(), func(ctx context.Context) (int, error) {
			return 1, nil
		}),
		Go(context.Background(), func(ctx context.Context) (int, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(10 * time.Second):
				return 2, nil
			}
		}),
	}

	results := AwaitMany(tasks, 50*time.Millisecond)
	if results[0].Err != nil {
		t.Errorf("results[0].Err = %v, want nil", results[0].Err)
	}
	ferr, ok := fault.As(results[1].Err)
	if !ok || ferr.Kind != fault.KindTimeout {
		t.Errorf("results[1].Err = %v, want timeout-kind fault", results[1].Err)
	}
}
