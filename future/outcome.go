package future

import (
	"strings"
	"time"

	"github.com/North-Shore-AI/tinkex/fault"
)

// Handle references an in-progress server-side operation. Immutable once
// issued by a submission call.
type Handle struct {
	RequestID string
}

// QueueState describes where a queued operation sits from the server's
// point of view.
type QueueState int

const (
	// StateActive means the operation is being worked on.
	StateActive QueueState = iota
	// StatePausedCapacity means the queue is paused behind capacity limits.
	StatePausedCapacity
	// StatePausedRateLimit means the queue is paused behind rate limits.
	StatePausedRateLimit
	// StateUnknown covers absent or unrecognized queue states.
	StateUnknown
)

func (s QueueState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePausedCapacity:
		return "paused_capacity"
	case StatePausedRateLimit:
		return "paused_rate_limit"
	default:
		return "unknown"
	}
}

// ParseQueueState maps a wire value to a QueueState. Unrecognized values
// map to StateUnknown rather than being treated as active.
func ParseQueueState(s string) QueueState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StateActive
	case "paused_capacity":
		return StatePausedCapacity
	case "paused_rate_limit":
		return StatePausedRateLimit
	default:
		return StateUnknown
	}
}

// outcomeKind discriminates the poll outcome variants.
type outcomeKind int

const (
	outcomePending outcomeKind = iota
	outcomeCompleted
	outcomeFailed
	outcomeBackpressure
)

// outcome is one retrieval response, decoded.
type outcome struct {
	kind       outcomeKind
	result     map[string]any
	err        *fault.Error
	queueState QueueState
	retryAfter time.Duration
}

// parseOutcome decodes a retrieval response body. A malformed or missing
// status is treated as pending so the loop keeps polling; the server owns
// the terminal verdict.
func parseOutcome(body map[string]any) outcome {
	status, _ := body["status"].(string)
	switch strings.ToLower(status) {
	case "completed":
		result, _ := body["result"].(map[string]any)
		return outcome{kind: outcomeCompleted, result: result}
	case "failed":
		detail, _ := body["error"].(map[string]any)
		return outcome{kind: outcomeFailed, err: fault.Operation(detail)}
	case "queued":
		o := outcome{kind: outcomeBackpressure, queueState: StateUnknown}
		if state, ok := body["queue_state"].(string); ok {
			o.queueState = ParseQueueState(state)
		}
		if ms, ok := body["retry_after_ms"].(float64); ok && ms > 0 {
			o.retryAfter = time.Duration(ms) * time.Millisecond
		}
		return o
	default:
		return outcome{kind: outcomePending}
	}
}
