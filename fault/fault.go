package fault

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies the failure mode of a call.
type Kind int

const (
	// KindConnection is a transport-level failure (DNS, TLS, reset).
	KindConnection Kind = iota

	// KindTimeout is an elapsed deadline, either per-attempt or overall.
	KindTimeout

	// KindStatus is a non-2xx HTTP response.
	KindStatus

	// KindOperation is a server-reported failure of an async operation.
	KindOperation

	// KindValidation is a malformed response on an otherwise successful call.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection_failure"
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status_error"
	case KindOperation:
		return "operation_failed"
	case KindValidation:
		return "validation_error"
	default:
		return "unknown"
	}
}

// Category attributes a failure to a side of the wire.
//
// CategoryUser failures are never retried. Everything else is retry-eligible
// subject to the caller's attempt and time budgets.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryUser
	CategoryServer
)

func (c Category) String() string {
	switch c {
	case CategoryUser:
		return "user"
	case CategoryServer:
		return "server"
	default:
		return "unknown"
	}
}

// ParseCategory parses a category string case-insensitively.
// Unrecognized values map to CategoryUnknown.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return CategoryUser
	case "server":
		return CategoryServer
	default:
		return CategoryUnknown
	}
}

// Retryable reports whether failures in this category may be retried.
func (c Category) Retryable() bool {
	return c != CategoryUser
}

// Error is a classified failure.
type Error struct {
	// Kind is the failure mode.
	Kind Kind

	// Category attributes the failure. CategoryUser is terminal.
	Category Category

	// Status is the HTTP status code, or 0 when the failure never
	// produced a response.
	Status int

	// Message is a human-readable description.
	Message string

	// RetryAfter is a server-suggested delay before the next attempt,
	// or 0 when the server did not supply one.
	RetryAfter time.Duration

	// Raw holds the decoded response body, when one was available.
	Raw map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("tinkex: ")
	b.WriteString(e.Kind.String())
	b.WriteString(" (")
	b.WriteString(e.Category.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, ", status %d", e.Status)
	}
	b.WriteString(")")
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether this failure may be retried.
func (e *Error) Retryable() bool {
	return e.Category.Retryable()
}

// New creates a classified error.
func New(kind Kind, category Category, msg string) *Error {
	return &Error{Kind: kind, Category: category, Message: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, category Category, format string, args ...any) *Error {
	return &Error{Kind: kind, Category: category, Message: fmt.Sprintf(format, args...)}
}

// Connection wraps a transport-level failure. Category is always Unknown:
// the client cannot tell whether the fault is local or remote.
func Connection(msg string, cause error) *Error {
	return &Error{Kind: KindConnection, Category: CategoryUnknown, Message: msg, Cause: cause}
}

// Timeout wraps an elapsed deadline.
func Timeout(msg string, cause error) *Error {
	return &Error{Kind: KindTimeout, Category: CategoryUnknown, Message: msg, Cause: cause}
}

// Validation marks a malformed response body on a successful status.
// These are user-category and never retried.
func Validation(msg string, cause error) *Error {
	return &Error{Kind: KindValidation, Category: CategoryUser, Message: msg, Cause: cause}
}

// As extracts a *Error from err, if err is one.
func As(err error) (*Error, bool) {
	fe, ok := err.(*Error)
	return fe, ok
}

// FromStatus classifies a non-2xx response. The category is read from an
// explicit "category" field in the decoded body when present; otherwise it
// is inferred from the status code: User for 4xx (excluding 408 and 429,
// which remain retry-eligible), Server for 5xx.
func FromStatus(status int, body map[string]any) *Error {
	category := inferCategory(status)
	msg := fmt.Sprintf("unexpected status %d", status)

	if body != nil {
		if raw, ok := body["category"].(string); ok {
			category = ParseCategory(raw)
		}
		if m, ok := body["message"].(string); ok && m != "" {
			msg = m
		} else if m, ok := body["error"].(string); ok && m != "" {
			msg = m
		}
	}

	return &Error{
		Kind:     KindStatus,
		Category: category,
		Status:   status,
		Message:  msg,
		Raw:      body,
	}
}

func inferCategory(status int) Category {
	switch {
	case status == 408 || status == 429:
		return CategoryUnknown
	case status >= 400 && status < 500:
		return CategoryUser
	case status >= 500 && status < 600:
		return CategoryServer
	default:
		return CategoryUnknown
	}
}

// Operation classifies a server-reported async operation failure. The body
// is the "error" object the server attached to the failed operation.
func Operation(body map[string]any) *Error {
	category := CategoryUnknown
	msg := "operation failed"

	if body != nil {
		if raw, ok := body["category"].(string); ok {
			category = ParseCategory(raw)
		}
		if m, ok := body["message"].(string); ok && m != "" {
			msg = m
		}
	}

	return &Error{
		Kind:     KindOperation,
		Category: category,
		Message:  msg,
		Raw:      body,
	}
}

// BudgetExhausted wraps the last classified error once the overall retry
// budget has elapsed. The wrapper is connection-category so callers treat it
// as a transient environment problem rather than a request defect.
func BudgetExhausted(budget time.Duration, last *Error) *Error {
	return &Error{
		Kind:     KindConnection,
		Category: CategoryUnknown,
		Message:  fmt.Sprintf("retry budget of %s exhausted", budget),
		Cause:    last,
	}
}
