package client

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/North-Shore-AI/tinkex/fault"
	"github.com/North-Shore-AI/tinkex/transport"
)

// Exponential backoff schedule for retryable attempts without a
// server-suggested delay. Full jitter: the actual delay is drawn
// uniformly from [0, min(base*2^attempt, cap)).
const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 8 * time.Second
)

// Fallback delay for a 429 that carries no retry-after value.
const defaultRetryAfter = time.Second

// directive is the per-attempt retry decision.
type directive struct {
	retry bool
	delay time.Duration
}

// decide computes the retry directive for a failed attempt. Precedence is
// a three-tier table: explicit server header, then status code, then
// failure category.
func (c *Client) decide(resp *transport.Response, ferr *fault.Error, attempt int) directive {
	// Tier 1: an explicit should-retry header is obeyed unconditionally.
	if forced, ok := shouldRetry(resp); ok {
		if !forced {
			return directive{}
		}
		if ferr.RetryAfter > 0 {
			return directive{retry: true, delay: ferr.RetryAfter}
		}
		return directive{retry: true, delay: c.backoff(attempt)}
	}

	// Tier 2: status-code inference.
	switch {
	case ferr.Status == http.StatusTooManyRequests:
		// The server paces us; no exponential schedule on this path.
		delay := ferr.RetryAfter
		if delay <= 0 {
			delay = defaultRetryAfter
		}
		return directive{retry: true, delay: delay}
	case ferr.Status == http.StatusRequestTimeout, ferr.Status >= 500 && ferr.Status <= 599:
		return directive{retry: true, delay: c.backoff(attempt)}
	case ferr.Status != 0:
		// All other statuses, including the remaining 4xx.
		return directive{}
	}

	// Tier 3: no response at all; retry transport-level failures.
	if ferr.Kind == fault.KindConnection || ferr.Kind == fault.KindTimeout {
		return directive{retry: true, delay: c.backoff(attempt)}
	}
	return directive{}
}

func (c *Client) backoff(attempt int) time.Duration {
	ceiling := backoffCap
	if attempt < 30 {
		if d := backoffBase << uint(attempt); d < ceiling {
			ceiling = d
		}
	}
	return time.Duration(c.randFloat() * float64(ceiling))
}

// shouldRetry reads the explicit retry directive header. The second return
// reports whether the header was present and parseable.
func shouldRetry(resp *transport.Response) (bool, bool) {
	v, ok := resp.Header(ShouldRetryHeader)
	if !ok {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// retryAfter reads the server-suggested delay from the response headers,
// preferring the millisecond form over the standard seconds form.
func retryAfter(resp *transport.Response) time.Duration {
	if v, ok := resp.Header(RetryAfterMSHeader); ok {
		if ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	if v, ok := resp.Header(RetryAfterHeader); ok {
		if secs, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
