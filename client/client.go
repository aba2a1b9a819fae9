package client

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/North-Shore-AI/tinkex/config"
	"github.com/North-Shore-AI/tinkex/fault"
	"github.com/North-Shore-AI/tinkex/observe"
	"github.com/North-Shore-AI/tinkex/ratelimit"
	"github.com/North-Shore-AI/tinkex/transport"
)

// Retry signal headers, matched case-insensitively.
const (
	// ShouldRetryHeader carries an explicit server retry directive.
	// "true" forces a retry even on a 4xx; "false" forbids one even on a 5xx.
	ShouldRetryHeader = "X-Should-Retry"

	// RetryAfterMSHeader is the server-suggested delay in milliseconds.
	RetryAfterMSHeader = "Retry-After-Ms"

	// RetryAfterHeader is the standard delay header, in seconds.
	RetryAfterHeader = "Retry-After"
)

// Client executes logical calls for one tenant.
type Client struct {
	cfg       config.Config
	baseURL   string
	tenant    string
	transport transport.Transport
	limiter   *ratelimit.Limiter
	events    *observe.Events

	// Injectable for tests.
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64
}

// Option customizes a Client.
type Option func(*Client)

// WithTransport replaces the default HTTP transport.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithLimiter supplies a shared rate limiter. Clients for the same tenant
// must share one limiter to observe each other's backoff.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithEvents supplies the observability event sink.
func WithEvents(e *observe.Events) Option {
	return func(c *Client) { c.events = e }
}

// New creates a Client for the given tenant configuration.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		baseURL:   config.NormalizeBaseURL(cfg.BaseURL),
		tenant:    cfg.TenantKey().String(),
		transport: transport.NewHTTPTransport(),
		limiter:   ratelimit.New(),
		events:    observe.NopEvents(),
		now:       time.Now,
		sleep:     sleepWithContext,
		randFloat: rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Tenant returns the tenant key string this client operates under.
func (c *Client) Tenant() string {
	return c.tenant
}

// Limiter returns the rate limiter shared by this client's tenant.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// Execute issues one logical call, retrying internally per the decision
// table until success, a non-retryable failure, or budget exhaustion.
// The returned error, when non-nil, is always a *fault.Error.
func (c *Client) Execute(ctx context.Context, method, path string, body map[string]any) (map[string]any, error) {
	retries := c.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return c.execute(ctx, method, path, body, retries)
}

// RateLimitedCall issues one logical call on the coordinated-backoff path:
// it waits for the tenant's shared backoff clock before sending, disables
// the internal retry loop, and records any 429 retry-after it observes so
// concurrent callers for the same tenant back off together.
func (c *Client) RateLimitedCall(ctx context.Context, method, path string, body map[string]any) (map[string]any, error) {
	if err := c.limiter.AwaitReady(ctx, c.tenant); err != nil {
		return nil, fault.Connection("rate limiter wait interrupted", err)
	}

	result, err := c.execute(ctx, method, path, body, 0)
	if err != nil {
		if ferr, ok := fault.As(err); ok && ferr.Status == http.StatusTooManyRequests && ferr.RetryAfter > 0 {
			c.limiter.RecordBackoff(c.tenant, ferr.RetryAfter)
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) execute(ctx context.Context, method, path string, body map[string]any, retries int) (map[string]any, error) {
	meta := observe.RequestMeta{
		Operation: operationName(path),
		Tenant:    c.cfg.Credential.Fingerprint(),
	}
	ctx, timer := c.events.RequestStart(ctx, meta)

	encoded, err := transport.EncodeJSON(body)
	if err != nil {
		ferr := fault.Validation("encoding request body", err)
		timer.End(ctx, 0, ferr)
		return nil, ferr
	}

	start := c.now()
	var last *fault.Error

	for attempt := 0; ; attempt++ {
		result, resp, ferr := c.attempt(ctx, method, path, encoded)
		if ferr == nil {
			timer.End(ctx, attempt, nil)
			return result, nil
		}
		last = ferr

		d := c.decide(resp, ferr, attempt)
		if !d.retry || attempt >= retries {
			timer.End(ctx, attempt, ferr)
			return nil, ferr
		}
		if c.now().Add(d.delay).Sub(start) > c.cfg.RetryBudget {
			exhausted := fault.BudgetExhausted(c.cfg.RetryBudget, last)
			timer.End(ctx, attempt, exhausted)
			return nil, exhausted
		}
		if err := c.sleep(ctx, d.delay); err != nil {
			ferr := fault.Connection("retry wait interrupted", err)
			timer.End(ctx, attempt, ferr)
			return nil, ferr
		}
	}
}

// attempt performs a single transport exchange and classifies the result.
// The raw response is returned alongside any failure so the retry decision
// can inspect headers.
func (c *Client) attempt(ctx context.Context, method, path string, body []byte) (map[string]any, *transport.Response, *fault.Error) {
	headers := make(http.Header)
	headers.Set("Authorization", "Bearer "+c.cfg.Credential.Token())

	req := &transport.Request{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: headers,
		Body:    body,
		Timeout: c.cfg.RequestTimeout,
		PoolKey: c.tenant + "|" + operationName(path),
	}

	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, fault.Timeout("request timed out", err)
		}
		return nil, nil, fault.Connection("transport failure", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result, err := transport.DecodeJSON(resp.Body)
		if err != nil {
			return nil, resp, fault.Validation("malformed response body", err)
		}
		return result, resp, nil
	}

	raw, _ := transport.DecodeJSON(resp.Body)
	ferr := fault.FromStatus(resp.StatusCode, raw)
	ferr.RetryAfter = retryAfter(resp)
	return nil, resp, ferr
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

// operationName derives a short operation label from a request path,
// e.g. "/v1/forward_backward" yields "forward_backward".
func operationName(path string) string {
	trimmed := strings.Trim(path, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if trimmed == "" {
		return "request"
	}
	return trimmed
}
