package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the client-generated correlation ID.
const RequestIDHeader = "X-Request-Id"

// maxResponseBody caps how much of a response is read into memory.
const maxResponseBody = 64 << 20

// Request is one outbound HTTP exchange.
type Request struct {
	// Method is the HTTP verb.
	Method string

	// URL is the absolute request URL.
	URL string

	// Headers are merged into the outbound request. May be nil.
	Headers http.Header

	// Body is the encoded request payload. May be nil.
	Body []byte

	// Timeout bounds this single exchange. Zero means no per-request bound
	// beyond the context's own deadline.
	Timeout time.Duration

	// PoolKey selects the connection pool, typically
	// "<tenant>|<operation class>". Empty uses a shared default pool.
	PoolKey string
}

// Response is the raw result of one exchange.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Header returns a response header by name, case-insensitively.
func (r *Response) Header(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	vs := r.Headers.Values(name)
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Transport sends one request and returns the raw response. Implementations
// must be safe for concurrent use and must not retry internally.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is the default net/http-backed Transport.
type HTTPTransport struct {
	mu      sync.Mutex
	clients map[string]*http.Client

	// newClient is injectable for tests.
	newClient func() *http.Client
}

// NewHTTPTransport creates a transport with empty pools.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		clients:   make(map[string]*http.Client),
		newClient: defaultClient,
	}
}

func defaultClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        32,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Send performs one HTTP exchange. It injects a correlation ID when the
// caller did not supply one and reads the full response body.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("transport: building request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for name, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	}

	resp, err := t.client(req.PoolKey).Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("transport: reading response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

// client returns the pooled client for key, creating it on first use.
func (t *HTTPTransport) client(key string) *http.Client {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.clients[key]; ok {
		return c
	}
	c := t.newClient()
	t.clients[key] = c
	return c
}

// EncodeJSON marshals a payload for the wire. Optional fields expressed as
// nil map values are transmitted as explicit JSON nulls, preserving the
// "not set" versus "explicitly empty" distinction the service relies on.
func EncodeJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("transport: encoding body: %w", err)
	}
	return data, nil
}

// DecodeJSON unmarshals a response body into a generic map.
func DecodeJSON(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("transport: decoding body: %w", err)
	}
	return m, nil
}
