package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/North-Shore-AI/tinkex/auth"
)

// Configuration errors.
var (
	// ErrMissingBaseURL indicates Config.BaseURL is empty.
	ErrMissingBaseURL = errors.New("config: base URL is required")

	// ErrMissingCredential indicates Config.Credential is absent.
	ErrMissingCredential = errors.New("config: credential is required")
)

// Environment variable names read by FromEnv.
const (
	EnvBaseURL        = "TINKEX_BASE_URL"
	EnvAPIKey         = "TINKEX_API_KEY"
	EnvRequestTimeout = "TINKEX_REQUEST_TIMEOUT"
	EnvMaxRetries     = "TINKEX_MAX_RETRIES"
	EnvRetryBudget    = "TINKEX_RETRY_BUDGET"
)

// Config is the per-tenant configuration for one client.
type Config struct {
	// BaseURL is the service endpoint, e.g. "https://api.example.com".
	BaseURL string

	// Credential authenticates every request for this tenant.
	Credential auth.Credential

	// RequestTimeout bounds a single HTTP attempt.
	// Default: 60s
	RequestTimeout time.Duration

	// MaxRetries is the per-call retry budget (retries, not attempts).
	// Negative disables retries entirely.
	// Default: 5
	MaxRetries int

	// RetryBudget bounds the total elapsed time spent retrying one logical
	// call, measured from the first attempt.
	// Default: 30s
	RetryBudget time.Duration
}

// WithDefaults returns a copy with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.RetryBudget <= 0 {
		c.RetryBudget = 30 * time.Second
	}
	return c
}

// Validate checks that the configuration can identify a tenant.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("config: invalid base URL %q: %w", c.BaseURL, err)
	}
	if c.Credential.IsZero() {
		return ErrMissingCredential
	}
	return nil
}

// TenantKey identifies the isolation boundary shared by clients with the
// same endpoint and credential: rate-limit state and connection pools.
type TenantKey struct {
	// BaseURL is the normalized endpoint.
	BaseURL string

	// Fingerprint is the credential fingerprint, never the raw secret.
	Fingerprint string
}

// String returns the canonical map-key form.
func (k TenantKey) String() string {
	return k.BaseURL + "|" + k.Fingerprint
}

// TenantKey derives the tenant key for this configuration. Two configs with
// the same normalized base URL and credential produce equal keys.
func (c Config) TenantKey() TenantKey {
	return TenantKey{
		BaseURL:     NormalizeBaseURL(c.BaseURL),
		Fingerprint: c.Credential.Fingerprint(),
	}
}

// NormalizeBaseURL canonicalizes an endpoint for identity comparison:
// scheme and host are lowercased, default ports dropped, and the trailing
// slash trimmed. Unparseable input is returned trimmed but otherwise as-is.
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	host, port := u.Hostname(), u.Port()
	if (u.Scheme == "https" && port == "443") || (u.Scheme == "http" && port == "80") {
		u.Host = host
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.Fragment = ""
	return u.String()
}

// FromEnv builds a Config from the environment. A .env file in the working
// directory is loaded first when present (missing files are not an error).
// The credential value supports strict ${VAR} expansion so secrets can be
// referenced indirectly, e.g. TINKEX_API_KEY='${PROD_TINKEX_KEY}'.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{BaseURL: os.Getenv(EnvBaseURL)}

	key, err := ExpandEnvStrict(os.Getenv(EnvAPIKey))
	if err != nil {
		return Config{}, fmt.Errorf("config: resolving %s: %w", EnvAPIKey, err)
	}
	cfg.Credential = auth.NewCredential(key)

	if v := os.Getenv(EnvRequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid %s %q: %w", EnvRequestTimeout, v, err)
		}
		cfg.RequestTimeout = d
	}
	if v := os.Getenv(EnvMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid %s %q: %w", EnvMaxRetries, v, err)
		}
		cfg.MaxRetries = n
	}
	if v := os.Getenv(EnvRetryBudget); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid %s %q: %w", EnvRetryBudget, v, err)
		}
		cfg.RetryBudget = d
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
