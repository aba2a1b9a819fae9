package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors for credential handling.
var (
	// ErrMissingCredential indicates an empty credential was supplied.
	ErrMissingCredential = errors.New("auth: missing credential")
)

// ServiceClaims are the claims the client reads from a service-account JWT.
type ServiceClaims struct {
	// Subject is the service-account subject (sub claim).
	Subject string

	// Organization is the owning organization (org claim), if present.
	Organization string

	// ExpiresAt is the token expiry, zero when the token never expires.
	ExpiresAt time.Time
}

// jwtClaims is the wire shape used during parsing.
type jwtClaims struct {
	Organization string `json:"org"`
	jwt.RegisteredClaims
}

// Credential is an API key or service-account token identifying a tenant.
// The zero value is an absent credential.
type Credential struct {
	token  string
	claims *ServiceClaims
}

// NewCredential wraps a raw token. If the token parses as a JWT, its claims
// become available through Claims; otherwise it is treated as an opaque key.
func NewCredential(token string) Credential {
	token = strings.TrimSpace(token)
	c := Credential{token: token}

	if strings.Count(token, ".") == 2 {
		var parsed jwtClaims
		// Unverified on purpose: the client never holds signing keys.
		if _, _, err := jwt.NewParser().ParseUnverified(token, &parsed); err == nil {
			sc := &ServiceClaims{
				Subject:      parsed.Subject,
				Organization: parsed.Organization,
			}
			if parsed.ExpiresAt != nil {
				sc.ExpiresAt = parsed.ExpiresAt.Time
			}
			c.claims = sc
		}
	}

	return c
}

// IsZero reports whether the credential is absent.
func (c Credential) IsZero() bool {
	return c.token == ""
}

// Token returns the raw secret. Callers must not log it.
func (c Credential) Token() string {
	return c.token
}

// Fingerprint returns a stable SHA-256 hex digest of the secret, safe to use
// in map keys and telemetry.
func (c Credential) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.token))
	return hex.EncodeToString(sum[:])
}

// String returns a redacted representation.
func (c Credential) String() string {
	if c.IsZero() {
		return "credential(absent)"
	}
	return "credential(" + c.Fingerprint()[:8] + ")"
}

// Claims returns the parsed service-account claims, if the credential is a
// JWT.
func (c Credential) Claims() (*ServiceClaims, bool) {
	if c.claims == nil {
		return nil, false
	}
	return c.claims, true
}

// Expired reports whether a JWT credential has expired as of now.
// Opaque keys and tokens without an exp claim never report expired.
func (c Credential) Expired(now time.Time) bool {
	if c.claims == nil || c.claims.ExpiresAt.IsZero() {
		return false
	}
	return now.After(c.claims.ExpiresAt)
}

// Apply sets the Authorization header on an outbound request.
func (c Credential) Apply(req *http.Request) error {
	if c.IsZero() {
		return ErrMissingCredential
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return nil
}
