package auth

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestNewCredential_OpaqueKey(t *testing.T) {
	c := NewCredential("sk-tinkex-abc123")

	if c.IsZero() {
		t.Error("IsZero() = true for non-empty key")
	}
	if _, ok := c.Claims(); ok {
		t.Error("opaque key should not expose claims")
	}
	if c.Expired(time.Now()) {
		t.Error("opaque key should never report expired")
	}
}

func TestNewCredential_JWT(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := signedTestToken(t, jwt.MapClaims{
		"sub": "svc-account-1",
		"org": "north-shore",
		"exp": exp.Unix(),
	})

	c := NewCredential(raw)
	claims, ok := c.Claims()
	if !ok {
		t.Fatal("Claims() not available for JWT credential")
	}
	if claims.Subject != "svc-account-1" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "svc-account-1")
	}
	if claims.Organization != "north-shore" {
		t.Errorf("Organization = %q, want %q", claims.Organization, "north-shore")
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, exp)
	}
}

func TestCredential_Expired(t *testing.T) {
	raw := signedTestToken(t, jwt.MapClaims{
		"sub": "svc",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	c := NewCredential(raw)
	if !c.Expired(time.Now()) {
		t.Error("Expired() = false for past exp claim")
	}
}

func TestCredential_FingerprintStable(t *testing.T) {
	a := NewCredential("key-one")
	b := NewCredential("key-one")
	other := NewCredential("key-two")

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("same secret should yield same fingerprint")
	}
	if a.Fingerprint() == other.Fingerprint() {
		t.Error("different secrets should yield different fingerprints")
	}
}

func TestCredential_StringRedacts(t *testing.T) {
	c := NewCredential("super-secret-key")
	if strings.Contains(c.String(), "super-secret-key") {
		t.Errorf("String() leaks the raw secret: %q", c.String())
	}
}

func TestCredential_Apply(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://api.example.com/v1", nil)

	c := NewCredential("sk-123")
	if err := c.Apply(req); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer sk-123" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer sk-123")
	}

	var zero Credential
	if err := zero.Apply(req); err != ErrMissingCredential {
		t.Errorf("Apply() with zero credential error = %v, want ErrMissingCredential", err)
	}
}
