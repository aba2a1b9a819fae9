// Package auth handles the credential half of a tenant identity.
//
// A Credential wraps either an opaque API key or a service-account JWT.
// JWT credentials expose their claims (subject, organization, expiry) via a
// signature-free parse — verification is the server's job; the client only
// uses claims for tenant identity and early expiry warnings.
//
// Raw secrets never leave the package: map keys, log fields, and String()
// all use a SHA-256 fingerprint.
package auth
