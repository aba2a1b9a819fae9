// Package transport is the wire boundary of the client runtime: one Send
// call maps to one HTTP exchange, nothing more. Retry policy, backoff, and
// response classification live above it in package client.
//
// The default implementation partitions connection pools per tenant and per
// operation class, so one tenant's saturated sampling traffic cannot starve
// another tenant's training calls.
package transport
