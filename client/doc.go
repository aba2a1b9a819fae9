// Package client issues logical HTTP calls against the training service.
//
// A logical call wraps one or more transport attempts behind a retry loop.
// After every attempt the retry decision follows a three-tier table:
// an explicit server directive header wins over status-code inference,
// which wins over category inference. Calls on the rate-limited path skip
// the internal retry loop so backoff is coordinated once per tenant.
package client
