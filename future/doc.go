// Package future turns a server-issued request handle into a completed
// result by polling the retrieval endpoint until a terminal outcome.
//
// The poll loop sleeps with doubling backoff between attempts, honors
// server backpressure signals, and reports queue-state transitions exactly
// once per change. Task and AwaitMany bridge concurrent poll loops back to
// blocking callers.
package future
