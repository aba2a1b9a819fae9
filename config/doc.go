// Package config defines the per-tenant configuration supplied explicitly to
// every client, and the tenant key derived from it.
//
// Configuration resolution happens once, outside the request hot path. The
// runtime never reads ambient state while executing requests: a Config is
// constructed up front (directly, or via FromEnv) and handed to the client.
package config
