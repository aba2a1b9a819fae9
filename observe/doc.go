// Package observe provides the telemetry surface of the client runtime:
// structured logging, OpenTelemetry metrics and tracing, and the two domain
// events the runtime emits — one start/stop record per logical request
// (after all internal retries) and one record per backpressure queue-state
// transition.
//
// It is pure instrumentation: no execution, no transport, no I/O beyond
// exporter setup.
package observe
