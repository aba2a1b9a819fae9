// Package batch splits oversized batch requests into bounded chunks,
// drives their futures concurrently, and merges the partial results back
// into one logical result.
//
// Chunks are submitted strictly in order so server-side sequence numbers
// stay monotonic; polling runs concurrently with a bounded degree of
// parallelism. Metric merging follows a suffix convention on the metric
// name, defaulting to a count-weighted mean.
package batch
