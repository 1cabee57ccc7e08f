// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces the aggregator uses to report search progress. Events are batched
// on a background goroutine and fanned out to pluggable sinks such as logs,
// Prometheus collectors, the search history store, and Pub/Sub.
package progress
