// Package sinks implements concrete progress consumers: structured logging,
// Prometheus, the search history repository, and Pub/Sub notifications. Each
// sink satisfies progress.Sink and is safe for repeated Consume/Close cycles.
package sinks
