// Package aggregator runs one job search across every registered source in
// three sequential stages, then merges, deduplicates and caps the results.
//
// Stage 1 holds the direct-call APIs, stage 2 the modern boards (mixed
// transport) and stage 3 the traditional browser-rendered sites, which only
// run when the caller opts into scraping. Every adapter in a stage runs
// concurrently and the stage waits for all of them. Failures are contained at
// the adapter and stage level; only a panic outside the stage guards fails the
// search.
package aggregator
