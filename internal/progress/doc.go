// Package progress carries crawl run events from the orchestrator to sinks.
// Emit never blocks the crawl; a background goroutine batches events and
// hands them to each sink (logs, Prometheus, the live snapshot served over
// HTTP, Pub/Sub notifications).
package progress
