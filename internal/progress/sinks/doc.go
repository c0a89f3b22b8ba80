// Package sinks implements progress consumers: structured logs, Prometheus
// run collectors, the live snapshot behind /v1/progress, and Pub/Sub
// notifications for recorded entities.
package sinks
