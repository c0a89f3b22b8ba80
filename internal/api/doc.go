// Package api hosts the ops HTTP server that runs alongside a crawl. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the live run snapshot fed by the progress hub.
package api
