// Package api hosts the optional status server that runs beside a fetch run.
// Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for a JSON snapshot of the current run.
package api
