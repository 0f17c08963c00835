// Package main hosts the scdx entrypoint.
//
// Architecture overview:
//   - Catalog: internal/cdx.Client fetches the index catalog (collinfo.json) once; failures are fatal.
//   - Selection: the catalog is narrowed to all crawls, explicit ids (-c), or the first entry (-l).
//   - Fetch loop: internal/cdx.Runner queries each crawl's CDX API in order, retrying 503 and other transient
//     statuses after a fixed sleep, skipping 404s, and appending every record as one compact JSON line.
//   - Reporting: the loop emits progress events to a synchronous dispatcher whose sinks print console notices,
//     log through zap, feed Prometheus collectors, write the Postgres run ledger, and back the status server.
//   - Publication: after a clean run the output can be uploaded to GCS and announced on Pub/Sub.
//
// Quick checklist:
//   - Run: go run ./cmd/scdx -d example.com -l
//   - Env overrides use the SCDX_ prefix, e.g. SCDX_FETCH_SLEEP_SECONDS=5 or SCDX_DB_DSN=postgres://...
//   - SIGINT/SIGTERM interrupts the retry sleep; the output file is flushed before exit.
package main
