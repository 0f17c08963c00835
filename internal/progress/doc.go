// Package progress provides the event primitives, the synchronous dispatcher,
// and the emitter interface the fetch loop uses to report what it is doing.
// Display, logging, metrics, and the run ledger are all sinks; the fetch loop
// never formats output itself.
package progress
