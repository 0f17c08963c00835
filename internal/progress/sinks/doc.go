// Package sinks implements concrete progress consumers: the console, structured
// logging, Prometheus, the run ledger, and the status snapshot served over
// HTTP. Each sink satisfies the progress.Sink interface.
package sinks
