// Package dispatch implements the notification dispatch loop: it turns
// one validated Config into a bounded or unbounded sequence of timed
// sends against a transport.Sender, tolerating per-attempt failures
// and stopping cooperatively on context cancellation.
//
// # Counting rules
//
// Every attempt that ran to an outcome counts exactly once, as sent or
// failed; sent + failed always equals attempted. A send that was still
// in flight when the run context got cancelled is recorded only if it
// completed successfully; a send that errors while the run context is
// already cancelled is treated as aborted and counts as neither. A
// cancellation observed during the inter-message wait never touches
// the counters.
//
// # Reporting
//
// The loop never writes to an output device itself. Per-attempt and
// run-level outcomes go to a Sink; LogSink, BusSink and MultiSink
// cover the common wirings.
package dispatch
