// Package dispatch runs a bounded fire-and-forget queue drained by a single
// worker goroutine.
//
// The engine uses one Dispatcher for verification mail and one for audit
// events. Producers never wait on delivery: with DropIfFull a full queue
// drops the item and counts it; otherwise Enqueue blocks until there is room
// or the caller's context ends. Close stops intake and drains what is
// already queued.
//
// # What this package must NOT do
//
//   - Import photoauth or any package that does.
//   - Retry failed deliveries.
package dispatch
