// Package hmr reconciles an incremental update stream for a set of
// subscribed resources.
//
// # Overview
//
// A Reconciler owns two tables for the lifetime of one connection:
//
//   - the pending table, holding at most one aggregated partial update per
//     resource key until the current frame has been processed;
//   - the subscription table, holding the listeners of every resource and
//     the teardown action that unsubscribes it on the server.
//
// Frames arrive from a single reader (see the transport package). For each
// message the issue list of its resource is refreshed first; partial
// messages are then merged into the pending table, other messages are
// delivered right away. Once the whole frame has been handled the pending
// table is flushed: every listener of a key receives the same aggregate.
//
// # Failure handling
//
// An update pair that cannot be merged (*update.InvariantError) or a
// listener that fails (*ListenerError) aborts the frame. The error is
// reported through Hooks.Error and followed by a full reset: pending
// updates and issues are discarded and Hooks.Reset tells consumers to
// rebuild their state from scratch. Nothing is retried.
//
// # Side effects
//
// Subscribe and unsubscribe control messages are sent synchronously through
// the Outbound given to New, exactly once per transition between "no
// listeners" and "some listeners" for a key.
package hmr
