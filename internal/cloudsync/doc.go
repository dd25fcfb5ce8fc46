// Package cloudsync provides best-effort reconciliation of local state
// with a remote PostgREST-style backend.
//
// Local mutation paths stage Operations on an in-process FIFO queue;
// the engine drains the queue and dispatches each operation to the
// remote sequentially, preserving enqueue order. The local store stays
// authoritative throughout: a failed remote call is surfaced as a
// SyncError and retried on a later pass with exponential backoff, but
// the local mutation behind it is never rolled back.
//
// Raw conversational content never enters an outbound payload. The only
// memory-derived data shipped remotely is the per-project summary
// (interaction count and last-updated timestamp).
package cloudsync
