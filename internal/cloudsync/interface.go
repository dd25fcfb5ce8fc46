package cloudsync

import (
	"context"

	"github.com/kandil-code/kandil/internal/project"
)

// Syncer reconciles local state with the remote backend.
//
// Reconciliation is best-effort and never blocks or fails the primary
// local operations: callers stage work through the queue and drive
// passes explicitly (or via the daemon). A pass dispatches operations
// sequentially to preserve per-record ordering.
type Syncer interface {
	// SyncProject stages exactly two upserts for a project — the full
	// project record and its memory summary — then processes the queue.
	// Raw conversational content is never part of either payload.
	SyncProject(ctx context.Context, p *project.Project) error

	// SyncAll stages every sync candidate (projects that still have
	// memory enabled) and processes the queue once.
	SyncAll(ctx context.Context) error

	// ProcessQueue drains the queue and dispatches each operation in
	// original enqueue order. Failed operations are surfaced in the
	// returned error (joined per-operation SyncErrors) and re-enqueued
	// with exponential backoff until their attempts are exhausted.
	// An empty queue performs zero network calls.
	ProcessQueue(ctx context.Context) error

	// FetchProjects retrieves the remote project list. Merging it with
	// local state is the caller's decision; MergeProjects implements
	// the default last-write-wins policy.
	FetchProjects(ctx context.Context) ([]*project.Project, error)

	// Pending returns the number of operations currently staged.
	Pending() int
}
