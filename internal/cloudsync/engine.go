package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kandil-code/kandil/internal/memory"
	"github.com/kandil-code/kandil/internal/project"
)

// MemorySummary is the only memory-derived data that leaves the
// machine: how much history a project has and when it last moved.
// Record content deliberately has no field here.
type MemorySummary struct {
	ProjectID        string    `json:"project_id"`
	InteractionCount int       `json:"interaction_count"`
	LastUpdated      time.Time `json:"last_updated,omitzero"`
}

// PassStats summarizes one ProcessQueue pass.
type PassStats struct {
	Synced   int
	Failed   int
	Deferred int
	Dropped  int
	Duration time.Duration
}

// Hooks are optional callbacks fired during a pass. Used by the
// dashboard to broadcast sync activity; all fields may be nil.
type Hooks struct {
	OpSynced     func(Operation)
	OpFailed     func(Operation, error)
	PassComplete func(PassStats)
}

// Config holds engine tuning.
type Config struct {
	// MaxAttempts is how many times an operation may fail before it is
	// dropped from the retry cycle (still reported, never silent).
	MaxAttempts int

	// Logger for sync activity.
	Logger *log.Logger

	Hooks Hooks
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 8,
		Logger:      log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// engine implements the Syncer interface.
type engine struct {
	queue    *Queue
	client   *Client
	registry *project.Registry
	memlog   *memory.Log
	config   *Config
}

// New creates a Syncer with default configuration.
//
// The queue is owned by the caller so local mutation paths can stage
// operations on it without holding an engine reference.
func New(queue *Queue, client *Client, registry *project.Registry, memlog *memory.Log) Syncer {
	return NewWithConfig(queue, client, registry, memlog, DefaultConfig())
}

// NewWithConfig creates a Syncer with custom configuration.
func NewWithConfig(queue *Queue, client *Client, registry *project.Registry, memlog *memory.Log, config *Config) Syncer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &engine{
		queue:    queue,
		client:   client,
		registry: registry,
		memlog:   memlog,
		config:   config,
	}
}

// SyncProject implements Syncer.SyncProject.
func (e *engine) SyncProject(ctx context.Context, p *project.Project) error {
	if err := e.stageProject(ctx, p); err != nil {
		return err
	}
	return e.ProcessQueue(ctx)
}

// SyncAll implements Syncer.SyncAll.
func (e *engine) SyncAll(ctx context.Context) error {
	candidates, err := e.registry.SyncCandidates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sync candidates: %w", err)
	}

	for _, p := range candidates {
		if err := e.stageProject(ctx, p); err != nil {
			return err
		}
	}
	return e.ProcessQueue(ctx)
}

// stageProject enqueues the two logical operations for one project:
// the full record upsert and the derived memory summary upsert.
func (e *engine) stageProject(ctx context.Context, p *project.Project) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal project %s: %w", p.ID, err)
	}
	if err := e.queue.Enqueue(Operation{
		Kind:     KindUpsert,
		Table:    "projects",
		RecordID: p.ID,
		Payload:  payload,
	}); err != nil {
		return fmt.Errorf("failed to stage project %s: %w", p.ID, err)
	}

	records, err := e.memlog.All(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to summarize memory for %s: %w", p.ID, err)
	}
	summary := MemorySummary{
		ProjectID:        p.ID,
		InteractionCount: len(records),
	}
	if len(records) > 0 {
		summary.LastUpdated = records[0].Timestamp
	}

	payload, err = json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary for %s: %w", p.ID, err)
	}
	if err := e.queue.Enqueue(Operation{
		Kind:     KindUpsert,
		Table:    "memory_summaries",
		RecordID: p.ID,
		Payload:  payload,
	}); err != nil {
		return fmt.Errorf("failed to stage summary for %s: %w", p.ID, err)
	}

	return nil
}

// ProcessQueue implements Syncer.ProcessQueue.
func (e *engine) ProcessQueue(ctx context.Context) error {
	ops := e.queue.DrainAll()
	if len(ops) == 0 {
		return nil
	}

	start := time.Now()
	stats := PassStats{}
	var errs []error

	for _, op := range ops {
		// Backoff gate: not due yet, put it back untouched.
		if op.NextAttempt.After(start) {
			if err := e.queue.Enqueue(op); err != nil {
				errs = append(errs, fmt.Errorf("failed to requeue %s %s/%s: %w",
					op.Kind, op.Table, op.RecordID, err))
			}
			stats.Deferred++
			continue
		}

		if err := e.dispatch(ctx, op); err != nil {
			stats.Failed++
			errs = append(errs, err)
			e.config.Logger.Printf("Sync failed: %v", err)
			if e.config.Hooks.OpFailed != nil {
				e.config.Hooks.OpFailed(op, err)
			}

			op.AttemptCount++
			if op.AttemptCount >= e.config.MaxAttempts {
				stats.Dropped++
				e.config.Logger.Printf("Dropping %s %s/%s after %d attempts",
					op.Kind, op.Table, op.RecordID, op.AttemptCount)
				continue
			}
			op.NextAttempt = time.Now().Add(backoff(op.AttemptCount))
			if err := e.queue.Enqueue(op); err != nil {
				errs = append(errs, fmt.Errorf("failed to requeue %s %s/%s: %w",
					op.Kind, op.Table, op.RecordID, err))
			}
			continue
		}

		stats.Synced++
		e.config.Logger.Printf("Synced %s %s/%s", op.Kind, op.Table, op.RecordID)
		if e.config.Hooks.OpSynced != nil {
			e.config.Hooks.OpSynced(op)
		}
	}

	stats.Duration = time.Since(start)
	e.config.Logger.Printf("Pass complete: synced=%d failed=%d deferred=%d dropped=%d in %v",
		stats.Synced, stats.Failed, stats.Deferred, stats.Dropped,
		stats.Duration.Round(time.Millisecond))
	if e.config.Hooks.PassComplete != nil {
		e.config.Hooks.PassComplete(stats)
	}

	return errors.Join(errs...)
}

// dispatch performs the single remote call for one operation.
func (e *engine) dispatch(ctx context.Context, op Operation) error {
	var status int
	var err error

	switch op.Kind {
	case KindUpsert:
		status, err = e.client.Upsert(ctx, op.Table, op.RecordID, op.Payload)
	case KindDelete:
		status, err = e.client.Delete(ctx, op.Table, op.RecordID)
	default:
		return &SyncError{Kind: op.Kind, Table: op.Table, RecordID: op.RecordID,
			Err: fmt.Errorf("unknown operation kind %q", op.Kind)}
	}

	if err != nil {
		return &SyncError{Kind: op.Kind, Table: op.Table, RecordID: op.RecordID, Err: err}
	}
	if status < 200 || status > 299 {
		return &SyncError{Kind: op.Kind, Table: op.Table, RecordID: op.RecordID, StatusCode: status}
	}
	return nil
}

// FetchProjects implements Syncer.FetchProjects.
func (e *engine) FetchProjects(ctx context.Context) ([]*project.Project, error) {
	return e.client.ListProjects(ctx)
}

// Pending implements Syncer.Pending.
func (e *engine) Pending() int {
	return e.queue.Len()
}
