// Package daemon provides the background sync trigger.
//
// The daemon:
//  1. Watches the local store file for writes (any process, via the
//     WAL sidecar files)
//  2. Debounces write bursts into a single sync pass
//  3. Runs a periodic pass regardless, so retry backoff drains
//  4. Handles graceful shutdown
//
// Sync passes are best-effort: failures are logged and left on the
// queue for the next pass, never propagated into local operations.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kandil-code/kandil/internal/cloudsync"
)

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often a pass runs even without store writes.
	// Backed-off retries drain on this cadence.
	SyncInterval time.Duration

	// DebounceInterval is how long to wait after the last observed
	// write before syncing. This batches rapid updates together.
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:     5 * time.Minute,
		DebounceInterval: 2 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon watches the store and drives sync passes.
type Daemon struct {
	syncer    cloudsync.Syncer
	storePath string
	config    *Config

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	dirtyAt time.Time // last observed write; zero when clean

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon with default configuration.
func New(syncer cloudsync.Syncer, storePath string) (*Daemon, error) {
	return NewWithConfig(syncer, storePath, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(syncer cloudsync.Syncer, storePath string, config *Config) (*Daemon, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if storePath == "" {
		return nil, fmt.Errorf("storePath cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		syncer:    syncer,
		storePath: storePath,
		config:    config,
		watcher:   watcher,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// An initial pass runs immediately, then the daemon reacts to store
// writes (debounced) and to the periodic interval. This blocks until
// ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	// Initial pass. Failures are reported, not fatal; the queue keeps
	// the work for the next pass.
	d.runPass("startup")

	// Watch the store's directory: SQLite swaps WAL sidecar files in
	// and out, so watching the file itself misses writes.
	if err := d.watcher.Add(filepath.Dir(d.storePath)); err != nil {
		return fmt.Errorf("failed to watch store directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.storePath)

	d.wg.Add(3)
	go d.watchFileEvents()
	go d.processDebounce()
	go d.periodicSync()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchFileEvents marks the store dirty on relevant writes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !d.isStoreFile(event.Name) {
				continue
			}
			d.markDirty()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// isStoreFile matches the database file and its WAL sidecars
// (kandil.db, kandil.db-wal, kandil.db-shm).
func (d *Daemon) isStoreFile(path string) bool {
	return strings.HasPrefix(filepath.Base(path), filepath.Base(d.storePath))
}

func (d *Daemon) markDirty() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirtyAt = time.Now()
}

// processDebounce runs a pass once writes have settled.
func (d *Daemon) processDebounce() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.mu.Lock()
			due := !d.dirtyAt.IsZero() && time.Since(d.dirtyAt) >= d.config.DebounceInterval
			if due {
				d.dirtyAt = time.Time{}
			}
			d.mu.Unlock()

			if due {
				d.runPass("store write")
			}
		}
	}
}

// periodicSync runs a pass on the fixed interval.
func (d *Daemon) periodicSync() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.runPass("interval")
		}
	}
}

// runPass drives one best-effort sync of all candidates.
func (d *Daemon) runPass(reason string) {
	d.config.Logger.Printf("Sync pass (%s)", reason)
	if err := d.syncer.SyncAll(d.ctx); err != nil {
		d.config.Logger.Printf("Sync pass incomplete: %v", err)
	}
}
