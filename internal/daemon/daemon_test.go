package daemon

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandil-code/kandil/internal/project"
)

// stubSyncer counts passes without touching the network.
type stubSyncer struct {
	syncAllCalls atomic.Int64
}

func (s *stubSyncer) SyncProject(ctx context.Context, p *project.Project) error { return nil }

func (s *stubSyncer) SyncAll(ctx context.Context) error {
	s.syncAllCalls.Add(1)
	return nil
}

func (s *stubSyncer) ProcessQueue(ctx context.Context) error { return nil }

func (s *stubSyncer) FetchProjects(ctx context.Context) ([]*project.Project, error) {
	return nil, nil
}

func (s *stubSyncer) Pending() int { return 0 }

func testConfig() *Config {
	return &Config{
		SyncInterval:     50 * time.Millisecond,
		DebounceInterval: 10 * time.Millisecond,
		Logger:           log.New(io.Discard, "", 0),
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, "/tmp/kandil.db")
	assert.Error(t, err)

	_, err = New(&stubSyncer{}, "")
	assert.Error(t, err)

	d, err := New(&stubSyncer{}, "/tmp/kandil.db")
	require.NoError(t, err)
	require.NoError(t, d.Stop())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 2*time.Second, cfg.DebounceInterval)
	assert.NotNil(t, cfg.Logger)
}

func TestStartRunsInitialPass(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "kandil.db")
	require.NoError(t, os.WriteFile(storePath, []byte("x"), 0o644))

	syncer := &stubSyncer{}
	d, err := NewWithConfig(syncer, storePath, testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	// The startup pass runs before the watcher loop spins up.
	assert.Eventually(t, func() bool {
		return syncer.syncAllCalls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestStoreWriteTriggersDebouncedPass(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "kandil.db")
	require.NoError(t, os.WriteFile(storePath, []byte("x"), 0o644))

	syncer := &stubSyncer{}
	cfg := testConfig()
	cfg.SyncInterval = time.Hour // keep the periodic pass out of the way
	d, err := NewWithConfig(syncer, storePath, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	require.Eventually(t, func() bool {
		return syncer.syncAllCalls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	before := syncer.syncAllCalls.Load()

	// Simulate a WAL write next to the store file.
	require.NoError(t, os.WriteFile(storePath+"-wal", []byte("y"), 0o644))

	assert.Eventually(t, func() bool {
		return syncer.syncAllCalls.Load() > before
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestUnrelatedFileDoesNotTrigger(t *testing.T) {
	d := &Daemon{storePath: "/home/u/.config/kandil/kandil.db"}

	assert.True(t, d.isStoreFile("/home/u/.config/kandil/kandil.db"))
	assert.True(t, d.isStoreFile("/home/u/.config/kandil/kandil.db-wal"))
	assert.True(t, d.isStoreFile("/home/u/.config/kandil/kandil.db-shm"))
	assert.False(t, d.isStoreFile("/home/u/.config/kandil/config.yaml"))
	assert.False(t, d.isStoreFile("/home/u/.config/kandil/daemon.log"))
}

func TestPeriodicPass(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "kandil.db")
	require.NoError(t, os.WriteFile(storePath, []byte("x"), 0o644))

	syncer := &stubSyncer{}
	cfg := testConfig()
	d, err := NewWithConfig(syncer, storePath, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	// Startup pass plus at least one interval tick.
	assert.Eventually(t, func() bool {
		return syncer.syncAllCalls.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
