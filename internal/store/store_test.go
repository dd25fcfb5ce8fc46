package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

// openTestStore creates a store in a temp directory.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "kandil.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestOpenMigratesToLatest(t *testing.T) {
	s := openTestStore(t)

	v, err := s.Version(context.Background())
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("expected schema version %d, got %d", SchemaVersion, v)
	}

	// All three tables must be queryable immediately after Open.
	for _, table := range []string{"projects", "memory", "schema_migrations"} {
		var n int
		if err := s.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Errorf("table %s not queryable: %v", table, err)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kandil.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	s, err = Open(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("failed to count ledger rows: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d ledger rows after reopen, got %d", len(migrations), count)
	}
}

func TestOpenRefusesNewerSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kandil.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// Simulate a store written by a future build.
	_, err = s.DB().Exec(
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		SchemaVersion+1, "from the future", "2099-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("failed to insert future version: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	_, err = Open(dbPath)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for newer schema, got %v", err)
	}
}

func TestOpenUnwritablePath(t *testing.T) {
	// /dev/null is not a directory, so the data dir cannot be created.
	_, err := Open("/dev/null/kandil.db")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for unwritable path, got %v", err)
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	before, err := s.Version(ctx)
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}

	bad := migration{
		version: SchemaVersion + 1,
		name:    "broken",
		sql:     "CREATE TABLE valid (id INTEGER); THIS IS NOT SQL;",
	}
	err = s.applyMigration(ctx, bad)
	if !errors.Is(err, ErrMigration) {
		t.Fatalf("expected ErrMigration, got %v", err)
	}

	// The ledger must not record the failed version, and the partial
	// table from the failed transaction must not exist.
	after, err := s.Version(ctx)
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if after != before {
		t.Errorf("ledger advanced from %d to %d despite failed migration", before, after)
	}

	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM valid").Scan(&n); err == nil {
		t.Error("table from rolled-back migration still exists")
	}
}
