package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration is one versioned schema step. Migrations run in strict
// version order, each inside its own transaction.
type migration struct {
	version int
	name    string
	sql     string
}

// migrations is the ordered schema history. Append only; never edit an
// entry that has shipped.
var migrations = []migration{
	{
		version: 1,
		name:    "initial projects and memory tables",
		sql: `
		CREATE TABLE projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			root_path TEXT NOT NULL UNIQUE,
			ai_provider TEXT NOT NULL,
			ai_model TEXT NOT NULL,
			last_opened TEXT,
			memory_enabled INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		);

		CREATE TABLE memory (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			FOREIGN KEY (project_id) REFERENCES projects(id)
		);

		CREATE INDEX idx_memory_project ON memory(project_id);
		`,
	},
	{
		version: 2,
		name:    "token accounting on memory records",
		sql: `
		ALTER TABLE memory ADD COLUMN tokens_used INTEGER;
		CREATE INDEX idx_memory_project_time ON memory(project_id, timestamp);
		`,
	},
	{
		version: 3,
		name:    "recency index for project listing",
		sql: `
		CREATE INDEX idx_projects_last_opened ON projects(last_opened);
		`,
	},
}

// SchemaVersion is the newest schema version this binary understands.
var SchemaVersion = migrations[len(migrations)-1].version

// migrate brings the schema up to SchemaVersion.
//
// Each pending migration runs in its own transaction and is recorded in
// the schema_migrations ledger together with its name and timestamp. A
// failure rolls back that migration completely and aborts Open. A store
// already migrated past SchemaVersion was written by a newer binary and
// is refused rather than risk corrupting it.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("%w: create ledger: %v", ErrMigration, err)
	}

	current, err := s.Version(ctx)
	if err != nil {
		return fmt.Errorf("%w: read ledger: %v", ErrMigration, err)
	}

	if current > SchemaVersion {
		return fmt.Errorf("%w: store is at schema version %d, this build understands up to %d",
			ErrUnavailable, current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
	}

	return nil
}

// applyMigration runs one migration and its ledger entry atomically.
func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin v%d: %v", ErrMigration, m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("%w: apply v%d (%s): %v", ErrMigration, m.version, m.name, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.version, m.name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("%w: record v%d: %v", ErrMigration, m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit v%d: %v", ErrMigration, m.version, err)
	}

	return nil
}

// Version returns the highest migration version recorded in the ledger,
// or 0 for a fresh store.
func (s *Store) Version(ctx context.Context) (int, error) {
	var v sql.NullInt64
	err := s.conn.QueryRowContext(ctx,
		`SELECT MAX(version) FROM schema_migrations`).Scan(&v)
	if err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}
