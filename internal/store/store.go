// Package store provides the local SQLite store shared by the project
// registry and the memory log.
//
// The database runs in embedded mode with WAL journaling so readers are
// never blocked by the single writer. All mutating callers serialize
// through the one *sql.DB handle returned by Open.
//
// Layout:
//   - Database file: <data-dir>/kandil.db
//   - Tables: projects, memory, schema_migrations
//   - WAL mode: concurrent readers during writes
//
// Open applies any pending schema migrations before returning; a store
// whose migrations cannot complete is unusable and Open fails.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection for the local kandil database.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the database at the specified path.
//
// The parent directory is created if missing. The schema is migrated to
// the latest version before Open returns, so callers can query
// immediately. Failures to open or ping the file wrap ErrUnavailable;
// migration failures wrap ErrMigration.
//
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	return OpenContext(context.Background(), path)
}

// OpenContext opens the database with context support.
func OpenContext(ctx context.Context, path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create data directory: %v", ErrUnavailable, err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrUnavailable, err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", ErrUnavailable, err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn: conn,
		path: path,
	}

	// WAL keeps readers unblocked while a write is in flight.
	if _, err := s.conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: failed to enable WAL mode: %v", ErrUnavailable, err)
	}

	if _, err := s.conn.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: failed to set busy timeout: %v", ErrUnavailable, err)
	}

	if _, err := s.conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: failed to enable foreign keys: %v", ErrUnavailable, err)
	}

	if err := s.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// DB returns the underlying sql.DB connection.
// The registry and memory log build their queries on this handle.
func (s *Store) DB() *sql.DB {
	return s.conn
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}
