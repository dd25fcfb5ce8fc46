package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kandil-code/kandil/internal/store"
)

// Defaults is the caller's currently active AI configuration, used to
// seed newly registered projects. Reading and applying it is the
// caller's concern; the registry only copies it into new rows.
type Defaults struct {
	Provider string
	Model    string
}

// Registry provides CRUD over project records.
// All writes serialize through the store's single connection handle.
type Registry struct {
	store *store.Store
}

// NewRegistry creates a registry backed by an open store.
func NewRegistry(s *store.Store) *Registry {
	return &Registry{store: s}
}

const projectColumns = `id, name, root_path, ai_provider, ai_model, last_opened, memory_enabled, created_at`

// GetOrCreate returns the project for a workspace root, registering it
// on first access.
//
// The ID is a deterministic function of the canonical path, so this is a
// single insert-or-update: an existing row gets its last_opened bumped,
// a new row is seeded from the caller's active AI configuration. There
// is no insert-then-fail-on-duplicate window.
func (r *Registry) GetOrCreate(ctx context.Context, rootPath string, defaults Defaults) (*Project, error) {
	canonical, err := CanonicalPath(rootPath)
	if err != nil {
		return nil, err
	}
	id, err := ID(canonical)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := `
	INSERT INTO projects (id, name, root_path, ai_provider, ai_model, last_opened, memory_enabled, created_at)
	VALUES (?, ?, ?, ?, ?, ?, 1, ?)
	ON CONFLICT(root_path) DO UPDATE SET
		last_opened = excluded.last_opened
	`
	_, err = r.store.DB().ExecContext(ctx, query,
		id,
		DefaultName(canonical),
		canonical,
		defaults.Provider,
		defaults.Model,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register project %s: %w", canonical, err)
	}

	return r.Get(ctx, id)
}

// Get retrieves a single project by ID.
// Returns ErrNotFound if the project does not exist.
func (r *Registry) Get(ctx context.Context, id string) (*Project, error) {
	row := r.store.DB().QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)

	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	return p, nil
}

// List returns all projects ordered by last_opened descending.
// Projects never opened sort after all others.
func (r *Registry) List(ctx context.Context) ([]*Project, error) {
	rows, err := r.store.DB().QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		ORDER BY last_opened IS NULL ASC, last_opened DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	return scanProjects(rows)
}

// SyncCandidates returns the projects eligible for remote sync: every
// row that still has memory enabled. Soft-deleted projects stay
// queryable by ID but drop out of this set.
func (r *Registry) SyncCandidates(ctx context.Context) ([]*Project, error) {
	rows, err := r.store.DB().QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE memory_enabled = 1
		ORDER BY last_opened IS NULL ASC, last_opened DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync candidates: %w", err)
	}
	defer rows.Close()

	return scanProjects(rows)
}

// Switch resolves the configuration triple for a target project and
// records the access on its row.
//
// The triple is returned for the caller to apply; the registry itself
// does not mutate process state (working directory, active provider).
// Returns ErrNotFound, with no side effect, if the project is absent.
func (r *Registry) Switch(ctx context.Context, id string) (provider, model, rootPath string, err error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return "", "", "", err
	}

	now := time.Now().UTC()
	_, err = r.store.DB().ExecContext(ctx,
		`UPDATE projects SET last_opened = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano), id)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to record switch to %s: %w", id, err)
	}

	return p.AIProvider, p.AIModel, p.RootPath, nil
}

// SoftDelete disables memory for a project. The row remains queryable
// by ID; projects are never physically deleted.
func (r *Registry) SoftDelete(ctx context.Context, id string) error {
	res, err := r.store.DB().ExecContext(ctx,
		`UPDATE projects SET memory_enabled = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete project %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to soft-delete project %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var lastOpened sql.NullString
	var createdAt string
	var memoryEnabled int

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.RootPath,
		&p.AIProvider,
		&p.AIModel,
		&lastOpened,
		&memoryEnabled,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	p.MemoryEnabled = memoryEnabled != 0
	p.LastOpened = nullStringToTime(lastOpened)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		p.CreatedAt = t
	}

	return &p, nil
}

func scanProjects(rows *sql.Rows) ([]*Project, error) {
	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
