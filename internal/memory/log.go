// Package memory provides the append-only interaction history kept per
// project. Records accumulate as the user and the assistant exchange
// messages; a retention bound keeps each project's history from growing
// without limit.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kandil-code/kandil/internal/store"
)

// RetentionLimit is the maximum number of records retained per project.
// Appends beyond the limit prune the oldest records.
const RetentionLimit = 1000

// Role identifies the author of an interaction record.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Record is one interaction in a project's history. The JSON field names
// match the persisted schema so records round-trip through JSONL export.
type Record struct {
	ID         int64      `json:"id"`
	ProjectID  string     `json:"project_id"`
	SessionID  string     `json:"session_id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
	TokensUsed *int64     `json:"tokens_used,omitempty"`
}

// Log appends to and reads a project's interaction history.
//
// A Log carries the session ID for the current process run; every record
// appended through it belongs to that session. All writes serialize
// through the store's single connection handle.
type Log struct {
	store     *store.Store
	sessionID string
}

// NewLog creates a memory log with a fresh session ID.
func NewLog(s *store.Store) *Log {
	return &Log{
		store:     s,
		sessionID: uuid.NewString(),
	}
}

// SessionID returns the session identifier minted for this process run.
func (l *Log) SessionID() string {
	return l.sessionID
}

// Append inserts one interaction record and prunes the project's history
// in the same transaction, so the retention bound holds at every point
// an observer can see.
func (l *Log) Append(ctx context.Context, projectID string, role Role, content string, tokensUsed *int64) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}

	tx, err := l.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory (project_id, session_id, role, content, timestamp, tokens_used)
		VALUES (?, ?, ?, ?, ?, ?)`,
		projectID,
		l.sessionID,
		string(role),
		content,
		time.Now().UTC().Format(time.RFC3339Nano),
		tokensToNull(tokensUsed),
	)
	if err != nil {
		return fmt.Errorf("failed to append memory record: %w", err)
	}

	if err := pruneTx(ctx, tx, projectID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit append: %w", err)
	}
	return nil
}

// Prune discards everything but the newest RetentionLimit records for a
// project. Append already prunes; this exists for maintenance on
// histories written by older builds.
func (l *Log) Prune(ctx context.Context, projectID string) error {
	tx, err := l.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin prune: %w", err)
	}
	defer tx.Rollback()

	if err := pruneTx(ctx, tx, projectID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prune: %w", err)
	}
	return nil
}

// pruneTx removes records older than the retention window inside an
// open transaction. Newest-first order is (timestamp, id) so records
// sharing a timestamp still prune deterministically.
func pruneTx(ctx context.Context, tx *sql.Tx, projectID string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM memory
		WHERE project_id = ?
		  AND id NOT IN (
			SELECT id FROM memory
			WHERE project_id = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		  )`,
		projectID, projectID, RetentionLimit)
	if err != nil {
		return fmt.Errorf("failed to prune memory for %s: %w", projectID, err)
	}
	return nil
}

// RecentContext returns up to limit recent interactions as "role: content"
// lines, oldest first within the window. Read-only.
func (l *Log) RecentContext(ctx context.Context, projectID string, limit int) ([]string, error) {
	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT role, content FROM memory
		WHERE project_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`,
		projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent context: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("failed to scan memory record: %w", err)
		}
		lines = append(lines, role+": "+content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memory records: %w", err)
	}

	// The query walks newest-first; callers want chronological order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}

// All returns a project's full history, newest first.
func (l *Log) All(ctx context.Context, projectID string) ([]*Record, error) {
	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT id, project_id, session_id, role, content, timestamp, tokens_used
		FROM memory
		WHERE project_id = ?
		ORDER BY timestamp DESC, id DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory history: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// CountForProject returns the number of stored records for a project.
func (l *Log) CountForProject(ctx context.Context, projectID string) (int, error) {
	var count int
	err := l.store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memory WHERE project_id = ?`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count memory records: %w", err)
	}
	return count, nil
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		var rec Record
		var role, timestamp string
		var tokens sql.NullInt64

		err := rows.Scan(
			&rec.ID,
			&rec.ProjectID,
			&rec.SessionID,
			&role,
			&rec.Content,
			&timestamp,
			&tokens,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory record: %w", err)
		}

		rec.Role = Role(role)
		if t, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
			rec.Timestamp = t
		}
		if tokens.Valid {
			v := tokens.Int64
			rec.TokensUsed = &v
		}

		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memory records: %w", err)
	}
	return records, nil
}

func tokensToNull(tokens *int64) sql.NullInt64 {
	if tokens == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *tokens, Valid: true}
}
