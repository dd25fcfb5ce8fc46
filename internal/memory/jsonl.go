package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// ExportJSONL writes records as one JSON object per line, oldest first,
// for backup or migration to another machine. Pair with ImportJSONL.
func ExportJSONL(w io.Writer, records []*Record) error {
	enc := json.NewEncoder(w)
	// Histories come out of All() newest-first; the file reads better
	// chronologically.
	for i := len(records) - 1; i >= 0; i-- {
		if err := enc.Encode(records[i]); err != nil {
			return fmt.Errorf("failed to encode record %d: %w", records[i].ID, err)
		}
	}
	return nil
}

// ImportJSONL reads a JSONL history and inserts the records for the
// given project, preserving their original timestamps and session IDs.
// The whole import is one transaction, pruned once at the end, so the
// retention bound holds for observers after commit.
//
// Returns the number of records imported. Blank lines are skipped;
// malformed lines abort the import.
func (l *Log) ImportJSONL(ctx context.Context, projectID string, r io.Reader) (int, error) {
	tx, err := l.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	imported := 0
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return 0, fmt.Errorf("line %d: invalid record: %w", line, err)
		}
		if !rec.Role.Valid() {
			return 0, fmt.Errorf("line %d: invalid role %q", line, rec.Role)
		}

		sessionID := rec.SessionID
		if sessionID == "" {
			sessionID = l.sessionID
		}
		timestamp := rec.Timestamp
		if timestamp.IsZero() {
			timestamp = time.Now().UTC()
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO memory (project_id, session_id, role, content, timestamp, tokens_used)
			VALUES (?, ?, ?, ?, ?, ?)`,
			projectID,
			sessionID,
			string(rec.Role),
			rec.Content,
			timestamp.UTC().Format(time.RFC3339Nano),
			tokensToNull(rec.TokensUsed),
		)
		if err != nil {
			return 0, fmt.Errorf("line %d: failed to insert record: %w", line, err)
		}
		imported++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read import stream: %w", err)
	}

	if err := pruneTx(ctx, tx, projectID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return imported, nil
}
