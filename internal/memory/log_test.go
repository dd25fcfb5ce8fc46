package memory

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandil-code/kandil/internal/project"
	"github.com/kandil-code/kandil/internal/store"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "kandil.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	registry := project.NewRegistry(s)
	p, err := registry.GetOrCreate(context.Background(), t.TempDir(),
		project.Defaults{Provider: "ollama", Model: "llama3:70b"})
	require.NoError(t, err)

	return NewLog(s), p.ID
}

func TestAppendAndAll(t *testing.T) {
	log, projectID := newTestLog(t)
	ctx := context.Background()

	tokens := int64(42)
	require.NoError(t, log.Append(ctx, projectID, RoleUser, "how do I open a file?", nil))
	require.NoError(t, log.Append(ctx, projectID, RoleAssistant, "use os.Open", &tokens))

	records, err := log.All(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, RoleAssistant, records[0].Role)
	require.NotNil(t, records[0].TokensUsed)
	assert.Equal(t, int64(42), *records[0].TokensUsed)
	assert.Equal(t, RoleUser, records[1].Role)
	assert.Nil(t, records[1].TokensUsed)

	for _, rec := range records {
		assert.Equal(t, projectID, rec.ProjectID)
		assert.Equal(t, log.SessionID(), rec.SessionID)
		assert.False(t, rec.Timestamp.IsZero())
	}
}

func TestAppendRejectsUnknownRole(t *testing.T) {
	log, projectID := newTestLog(t)

	err := log.Append(context.Background(), projectID, Role("system"), "nope", nil)
	assert.Error(t, err)

	count, err := log.CountForProject(context.Background(), projectID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRetentionBound(t *testing.T) {
	log, projectID := newTestLog(t)
	ctx := context.Background()

	total := RetentionLimit + 25
	for i := 0; i < total; i++ {
		require.NoError(t, log.Append(ctx, projectID, RoleUser, fmt.Sprintf("message %d", i), nil))
	}

	count, err := log.CountForProject(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, RetentionLimit, count)

	// The survivors are the newest records; the earliest ones are gone.
	records, err := log.All(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, records, RetentionLimit)
	assert.Equal(t, fmt.Sprintf("message %d", total-1), records[0].Content)
	assert.Equal(t, fmt.Sprintf("message %d", total-RetentionLimit), records[len(records)-1].Content)
}

func TestRecentContext(t *testing.T) {
	log, projectID := newTestLog(t)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, projectID, RoleUser, "first", nil))
	require.NoError(t, log.Append(ctx, projectID, RoleAssistant, "second", nil))
	require.NoError(t, log.Append(ctx, projectID, RoleUser, "third", nil))

	lines, err := log.RecentContext(ctx, projectID, 2)
	require.NoError(t, err)

	// Bounded, chronological within the window.
	require.Len(t, lines, 2)
	assert.Equal(t, "assistant: second", lines[0])
	assert.Equal(t, "user: third", lines[1])

	// A window wider than the history returns everything, oldest first.
	lines, err = log.RecentContext(ctx, projectID, 10)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "user: first", lines[0])
}

func TestRecentContextScopedToProject(t *testing.T) {
	log, projectID := newTestLog(t)
	ctx := context.Background()

	registry := project.NewRegistry(log.store)
	other, err := registry.GetOrCreate(ctx, t.TempDir(),
		project.Defaults{Provider: "ollama", Model: "llama3:70b"})
	require.NoError(t, err)

	require.NoError(t, log.Append(ctx, projectID, RoleUser, "mine", nil))
	require.NoError(t, log.Append(ctx, other.ID, RoleUser, "theirs", nil))

	lines, err := log.RecentContext(ctx, projectID, 10)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "user: mine", lines[0])
}

func TestJSONLRoundTrip(t *testing.T) {
	log, projectID := newTestLog(t)
	ctx := context.Background()

	tokens := int64(7)
	require.NoError(t, log.Append(ctx, projectID, RoleUser, "ping", nil))
	require.NoError(t, log.Append(ctx, projectID, RoleAssistant, "pong", &tokens))

	records, err := log.All(ctx, projectID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ExportJSONL(&buf, records))

	// Import into a fresh store under a fresh project.
	dest, destProjectID := newTestLog(t)
	n, err := dest.ImportJSONL(ctx, destProjectID, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	imported, err := dest.All(ctx, destProjectID)
	require.NoError(t, err)
	require.Len(t, imported, 2)

	assert.Equal(t, "pong", imported[0].Content)
	require.NotNil(t, imported[0].TokensUsed)
	assert.Equal(t, int64(7), *imported[0].TokensUsed)
	assert.Equal(t, "ping", imported[1].Content)
	// Original session and timestamps survive the round trip.
	assert.Equal(t, log.SessionID(), imported[0].SessionID)
	assert.Equal(t, records[0].Timestamp.UTC(), imported[0].Timestamp.UTC())
}

func TestImportJSONLRejectsMalformedLine(t *testing.T) {
	log, projectID := newTestLog(t)

	input := bytes.NewBufferString(`{"role":"user","content":"ok"}` + "\n" + `not json` + "\n")
	_, err := log.ImportJSONL(context.Background(), projectID, input)
	require.Error(t, err)

	// The failed import leaves nothing behind.
	count, err := log.CountForProject(context.Background(), projectID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
