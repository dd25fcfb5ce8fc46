package cloudsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandil-code/kandil/internal/project"
)

func mergeProject(id, rootPath string, lastOpened *time.Time, createdAt time.Time) *project.Project {
	return &project.Project{
		ID:            id,
		Name:          id,
		RootPath:      rootPath,
		AIProvider:    "ollama",
		AIModel:       "llama3:70b",
		LastOpened:    lastOpened,
		MemoryEnabled: true,
		CreatedAt:     createdAt,
	}
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestMergeProjectsLastWriteWins(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	staleLocal := mergeProject("p1", "/tmp/one", ts("2026-03-01T00:00:00Z"), created)
	freshRemote := mergeProject("p1", "/tmp/one", ts("2026-04-01T00:00:00Z"), created)
	freshRemote.Name = "renamed remotely"

	onlyLocal := mergeProject("p2", "/tmp/two", ts("2026-02-01T00:00:00Z"), created)
	onlyRemote := mergeProject("p3", "/tmp/three", nil, created)

	merged, err := MergeProjects(
		[]*project.Project{staleLocal, onlyLocal},
		[]*project.Project{freshRemote, onlyRemote},
	)
	require.NoError(t, err)
	require.Len(t, merged, 3)

	// Most recently opened first; the never-opened remote row last.
	assert.Equal(t, "renamed remotely", merged[0].Name)
	assert.Equal(t, "p2", merged[1].ID)
	assert.Equal(t, "p3", merged[2].ID)
}

func TestMergeProjectsLocalWinsWhenRemoteStale(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	local := mergeProject("p1", "/tmp/one", ts("2026-04-01T00:00:00Z"), created)
	remote := mergeProject("p1", "/tmp/one", ts("2026-03-01T00:00:00Z"), created)
	remote.Name = "stale"

	merged, err := MergeProjects([]*project.Project{local}, []*project.Project{remote})
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "p1", merged[0].Name)
}

func TestMergeProjectsConflictSurfaced(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	local := mergeProject("p1", "/tmp/one", nil, created)
	remote := mergeProject("p1", "/home/other/one", nil, created)

	_, err := MergeProjects([]*project.Project{local}, []*project.Project{remote})
	assert.ErrorIs(t, err, ErrConflict)
}
