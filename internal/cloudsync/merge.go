package cloudsync

import (
	"fmt"
	"sort"

	"github.com/kandil-code/kandil/internal/project"
)

// MergeProjects combines a local and a remote project list using
// last-write-wins: for a shared ID the record with the later
// last_opened survives (created_at breaks ties, the local record wins
// an exact tie). The function is pure — callers decide what to do with
// the result.
//
// Two records sharing an ID but naming different root paths are not a
// stale-copy situation but a genuine identity conflict (most likely a
// hash collision across machines); that returns ErrConflict rather
// than guessing.
func MergeProjects(local, remote []*project.Project) ([]*project.Project, error) {
	merged := make(map[string]*project.Project, len(local)+len(remote))
	for _, p := range local {
		merged[p.ID] = p
	}

	for _, r := range remote {
		l, ok := merged[r.ID]
		if !ok {
			merged[r.ID] = r
			continue
		}
		if l.RootPath != r.RootPath {
			return nil, fmt.Errorf("%w: project %s maps to %q locally and %q remotely",
				ErrConflict, r.ID, l.RootPath, r.RootPath)
		}
		if newerThan(r, l) {
			merged[r.ID] = r
		}
	}

	result := make([]*project.Project, 0, len(merged))
	for _, p := range merged {
		result = append(result, p)
	}

	// Same ordering contract as Registry.List: most recently opened
	// first, never-opened rows last.
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch {
		case a.LastOpened == nil && b.LastOpened == nil:
			return a.CreatedAt.After(b.CreatedAt)
		case a.LastOpened == nil:
			return false
		case b.LastOpened == nil:
			return true
		case !a.LastOpened.Equal(*b.LastOpened):
			return a.LastOpened.After(*b.LastOpened)
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
	return result, nil
}

// newerThan reports whether candidate should replace incumbent under
// last-write-wins.
func newerThan(candidate, incumbent *project.Project) bool {
	switch {
	case candidate.LastOpened == nil:
		return false
	case incumbent.LastOpened == nil:
		return true
	case !candidate.LastOpened.Equal(*incumbent.LastOpened):
		return candidate.LastOpened.After(*incumbent.LastOpened)
	default:
		return candidate.CreatedAt.After(incumbent.CreatedAt)
	}
}
