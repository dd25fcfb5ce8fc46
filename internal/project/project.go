// Package project provides the workspace registry: durable records of
// every project kandil has been pointed at, keyed by canonical root path.
package project

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"
)

// Project is one registered workspace. The JSON field names match the
// remote projects table so a record can be shipped as a sync payload
// without translation.
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RootPath  string `json:"root_path"`

	// Active AI configuration, seeded from the caller's defaults at
	// creation time.
	AIProvider string `json:"ai_provider"`
	AIModel    string `json:"ai_model"`

	LastOpened    *time.Time `json:"last_opened,omitempty"`
	MemoryEnabled bool       `json:"memory_enabled"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Validate checks required fields before a record is written.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.RootPath == "" {
		return fmt.Errorf("root_path is required")
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return nil
}

// CanonicalPath normalizes a root path to its definitive absolute form.
// Symlinks are resolved when the path exists; a not-yet-created path
// still canonicalizes deterministically through Abs+Clean.
func CanonicalPath(rootPath string) (string, error) {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize %q: %w", rootPath, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to resolve %q: %w", rootPath, err)
	}
	return filepath.Clean(abs), nil
}

// ID derives the stable project identifier for a root path.
//
// The ID is a deterministic function of the canonical path (FNV-1a,
// hex-encoded) so get-or-create is idempotent: the same workspace always
// maps to the same row, with no lookup race between check and insert.
func ID(rootPath string) (string, error) {
	canonical, err := CanonicalPath(rootPath)
	if err != nil {
		return "", err
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(canonical))
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// DefaultName derives a display name for a newly registered workspace.
func DefaultName(canonicalPath string) string {
	name := filepath.Base(canonicalPath)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "workspace"
	}
	return name
}
