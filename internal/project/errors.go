package project

import "errors"

// ErrNotFound is returned when a referenced project does not exist.
// Recoverable; it signals a caller error, not a broken store.
var ErrNotFound = errors.New("project not found")
