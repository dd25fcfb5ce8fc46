package store

import "errors"

// Errors returned by the store. Check with errors.Is():
//
//	if errors.Is(err, store.ErrMigration) {
//	    // store is unusable until the schema problem is resolved
//	}
var (
	// ErrUnavailable is returned when the database cannot be opened or
	// created: unwritable path, locked file, or a schema version newer
	// than this binary understands. Fatal to all operations.
	ErrUnavailable = errors.New("local store unavailable")

	// ErrMigration is returned when a schema migration fails. The failed
	// migration is rolled back in full, so the store is never left
	// half-migrated, but it stays unusable until resolved.
	ErrMigration = errors.New("schema migration failed")
)
