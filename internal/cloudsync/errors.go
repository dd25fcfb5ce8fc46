package cloudsync

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue's bound is
	// reached. The operation is rejected, not dropped silently; the
	// caller decides whether to retry after a sync pass frees space.
	ErrQueueFull = errors.New("sync queue full")

	// ErrConflict is returned when a remote and a local record with the
	// same identity disagree in a way last-write-wins cannot resolve.
	// There is no merge logic behind it yet; it exists so the decision
	// point is surfaced instead of swallowed.
	ErrConflict = errors.New("sync conflict resolution not implemented")
)

// SyncError reports a single failed remote operation. The failure is
// non-fatal to local state: the mutation that produced the operation is
// never rolled back.
type SyncError struct {
	Kind     Kind
	Table    string
	RecordID string

	// StatusCode is the HTTP status of a non-2xx response, or 0 when
	// the request itself failed (network error, timeout).
	StatusCode int

	Err error
}

func (e *SyncError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sync %s %s/%s failed: remote returned %d",
			e.Kind, e.Table, e.RecordID, e.StatusCode)
	}
	return fmt.Sprintf("sync %s %s/%s failed: %v", e.Kind, e.Table, e.RecordID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
