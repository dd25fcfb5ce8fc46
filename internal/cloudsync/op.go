package cloudsync

import (
	"encoding/json"
	"time"
)

// Kind is the type of remote operation.
type Kind string

const (
	// KindUpsert sends the payload to the addressed resource.
	KindUpsert Kind = "upsert"

	// KindDelete removes the addressed resource.
	KindDelete Kind = "delete"
)

// Operation is one pending remote call.
type Operation struct {
	Kind     Kind
	Table    string
	RecordID string
	Payload  json.RawMessage

	EnqueuedAt time.Time

	// AttemptCount is how many times this operation has failed so far.
	AttemptCount int

	// NextAttempt gates retries: a pass skips (and re-enqueues) the
	// operation while this is still in the future. Zero means try
	// immediately.
	NextAttempt time.Time
}

const maxBackoff = 5 * time.Minute

// backoff returns the retry delay after the given number of failures:
// 2^n seconds, capped at maxBackoff.
func backoff(attempts int) time.Duration {
	if attempts < 1 {
		return 0
	}
	if attempts > 10 {
		return maxBackoff
	}
	d := time.Second << uint(attempts)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
