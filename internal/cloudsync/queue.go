package cloudsync

import (
	"sync"
	"time"
)

// DefaultQueueLimit bounds the in-process queue. The limit with a
// reject policy makes backpressure explicit instead of letting memory
// grow without bound.
const DefaultQueueLimit = 1024

// Queue is the FIFO staging buffer for pending remote operations.
// One queue exists per store instance. All methods are safe for
// concurrent use; enqueue never blocks on network activity.
type Queue struct {
	mu    sync.Mutex
	ops   []Operation
	limit int
}

// NewQueue creates a queue. limit <= 0 uses DefaultQueueLimit.
func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	return &Queue{limit: limit}
}

// Enqueue stages an operation at the back of the queue. Returns
// ErrQueueFull when the bound is reached; the operation is not dropped
// silently.
func (q *Queue) Enqueue(op Operation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) >= q.limit {
		return ErrQueueFull
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = time.Now().UTC()
	}
	q.ops = append(q.ops, op)
	return nil
}

// DrainAll atomically swaps the buffer for an empty one and returns the
// prior contents in enqueue order. Operations enqueued concurrently
// with a drain land in the fresh buffer: never lost, never duplicated
// into the returned batch, and no caller observes a partially drained
// queue.
func (q *Queue) DrainAll() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.ops
	q.ops = nil
	return ops
}

// Len returns the number of staged operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}
