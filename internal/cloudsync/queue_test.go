package cloudsync

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePreservesEnqueueOrder(t *testing.T) {
	q := NewQueue(0)

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(Operation{
			Kind:     KindUpsert,
			Table:    "projects",
			RecordID: fmt.Sprintf("rec-%d", i),
		}))
	}

	ops := q.DrainAll()
	require.Len(t, ops, 10)
	for i, op := range ops {
		assert.Equal(t, fmt.Sprintf("rec-%d", i), op.RecordID)
		assert.False(t, op.EnqueuedAt.IsZero())
	}

	assert.Zero(t, q.Len())
	assert.Empty(t, q.DrainAll())
}

func TestQueueBoundRejects(t *testing.T) {
	q := NewQueue(2)

	require.NoError(t, q.Enqueue(Operation{Kind: KindUpsert, RecordID: "a"}))
	require.NoError(t, q.Enqueue(Operation{Kind: KindUpsert, RecordID: "b"}))
	assert.ErrorIs(t, q.Enqueue(Operation{Kind: KindUpsert, RecordID: "c"}), ErrQueueFull)

	// Rejected operations are not staged.
	assert.Equal(t, 2, q.Len())
}

func TestQueueConcurrentEnqueueDuringDrain(t *testing.T) {
	q := NewQueue(0)

	const writers = 8
	const perWriter = 100

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = q.Enqueue(Operation{
					Kind:     KindUpsert,
					Table:    "projects",
					RecordID: fmt.Sprintf("w%d-%d", w, i),
				})
			}
		}(w)
	}

	// Drain concurrently with the writers; collect every batch.
	seen := make(map[string]int)
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	collect := func() {
		for _, op := range q.DrainAll() {
			seen[op.RecordID]++
		}
	}
	for {
		select {
		case <-done:
			collect()
			// One final drain in case a writer raced the last collect.
			collect()
			// Every operation appears exactly once: none lost, none
			// duplicated across batches.
			require.Len(t, seen, writers*perWriter)
			for id, n := range seen {
				assert.Equal(t, 1, n, "operation %s drained %d times", id, n)
			}
			return
		default:
			collect()
		}
	}
}
