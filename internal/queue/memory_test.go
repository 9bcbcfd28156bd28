package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("due jobs pop in RunAt order", func(t *testing.T) {
		q := NewMemoryQueue()
		now := time.Now()

		late, err := NewJob("q", "t", map[string]string{"n": "late"}, 0, 0)
		require.NoError(t, err)
		late.RunAt = now.Add(-time.Second)

		early, err := NewJob("q", "t", map[string]string{"n": "early"}, 0, 0)
		require.NoError(t, err)
		early.RunAt = now.Add(-time.Minute)

		require.NoError(t, q.Enqueue(ctx, late))
		require.NoError(t, q.Enqueue(ctx, early))

		first, err := q.Dequeue(ctx, "q")
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.Equal(t, early.ID, first.ID)

		second, err := q.Dequeue(ctx, "q")
		require.NoError(t, err)
		require.NotNil(t, second)
		assert.Equal(t, late.ID, second.ID)
	})

	t.Run("delayed job is not due yet", func(t *testing.T) {
		q := NewMemoryQueue()

		job, err := NewJob("q", "t", nil, time.Hour, 0)
		require.NoError(t, err)
		require.NoError(t, q.Enqueue(ctx, job))

		got, err := q.Dequeue(ctx, "q")
		require.NoError(t, err)
		assert.Nil(t, got)

		depth, err := q.Depth(ctx, "q")
		require.NoError(t, err)
		assert.Equal(t, int64(1), depth)
	})

	t.Run("empty queue returns nil nil", func(t *testing.T) {
		q := NewMemoryQueue()
		got, err := q.Dequeue(ctx, "q")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("queues are independent", func(t *testing.T) {
		q := NewMemoryQueue()

		job, err := NewJob(QueueFetch, "t", nil, 0, 0)
		require.NoError(t, err)
		job.RunAt = time.Now().Add(-time.Second)
		require.NoError(t, q.Enqueue(ctx, job))

		got, err := q.Dequeue(ctx, QueueBulkUpdate)
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = q.Dequeue(ctx, QueueFetch)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, 10*time.Second, retryBackoff(1))
	assert.Equal(t, 30*time.Second, retryBackoff(2))
	assert.Equal(t, 60*time.Second, retryBackoff(3))
	// Past the last tier, stays at the ceiling.
	assert.Equal(t, 60*time.Second, retryBackoff(7))
}

func TestNewJob(t *testing.T) {
	job, err := NewJob("q", "work", map[string]int{"x": 1}, 2*time.Second, time.Minute)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "q", job.Queue)
	assert.Equal(t, "work", job.Type)
	assert.Equal(t, DefaultMaxAttempts, job.MaxAttempts)
	assert.Equal(t, time.Minute, job.Timeout)
	assert.JSONEq(t, `{"x":1}`, string(job.Payload))
	assert.WithinDuration(t, time.Now().Add(2*time.Second), job.RunAt, time.Second)

	_, err = NewJob("q", "bad", func() {}, 0, 0)
	assert.Error(t, err)
}
