package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainUntil polls the queue through the pool's drain path until done returns
// true or the deadline passes.
func drainUntil(t *testing.T, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !done() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorkerPool_ProcessesJobs(t *testing.T) {
	q := NewMemoryQueue()
	pool := NewWorkerPool(WorkerPoolConfig{
		Queue:           q,
		Queues:          []string{"q"},
		WorkersPerQueue: 2,
		PollInterval:    10 * time.Millisecond,
	})

	var mu sync.Mutex
	var handled []string
	pool.Register("work", func(ctx context.Context, job Job) error {
		mu.Lock()
		handled = append(handled, job.ID)
		mu.Unlock()
		return nil
	})

	pool.Start()
	defer pool.Stop()

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := NewJob("q", "work", nil, 0, time.Second)
		require.NoError(t, err)
		ids = append(ids, job.ID)
		require.NoError(t, q.Enqueue(context.Background(), job))
	}

	drainUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 3
	})

	mu.Lock()
	assert.ElementsMatch(t, ids, handled)
	mu.Unlock()
}

func TestWorkerPool_RetriesWithBackoff(t *testing.T) {
	q := NewMemoryQueue()
	pool := NewWorkerPool(WorkerPoolConfig{
		Queue:           q,
		Queues:          []string{"q"},
		WorkersPerQueue: 1,
		PollInterval:    10 * time.Millisecond,
	})

	var mu sync.Mutex
	attempts := 0
	pool.Register("flaky", func(ctx context.Context, job Job) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("transient")
	})

	pool.Start()
	defer pool.Stop()

	job, err := NewJob("q", "flaky", nil, 0, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), job))

	// First failure re-enqueues with a 10s backoff; only one attempt runs
	// inside this window.
	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, attempts)
	mu.Unlock()

	depth, err := q.Depth(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestWorkerPool_DeadLettersExhaustedJobs(t *testing.T) {
	q := NewMemoryQueue()

	var mu sync.Mutex
	var dead []Job
	var deadErr error
	pool := NewWorkerPool(WorkerPoolConfig{
		Queue:           q,
		Queues:          []string{"q"},
		WorkersPerQueue: 1,
		PollInterval:    10 * time.Millisecond,
		DeadLetter: func(ctx context.Context, job Job, jobErr error) {
			mu.Lock()
			dead = append(dead, job)
			deadErr = jobErr
			mu.Unlock()
		},
	})

	pool.Register("doomed", func(ctx context.Context, job Job) error {
		return errors.New("always fails")
	})

	pool.Start()
	defer pool.Stop()

	job, err := NewJob("q", "doomed", nil, 0, time.Second)
	require.NoError(t, err)
	job.Attempts = DefaultMaxAttempts - 1 // on its final attempt
	require.NoError(t, q.Enqueue(context.Background(), job))

	drainUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dead) == 1
	})

	mu.Lock()
	assert.Equal(t, job.ID, dead[0].ID)
	assert.Equal(t, DefaultMaxAttempts, dead[0].Attempts)
	assert.EqualError(t, deadErr, "always fails")
	mu.Unlock()
}

func TestWorkerPool_RecoversFromPanics(t *testing.T) {
	q := NewMemoryQueue()

	var mu sync.Mutex
	var dead []Job
	pool := NewWorkerPool(WorkerPoolConfig{
		Queue:           q,
		Queues:          []string{"q"},
		WorkersPerQueue: 1,
		PollInterval:    10 * time.Millisecond,
		DeadLetter: func(ctx context.Context, job Job, jobErr error) {
			mu.Lock()
			dead = append(dead, job)
			mu.Unlock()
		},
	})

	pool.Register("panics", func(ctx context.Context, job Job) error {
		panic("boom")
	})
	pool.Register("ok", func(ctx context.Context, job Job) error {
		return nil
	})

	pool.Start()
	defer pool.Stop()

	bad, err := NewJob("q", "panics", nil, 0, time.Second)
	require.NoError(t, err)
	bad.Attempts = DefaultMaxAttempts - 1
	require.NoError(t, q.Enqueue(context.Background(), bad))

	// The worker must survive the panic and keep consuming.
	drainUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dead) == 1
	})

	good, err := NewJob("q", "ok", nil, 0, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), good))

	drainUntil(t, func() bool {
		depth, err := q.Depth(context.Background(), "q")
		require.NoError(t, err)
		return depth == 0
	})
}

func TestWorkerPool_UnknownTypeIsDropped(t *testing.T) {
	q := NewMemoryQueue()
	pool := NewWorkerPool(WorkerPoolConfig{
		Queue:           q,
		Queues:          []string{"q"},
		WorkersPerQueue: 1,
		PollInterval:    10 * time.Millisecond,
	})

	pool.Start()
	defer pool.Stop()

	job, err := NewJob("q", "mystery", nil, 0, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), job))

	drainUntil(t, func() bool {
		depth, err := q.Depth(context.Background(), "q")
		require.NoError(t, err)
		return depth == 0
	})
}
