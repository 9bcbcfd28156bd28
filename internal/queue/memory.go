package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryQueue is an in-memory implementation of Queue.
// Use this for development/testing or single-instance deployments.
type MemoryQueue struct {
	mu     sync.Mutex
	queues map[string][]Job
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		queues: make(map[string][]Job),
	}
}

// Enqueue schedules a job; jobs are kept ordered by RunAt.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := append(q.queues[job.Queue], job)
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].RunAt.Before(jobs[j].RunAt)
	})
	q.queues[job.Queue] = jobs
	return nil
}

// Dequeue pops the earliest due job from the named queue.
func (q *MemoryQueue) Dequeue(ctx context.Context, queueName string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := q.queues[queueName]
	if len(jobs) == 0 || jobs[0].RunAt.After(time.Now()) {
		return nil, nil
	}

	job := jobs[0]
	q.queues[queueName] = jobs[1:]
	return &job, nil
}

// Depth returns how many jobs sit on the named queue.
func (q *MemoryQueue) Depth(ctx context.Context, queueName string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return int64(len(q.queues[queueName])), nil
}

// Close is a no-op for the memory backend.
func (q *MemoryQueue) Close() error {
	return nil
}

var _ Queue = (*MemoryQueue)(nil)
