package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storesync-api/pkg/uid"
)

// Named queues. Pipeline stages talk to each other only by enqueueing onto
// these; jobs share no memory.
const (
	QueueFetch      = "product-fetch"
	QueueBulkUpdate = "bulk-update"
)

// Default retry budget for a job when the producer does not override it.
const DefaultMaxAttempts = 3

// retryBackoff returns the delay before retry attempt n (1-based).
func retryBackoff(attempt int) time.Duration {
	tiers := []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second}
	if attempt <= 0 {
		return tiers[0]
	}
	if attempt > len(tiers) {
		return tiers[len(tiers)-1]
	}
	return tiers[attempt-1]
}

// Job is the serialized unit of work moved between pipeline stages.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	RunAt       time.Time       `json:"run_at"`
	Timeout     time.Duration   `json:"timeout"`
}

// NewJob builds a job envelope with a serialized payload.
func NewJob(queueName, jobType string, payload interface{}, delay, timeout time.Duration) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("failed to marshal %s payload: %w", jobType, err)
	}
	return Job{
		ID:          uid.New(),
		Queue:       queueName,
		Type:        jobType,
		Payload:     raw,
		MaxAttempts: DefaultMaxAttempts,
		RunAt:       time.Now().Add(delay),
		Timeout:     timeout,
	}, nil
}

// Enqueuer is the producer side of the queue. Pipeline components depend on
// this narrow interface so tests can substitute a recording fake.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Queue is the full backend contract: delayed enqueue plus due-job dequeue.
type Queue interface {
	Enqueuer

	// Dequeue pops the next due job from the named queue. Returns (nil, nil)
	// when nothing is due.
	Dequeue(ctx context.Context, queueName string) (*Job, error)

	// Depth returns how many jobs (due or scheduled) sit on the named queue.
	Depth(ctx context.Context, queueName string) (int64, error)

	// Close releases backend resources.
	Close() error
}
