package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// HandlerFunc processes one job. The context carries the job's hard timeout;
// a handler error counts against the job's retry budget.
type HandlerFunc func(ctx context.Context, job Job) error

// DeadLetterFunc receives a job whose retries are exhausted.
type DeadLetterFunc func(ctx context.Context, job Job, jobErr error)

const defaultJobTimeout = 5 * time.Minute

// WorkerPool consumes named queues with a fixed number of workers each.
// Jobs execute as isolated units: a failing handler triggers a delayed
// re-enqueue with tiered backoff, and exhausted jobs go to the dead-letter
// hook instead of being lost.
type WorkerPool struct {
	queue        Queue
	pollInterval time.Duration
	workers      int
	deadLetter   DeadLetterFunc

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	queues   []string

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// WorkerPoolConfig holds configuration for the worker pool.
type WorkerPoolConfig struct {
	Queue           Queue
	Queues          []string
	WorkersPerQueue int
	PollInterval    time.Duration
	DeadLetter      DeadLetterFunc
}

// NewWorkerPool creates a worker pool for the given named queues.
func NewWorkerPool(cfg WorkerPoolConfig) *WorkerPool {
	if cfg.WorkersPerQueue <= 0 {
		cfg.WorkersPerQueue = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &WorkerPool{
		queue:        cfg.Queue,
		pollInterval: cfg.PollInterval,
		workers:      cfg.WorkersPerQueue,
		deadLetter:   cfg.DeadLetter,
		handlers:     make(map[string]HandlerFunc),
		queues:       cfg.Queues,
		stopCh:       make(chan struct{}),
	}
}

// Register binds a job type to its handler. Must be called before Start.
func (p *WorkerPool) Register(jobType string, h HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[jobType] = h
}

// Start launches the workers.
func (p *WorkerPool) Start() {
	for _, queueName := range p.queues {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.run(queueName, i)
		}
	}
	log.Printf("[WorkerPool] Started - queues:%v workers_per_queue:%d poll:%v",
		p.queues, p.workers, p.pollInterval)
}

// Stop signals all workers and waits for in-flight jobs to finish.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
	log.Printf("[WorkerPool] Stopped")
}

func (p *WorkerPool) run(queueName string, worker int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.drain(queueName)
		}
	}
}

// drain processes due jobs until the queue is momentarily empty.
func (p *WorkerPool) drain(queueName string) {
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		dequeueCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		job, err := p.queue.Dequeue(dequeueCtx, queueName)
		cancel()
		if err != nil {
			log.Printf("[WorkerPool] Dequeue error on %s: %v", queueName, err)
			return
		}
		if job == nil {
			return
		}

		p.process(*job)
	}
}

// process runs one job under its hard timeout and applies the retry policy.
func (p *WorkerPool) process(job Job) {
	p.mu.RLock()
	handler, ok := p.handlers[job.Type]
	p.mu.RUnlock()
	if !ok {
		log.Printf("[WorkerPool] No handler for job type %q (id=%s), dropping", job.Type, job.ID)
		return
	}

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	err := p.runHandler(ctx, handler, job)
	cancel()
	if err == nil {
		return
	}

	job.Attempts++
	if job.Attempts < job.MaxAttempts {
		delay := retryBackoff(job.Attempts)
		log.Printf("[WorkerPool] Job %s (%s) attempt %d/%d failed: %v - retrying in %v",
			job.ID, job.Type, job.Attempts, job.MaxAttempts, err, delay)

		job.RunAt = time.Now().Add(delay)
		enqueueCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if enqErr := p.queue.Enqueue(enqueueCtx, job); enqErr != nil {
			log.Printf("[WorkerPool] Failed to re-enqueue job %s: %v", job.ID, enqErr)
			p.toDeadLetter(job, err)
		}
		return
	}

	log.Printf("[WorkerPool] Job %s (%s) permanently failed after %d attempts: %v",
		job.ID, job.Type, job.Attempts, err)
	p.toDeadLetter(job, err)
}

// runHandler isolates handler panics so one bad job never kills a worker.
func (p *WorkerPool) runHandler(ctx context.Context, handler HandlerFunc, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in job %s (%s): %v", job.ID, job.Type, rec)
		}
	}()
	return handler(ctx, job)
}

func (p *WorkerPool) toDeadLetter(job Job, jobErr error) {
	if p.deadLetter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p.deadLetter(ctx, job, jobErr)
}
