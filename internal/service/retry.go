package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"storesync-api/internal/queue"
	"storesync-api/internal/repository"
)

// RetryConfig holds configuration for the dead-letter retry scheduler.
type RetryConfig struct {
	// Interval is how often dead-lettered jobs are requeued.
	// Default: 10 minutes
	Interval time.Duration

	// BatchSize bounds how many rows one cycle requeues.
	// Default: 50
	BatchSize int

	// MaxRequeues caps how many times a row is given back to the queue
	// before it is abandoned. Default: 3
	MaxRequeues int
}

// DefaultRetryConfig returns default retry scheduler configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Interval:    10 * time.Minute,
		BatchSize:   50,
		MaxRequeues: 3,
	}
}

// RetryScheduler periodically drains the failed_jobs dead-letter table back
// onto the queues. Rows that keep failing are eventually abandoned so a
// poisoned payload cannot circulate forever.
type RetryScheduler struct {
	repo      repository.FailedJobRepository
	queue     queue.Enqueuer
	config    RetryConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewRetryScheduler creates a new retry scheduler.
func NewRetryScheduler(repo repository.FailedJobRepository, q queue.Enqueuer, config RetryConfig) *RetryScheduler {
	if config.Interval == 0 {
		config.Interval = 10 * time.Minute
	}
	if config.BatchSize == 0 {
		config.BatchSize = 50
	}
	if config.MaxRequeues == 0 {
		config.MaxRequeues = 3
	}

	return &RetryScheduler{
		repo:   repo,
		queue:  q,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start begins the retry scheduler.
func (s *RetryScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	log.Printf("[RetryScheduler] Started - Interval: %v, Batch: %d, MaxRequeues: %d",
		s.config.Interval, s.config.BatchSize, s.config.MaxRequeues)

	go s.run()
}

// run is the main retry loop.
func (s *RetryScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runCycle()
		case <-s.stopCh:
			log.Printf("[RetryScheduler] Stopped")
			return
		}
	}
}

// runCycle requeues one batch of dead-lettered jobs.
func (s *RetryScheduler) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	requeued, abandoned, err := s.RunNow(ctx)
	if err != nil {
		log.Printf("[RetryScheduler] Error during retry cycle: %v", err)
		return
	}

	if requeued > 0 || abandoned > 0 {
		log.Printf("[RetryScheduler] Requeued %d jobs, abandoned %d", requeued, abandoned)
	}
}

// RunNow performs one requeue pass immediately and returns
// (requeued, abandoned) counts.
func (s *RetryScheduler) RunNow(ctx context.Context) (int, int, error) {
	rows, err := s.repo.ListRequeueable(ctx, s.config.BatchSize, s.config.MaxRequeues)
	if err != nil {
		return 0, 0, err
	}

	requeued, abandoned := 0, 0
	for _, row := range rows {
		job := queue.Job{
			ID:          row.JobID,
			Queue:       row.Queue,
			Type:        row.Type,
			Payload:     json.RawMessage(row.Payload),
			MaxAttempts: queue.DefaultMaxAttempts,
			RunAt:       time.Now(),
		}

		if err := s.queue.Enqueue(ctx, job); err != nil {
			log.Printf("[RetryScheduler] Failed to requeue job %s: %v", row.JobID, err)
			continue
		}

		if row.RequeueCount+1 >= s.config.MaxRequeues {
			// Last chance used up: this was the final requeue.
			if err := s.repo.MarkAbandoned(ctx, row.ID); err != nil {
				log.Printf("[RetryScheduler] Failed to mark job %d abandoned: %v", row.ID, err)
			}
			abandoned++
		}
		if err := s.repo.MarkRequeued(ctx, row.ID); err != nil {
			log.Printf("[RetryScheduler] Failed to mark job %d requeued: %v", row.ID, err)
		}
		requeued++
	}

	return requeued, abandoned, nil
}

// Stop stops the retry scheduler.
func (s *RetryScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}
