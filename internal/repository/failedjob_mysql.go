package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"storesync-api/internal/model"
)

// MySQLFailedJobRepository implements FailedJobRepository using MySQL.
type MySQLFailedJobRepository struct {
	db *sql.DB
}

// NewMySQLFailedJobRepository creates the dead-letter repository and ensures
// the failed_jobs table exists.
func NewMySQLFailedJobRepository(db *sql.DB) (*MySQLFailedJobRepository, error) {
	query := `
	CREATE TABLE IF NOT EXISTS failed_jobs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		job_id VARCHAR(64) NOT NULL,
		queue VARCHAR(64) NOT NULL,
		type VARCHAR(64) NOT NULL,
		payload MEDIUMTEXT NOT NULL,
		error TEXT NOT NULL,
		attempts INT NOT NULL DEFAULT 0,
		requeue_count INT NOT NULL DEFAULT 0,
		abandoned TINYINT(1) NOT NULL DEFAULT 0,
		failed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		requeued_at DATETIME NULL,
		KEY idx_failed_jobs_abandoned (abandoned, requeue_count, failed_at)
	)`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create failed_jobs table: %w", err)
	}

	log.Printf("[MySQLFailedJobRepository] Initialized")
	return &MySQLFailedJobRepository{db: db}, nil
}

// Insert records a permanently failed job.
func (r *MySQLFailedJobRepository) Insert(ctx context.Context, job model.FailedJob) error {
	query := `
		INSERT INTO failed_jobs (job_id, queue, type, payload, error, attempts)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		job.JobID, job.Queue, job.Type, string(job.Payload), job.Error, job.Attempts)
	if err != nil {
		return fmt.Errorf("failed to insert failed job %s: %w", job.JobID, err)
	}
	return nil
}

// ListRequeueable returns up to limit non-abandoned rows, oldest first.
func (r *MySQLFailedJobRepository) ListRequeueable(ctx context.Context, limit, maxRequeues int) ([]model.FailedJob, error) {
	query := `
		SELECT id, job_id, queue, type, payload, error, attempts, requeue_count, abandoned, failed_at, requeued_at
		FROM failed_jobs
		WHERE abandoned = 0 AND requeue_count < ?
		ORDER BY failed_at ASC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, maxRequeues, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.FailedJob
	for rows.Next() {
		var j model.FailedJob
		var payload string
		var requeuedAt sql.NullTime
		if err := rows.Scan(&j.ID, &j.JobID, &j.Queue, &j.Type, &payload, &j.Error,
			&j.Attempts, &j.RequeueCount, &j.Abandoned, &j.FailedAt, &requeuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan failed job: %w", err)
		}
		j.Payload = []byte(payload)
		if requeuedAt.Valid {
			t := requeuedAt.Time
			j.RequeuedAt = &t
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkRequeued bumps the requeue counter.
func (r *MySQLFailedJobRepository) MarkRequeued(ctx context.Context, id int64) error {
	query := `UPDATE failed_jobs SET requeue_count = requeue_count + 1, requeued_at = NOW() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark job %d requeued: %w", id, err)
	}
	return nil
}

// MarkAbandoned flags a row that will never be retried again.
func (r *MySQLFailedJobRepository) MarkAbandoned(ctx context.Context, id int64) error {
	query := `UPDATE failed_jobs SET abandoned = 1 WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark job %d abandoned: %w", id, err)
	}
	return nil
}

// Counts returns (pending, abandoned) row counts.
func (r *MySQLFailedJobRepository) Counts(ctx context.Context) (int64, int64, error) {
	var pending, abandoned int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_jobs WHERE abandoned = 0`).Scan(&pending); err != nil {
		return 0, 0, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_jobs WHERE abandoned = 1`).Scan(&abandoned); err != nil {
		return 0, 0, err
	}
	return pending, abandoned, nil
}

var _ FailedJobRepository = (*MySQLFailedJobRepository)(nil)
