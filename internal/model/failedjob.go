package model

import "time"

// FailedJob is one dead-lettered job persisted in the failed_jobs table after
// its queue-level retries were exhausted. The retry scheduler requeues these
// until RequeueCount hits its cap, at which point the row is marked abandoned.
type FailedJob struct {
	ID           int64      `json:"id"`
	JobID        string     `json:"job_id"`
	Queue        string     `json:"queue"`
	Type         string     `json:"type"`
	Payload      []byte     `json:"payload"`
	Error        string     `json:"error"`
	Attempts     int        `json:"attempts"`
	RequeueCount int        `json:"requeue_count"`
	Abandoned    bool       `json:"abandoned"`
	FailedAt     time.Time  `json:"failed_at"`
	RequeuedAt   *time.Time `json:"requeued_at,omitempty"`
}
