package model

import "time"

// SyncStatus is the caller-visible state of a bulk sync run.
type SyncStatus string

const (
	SyncStatusNotFound   SyncStatus = "not_found"
	SyncStatusProcessing SyncStatus = "processing"
	SyncStatusCompleted  SyncStatus = "completed"
	SyncStatusFailed     SyncStatus = "failed"
)

// ItemError records one per-item failure inside a sync run.
type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SyncResult is the cache-backed aggregate for one sync run, keyed by sync id.
// It is append-only until exactly one terminal write sets CompletedAt or
// FailedAt; readers treat absence of both as "processing".
type SyncResult struct {
	SyncID          string      `json:"sync_id"`
	LicenseID       int64       `json:"license_id"`
	Operation       string      `json:"operation"`
	Success         *bool       `json:"success"`
	TotalProcessed  int         `json:"total_processed"`
	SuccessCount    int         `json:"success_count"`
	ErrorCount      int         `json:"error_count"`
	Errors          []ItemError `json:"errors,omitempty"`
	ChunksTotal     int         `json:"chunks_total"`
	ChunksRemaining int         `json:"chunks_remaining"`
	StartedAt       time.Time   `json:"started_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	FailedAt        *time.Time  `json:"failed_at,omitempty"`
	Message         string      `json:"message,omitempty"`
}

// Terminal reports whether the run has reached its final state.
func (r *SyncResult) Terminal() bool {
	return r.CompletedAt != nil || r.FailedAt != nil
}

// Status maps the stored record to the caller-visible status.
func (r *SyncResult) Status() SyncStatus {
	switch {
	case r.CompletedAt != nil:
		return SyncStatusCompleted
	case r.FailedAt != nil:
		return SyncStatusFailed
	default:
		return SyncStatusProcessing
	}
}
