package repository

import (
	"context"

	"storesync-api/internal/model"
)

// ProductRepository defines data access for the denormalized products table.
type ProductRepository interface {
	// Upsert inserts or updates the record keyed by (item_id, stock_id, license_id).
	Upsert(ctx context.Context, rec model.ProductRecord) error

	// GetByCode finds the latest record for a license whose barcode or item id
	// matches code. Returns (nil, nil) when nothing matches.
	GetByCode(ctx context.Context, licenseID int64, code string) (*model.ProductRecord, error)

	// CountByLicense returns how many records a license has.
	CountByLicense(ctx context.Context, licenseID int64) (int64, error)

	// GetStats returns statistics about the products database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}

// LicenseRepository defines data access for tenant licenses.
type LicenseRepository interface {
	// GetByID loads a license. Returns (nil, nil) when the id is unknown.
	GetByID(ctx context.Context, id int64) (*model.License, error)
}

// FailedJobRepository defines the dead-letter table access.
type FailedJobRepository interface {
	// Insert records a permanently failed job.
	Insert(ctx context.Context, job model.FailedJob) error

	// ListRequeueable returns up to limit non-abandoned rows whose requeue
	// count is below maxRequeues, oldest first.
	ListRequeueable(ctx context.Context, limit, maxRequeues int) ([]model.FailedJob, error)

	// MarkRequeued bumps the requeue counter after the job went back on a queue.
	MarkRequeued(ctx context.Context, id int64) error

	// MarkAbandoned flags a row that will never be retried again.
	MarkAbandoned(ctx context.Context, id int64) error

	// Counts returns (pending, abandoned) row counts.
	Counts(ctx context.Context) (int64, int64, error)
}
