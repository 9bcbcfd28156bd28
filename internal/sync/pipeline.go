package sync

import (
	"context"
	"errors"
	"time"

	"storesync-api/internal/cache"
	"storesync-api/internal/clients"
	"storesync-api/internal/config"
	"storesync-api/internal/model"
	"storesync-api/internal/queue"
	"storesync-api/internal/repository"
	"storesync-api/internal/service"
)

// Bulk operation kinds accepted by Coordinate.
const (
	OpUpdateAll      = "update_all"
	OpUpdateSpecific = "update_specific"
	OpFetchAndUpdate = "fetch_and_update"
)

// Job type names for the handler registry.
const (
	JobTypeFetchAndDivide = "sync.fetch_and_divide"
	JobTypeBatchUpdate    = "sync.batch_update"
)

// Job hard timeouts, tiered by expected workload.
const (
	fetchJobTimeout = 5 * time.Minute
	batchJobTimeout = 5 * time.Minute
)

var (
	// ErrLicenseInvalid means the license is unknown, inactive, or missing
	// required store credentials.
	ErrLicenseInvalid = errors.New("license invalid or inactive")

	// ErrUpstreamUnavailable means the target store failed the connectivity
	// probe before any work was scheduled.
	ErrUpstreamUnavailable = errors.New("target store unavailable")
)

// fetchJobPayload is the serialized argument of a fetch-and-divide job.
type fetchJobPayload struct {
	SyncID    string             `json:"sync_id"`
	Operation string             `json:"operation"`
	Tenant    model.TenantConfig `json:"tenant"`
}

// chunkJobPayload is the serialized argument of a batch-update job.
type chunkJobPayload struct {
	SyncID      string             `json:"sync_id"`
	Operation   string             `json:"operation"`
	Tenant      model.TenantConfig `json:"tenant"`
	Codes       []string           `json:"codes"`
	ChunkIndex  int                `json:"chunk_index"` // 1-based
	TotalChunks int                `json:"total_chunks"`
}

// Pipeline wires the coordination, fetch-and-divide and batch-update stages
// together. Stages communicate only through the queue; the tenant snapshot
// travels inside every job payload so no stage re-reads the licenses table.
type Pipeline struct {
	cfg      config.SyncConfig
	licenses repository.LicenseRepository
	products repository.ProductRepository
	results  *service.SyncResultStore
	queue    queue.Enqueuer

	// factories, replaceable in tests
	newAdapter   func(model.TenantConfig) (clients.StoreAdapter, error)
	newWarehouse func(model.TenantConfig) WarehouseAPI
}

// NewPipeline creates the pipeline. tokenCache backs the Tantooo auth token.
func NewPipeline(
	cfg config.SyncConfig,
	licenses repository.LicenseRepository,
	products repository.ProductRepository,
	results *service.SyncResultStore,
	q queue.Enqueuer,
	tokenCache cache.Cache,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		licenses: licenses,
		products: products,
		results:  results,
		queue:    q,
		newAdapter: func(t model.TenantConfig) (clients.StoreAdapter, error) {
			return clients.NewStoreAdapter(t, cfg.StoreTimeout, tokenCache)
		},
		newWarehouse: func(t model.TenantConfig) WarehouseAPI {
			return clients.NewWarehouseClient(t, cfg.WarehouseTimeout)
		},
	}
}

// Register binds the pipeline's job handlers onto the worker pool.
func (p *Pipeline) Register(pool *queue.WorkerPool) {
	pool.Register(JobTypeFetchAndDivide, p.HandleFetchAndDivide)
	pool.Register(JobTypeBatchUpdate, p.HandleBatchUpdate)
}

// sleepWithContext pauses for delay unless the context ends first.
func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
