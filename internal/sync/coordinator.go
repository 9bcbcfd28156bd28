package sync

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"storesync-api/internal/model"
	"storesync-api/internal/queue"
	"storesync-api/pkg/uid"
)

// Coordinate is the entry point for a bulk operation. It validates the
// license, probes the target store, and fans the work out: explicit codes are
// chunked and dispatched directly, full-catalog operations go through a
// fetch-and-divide job first.
//
// Coordination itself runs at most once - it is cheap and safe to re-trigger
// manually, and every failure here aborts before any child job is scheduled.
//
// Returns the sync id for status polling. A recognized no-op (unknown
// operation, empty code list) returns ("", nil).
func (p *Pipeline) Coordinate(ctx context.Context, licenseID int64, operation string, codes []string) (string, error) {
	lic, err := p.licenses.GetByID(ctx, licenseID)
	if err != nil {
		return "", fmt.Errorf("failed to load license %d: %w", licenseID, err)
	}
	if lic == nil || !lic.Active {
		log.Printf("[Coordinator] License %d missing or inactive, aborting", licenseID)
		return "", ErrLicenseInvalid
	}
	if !lic.HasStoreCredentials() || !lic.HasWarehouseCredentials() {
		log.Printf("[Coordinator] License %d missing store/warehouse credentials, aborting", licenseID)
		return "", ErrLicenseInvalid
	}

	tenant := lic.TenantConfig()
	adapter, err := p.newAdapter(tenant)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLicenseInvalid, err)
	}

	// Connectivity probe before any real work: an unreachable store must not
	// cost us a fan-out of doomed jobs.
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := adapter.Ping(probeCtx); err != nil {
		log.Printf("[Coordinator] Store probe failed for license %d: %v", licenseID, err)
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	switch operation {
	case OpUpdateSpecific:
		normalized := normalizeCodes(codes)
		if len(normalized) == 0 {
			log.Printf("[Coordinator] update_specific with no codes for license %d, nothing to do", licenseID)
			return "", nil
		}
		return p.startSpecific(ctx, tenant, operation, normalized)

	case OpUpdateAll, OpFetchAndUpdate:
		return p.startFullSync(ctx, tenant, operation)

	default:
		log.Printf("[Coordinator] Unrecognized operation %q for license %d, ignoring", operation, licenseID)
		return "", nil
	}
}

// startSpecific chunks caller-supplied codes and dispatches batch jobs.
func (p *Pipeline) startSpecific(ctx context.Context, tenant model.TenantConfig, operation string, codes []string) (string, error) {
	syncID := uid.New()
	if err := p.results.InitProgress(ctx, syncID, tenant.LicenseID, operation, 0); err != nil {
		return "", err
	}

	scheduled, err := p.dispatchChunks(ctx, syncID, operation, tenant, codes)
	if err != nil {
		return "", err
	}

	log.Printf("[Coordinator] Sync %s: scheduled %d chunks for %d codes (license %d)",
		syncID, scheduled, len(codes), tenant.LicenseID)
	return syncID, nil
}

// startFullSync enqueues the fetch-and-divide job; the full code universe is
// not known yet, so chunking happens downstream.
func (p *Pipeline) startFullSync(ctx context.Context, tenant model.TenantConfig, operation string) (string, error) {
	syncID := uid.New()
	if err := p.results.InitProgress(ctx, syncID, tenant.LicenseID, operation, 0); err != nil {
		return "", err
	}

	job, err := queue.NewJob(queue.QueueFetch, JobTypeFetchAndDivide, fetchJobPayload{
		SyncID:    syncID,
		Operation: operation,
		Tenant:    tenant,
	}, 0, fetchJobTimeout)
	if err != nil {
		return "", err
	}
	if err := p.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("failed to enqueue fetch job for sync %s: %w", syncID, err)
	}

	log.Printf("[Coordinator] Sync %s: fetch-and-divide enqueued (license %d, op %s)",
		syncID, tenant.LicenseID, operation)
	return syncID, nil
}

// dispatchChunks chunks the codes, re-bases the run's chunk counter, then
// schedules one batch-update job per chunk with ramping delays.
func (p *Pipeline) dispatchChunks(ctx context.Context, syncID, operation string, tenant model.TenantConfig, codes []string) (int, error) {
	chunks, err := ChunkCodes(codes, p.cfg.ChunkSize)
	if err != nil {
		return 0, err
	}

	// The counter must be in place before the first chunk job can possibly
	// run, otherwise an early RecordChunk would complete the run prematurely.
	if err := p.results.SetChunksTotal(ctx, syncID, len(chunks)); err != nil {
		return 0, err
	}

	scheduled := DispatchChunks(ctx, chunks, p.cfg.ChunkBaseDelay, p.cfg.PerChunkDelay,
		func(ctx context.Context, chunk []string, index, total int, delay time.Duration) error {
			job, err := queue.NewJob(queue.QueueBulkUpdate, JobTypeBatchUpdate, chunkJobPayload{
				SyncID:      syncID,
				Operation:   operation,
				Tenant:      tenant,
				Codes:       chunk,
				ChunkIndex:  index,
				TotalChunks: total,
			}, delay, batchJobTimeout)
			if err != nil {
				return err
			}
			return p.queue.Enqueue(ctx, job)
		})

	return scheduled, nil
}

// normalizeCodes trims whitespace and drops empties. Duplicates are kept;
// they only waste API calls, they do not break anything.
func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
