package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"storesync-api/internal/clients"
	"storesync-api/internal/queue"
)

// maxPageErrors is how many listing pages may fail before fetch gives up on
// pagination and proceeds with whatever codes it collected so far.
const maxPageErrors = 3

// HandleFetchAndDivide walks the storefront's product listing, extracts item
// codes, and dispatches the batch-update chunks. Full-catalog operations
// enter the pipeline here.
//
// The walk is budgeted: once the fetch budget elapses the pages collected so
// far are dispatched rather than discarded, so a slow store still makes
// partial progress.
func (p *Pipeline) HandleFetchAndDivide(ctx context.Context, job queue.Job) error {
	var payload fetchJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		// Unparseable payloads never become parseable; fail the run and let
		// the job dead-letter without burning retries.
		p.failRun(ctx, payload.SyncID, "internal error: bad fetch payload")
		return fmt.Errorf("failed to parse fetch payload: %w", err)
	}

	adapter, err := p.newAdapter(payload.Tenant)
	if err != nil {
		p.failRun(ctx, payload.SyncID, err.Error())
		return err
	}

	codes, err := p.collectCodes(ctx, adapter, payload)
	if err != nil {
		if job.Attempts+1 >= job.MaxAttempts {
			p.failRun(ctx, payload.SyncID, fmt.Sprintf("product fetch failed: %v", err))
		}
		return err
	}
	if len(codes) == 0 {
		log.Printf("[FetchAndDivide] Sync %s: store returned no products (license %d)",
			payload.SyncID, payload.Tenant.LicenseID)
		p.failRun(ctx, payload.SyncID, "store returned no products")
		return nil
	}

	scheduled, err := p.dispatchChunks(ctx, payload.SyncID, payload.Operation, payload.Tenant, codes)
	if err != nil {
		if job.Attempts+1 >= job.MaxAttempts {
			p.failRun(ctx, payload.SyncID, fmt.Sprintf("chunk dispatch failed: %v", err))
		}
		return err
	}

	log.Printf("[FetchAndDivide] Sync %s: %d codes divided into %d chunks (license %d)",
		payload.SyncID, len(codes), scheduled, payload.Tenant.LicenseID)
	return nil
}

// collectCodes pages through the store listing until the listing ends, the
// reported total is reached, or the fetch budget runs out. Individual page
// failures are tolerated up to maxPageErrors; the first page failing with
// nothing collected is a hard error so the retry machinery gets a shot.
func (p *Pipeline) collectCodes(ctx context.Context, adapter storeLister, payload fetchJobPayload) ([]string, error) {
	deadline := time.Now().Add(p.cfg.FetchBudget)
	fields := adapter.CodeFields()

	var codes []string
	seen := make(map[string]struct{})
	pageErrors := 0

	for page := 1; ; page++ {
		result, err := adapter.FetchProducts(ctx, page, p.cfg.PageSize)
		if err != nil {
			if len(codes) == 0 {
				return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
			}
			pageErrors++
			log.Printf("[FetchAndDivide] Sync %s: page %d failed (%d/%d tolerated): %v",
				payload.SyncID, page, pageErrors, maxPageErrors, err)
			if pageErrors >= maxPageErrors {
				break
			}
			continue
		}
		if len(result.Items) == 0 {
			break
		}

		for _, item := range result.Items {
			code, ok := ExtractCode(item, fields)
			if !ok {
				continue
			}
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			codes = append(codes, code)
		}

		if result.Total > 0 && len(codes) >= result.Total {
			break
		}
		// Budget check sits after the page so at least one page is always
		// collected; a slow store degrades to a partial run, not an empty one.
		if time.Now().After(deadline) {
			log.Printf("[FetchAndDivide] Sync %s: fetch budget exhausted after page %d, proceeding with %d codes",
				payload.SyncID, page, len(codes))
			break
		}
		if err := sleepWithContext(ctx, p.cfg.PagePause); err != nil {
			return nil, err
		}
	}

	return codes, nil
}

// storeLister is the slice of StoreAdapter collectCodes actually uses.
type storeLister interface {
	FetchProducts(ctx context.Context, page, perPage int) (*clients.ProductPage, error)
	CodeFields() []string
}

// failRun records a terminal failure, logging rather than propagating any
// bookkeeping error so it never masks the original failure.
func (p *Pipeline) failRun(ctx context.Context, syncID, message string) {
	if syncID == "" {
		return
	}
	if err := p.results.Fail(ctx, syncID, message); err != nil {
		log.Printf("[FetchAndDivide] Failed to mark sync %s failed: %v", syncID, err)
	}
}
