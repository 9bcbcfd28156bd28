package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"storesync-api/internal/clients"
	"storesync-api/internal/model"
	"storesync-api/internal/queue"
)

// HandleBatchUpdate processes one chunk of item codes: for each code it reads
// the warehouse's current stock/price and pushes the figures to the
// storefront. Items are isolated - one broken item never aborts its chunk -
// and the chunk's outcome is folded into the shared sync result.
func (p *Pipeline) HandleBatchUpdate(ctx context.Context, job queue.Job) error {
	var payload chunkJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse chunk payload: %w", err)
	}

	adapter, err := p.newAdapter(payload.Tenant)
	if err != nil {
		return err
	}
	wh := p.newWarehouse(payload.Tenant)

	log.Printf("[BatchUpdate] Sync %s: chunk %d/%d starting, %d items (license %d)",
		payload.SyncID, payload.ChunkIndex, payload.TotalChunks, len(payload.Codes), payload.Tenant.LicenseID)

	var successCount, errorCount int
	var itemErrors []model.ItemError

	for i, code := range payload.Codes {
		// Sequential with a per-item pause; both vendor APIs throttle
		// aggressively under concurrent writes.
		if i > 0 {
			if err := sleepWithContext(ctx, p.cfg.ItemPause); err != nil {
				return err
			}
		}

		if err := p.processItem(ctx, adapter, wh, payload.Tenant, code); err != nil {
			errorCount++
			itemErrors = append(itemErrors, model.ItemError{Code: code, Message: err.Error()})
			log.Printf("[BatchUpdate] Sync %s: item %s failed: %v", payload.SyncID, code, err)
			continue
		}
		successCount++
	}

	completed, err := p.results.RecordChunk(ctx, payload.SyncID, successCount, errorCount, itemErrors)
	if err != nil {
		// Item work is done; a retry would repeat every push. Idempotent
		// upserts make that safe but pointless, so log instead of erroring.
		log.Printf("[BatchUpdate] Sync %s: failed to record chunk %d/%d: %v",
			payload.SyncID, payload.ChunkIndex, payload.TotalChunks, err)
		return nil
	}

	log.Printf("[BatchUpdate] Sync %s: chunk %d/%d done, %d ok / %d failed",
		payload.SyncID, payload.ChunkIndex, payload.TotalChunks, successCount, errorCount)
	if completed {
		log.Printf("[BatchUpdate] Sync %s: all %d chunks recorded, run complete", payload.SyncID, payload.TotalChunks)
	}
	return nil
}

// processItem syncs one item code: resolve warehouse, read current figures
// (live, falling back to the last persisted record when the warehouse is
// unreachable), push stock and price independently per the tenant's flags,
// then upsert the local record.
func (p *Pipeline) processItem(ctx context.Context, adapter clients.StoreAdapter, wh WarehouseAPI, tenant model.TenantConfig, code string) error {
	stockID, ok := ResolveStockID(ctx, wh, code, 0, tenant)
	if !ok {
		// Dynamic resolution came up empty; the static default still names a
		// real warehouse worth querying.
		if stockID = tenant.DefaultStockID(); stockID == "" {
			return fmt.Errorf("no warehouse resolved for %s", code)
		}
	}

	stock, price, barcode, err := p.itemFigures(ctx, wh, tenant, code, stockID)
	if err != nil {
		return err
	}

	var pushErr error
	if tenant.SyncStock {
		if err := adapter.PushStock(ctx, code, stock); err != nil {
			pushErr = fmt.Errorf("stock push failed: %w", err)
		}
	}
	if tenant.SyncPrice {
		if err := adapter.PushPrice(ctx, code, price); err != nil {
			if pushErr != nil {
				pushErr = fmt.Errorf("%v; price push failed: %w", pushErr, err)
			} else {
				pushErr = fmt.Errorf("price push failed: %w", err)
			}
		}
	}

	// Persist what we know even when a push failed; the record feeds the
	// unreachable-warehouse fallback and must track the freshest figures.
	rec := model.ProductRecord{
		LicenseID:  tenant.LicenseID,
		ItemID:     code,
		Barcode:    barcode,
		StockID:    stockID,
		Stock:      stock,
		Price:      price,
		LastSyncAt: time.Now().UTC(),
	}
	if err := p.products.Upsert(ctx, rec); err != nil {
		log.Printf("[BatchUpdate] Failed to persist record for %s (license %d): %v", code, tenant.LicenseID, err)
	}

	return pushErr
}

// itemFigures reads stock/price for an item, preferring the live warehouse
// API. When the warehouse is unreachable the last persisted figures are used
// so a warehouse outage degrades the sync instead of failing it; a clean
// not-found stays an error, the item genuinely does not exist there.
func (p *Pipeline) itemFigures(ctx context.Context, wh WarehouseAPI, tenant model.TenantConfig, code, stockID string) (stock, price float64, barcode string, err error) {
	rows, err := wh.GetItemStocks(ctx, code, stockID)
	if err == nil {
		for _, row := range rows {
			if row.StockID == stockID || len(rows) == 1 {
				return row.StockQuantity, row.SalePrice, row.Barcode, nil
			}
		}
		return 0, 0, "", fmt.Errorf("warehouse returned no row for %s at %s", code, stockID)
	}

	if !clients.IsKind(err, clients.KindUnreachable) {
		return 0, 0, "", fmt.Errorf("warehouse lookup failed for %s: %w", code, err)
	}

	rec, repoErr := p.products.GetByCode(ctx, tenant.LicenseID, code)
	if repoErr != nil || rec == nil {
		return 0, 0, "", fmt.Errorf("warehouse unreachable and no local record for %s: %w", code, err)
	}

	log.Printf("[BatchUpdate] Warehouse unreachable for %s (license %d), using record from %s",
		code, tenant.LicenseID, rec.LastSyncAt.Format(time.RFC3339))
	return rec.Stock, rec.Price, rec.Barcode, nil
}
