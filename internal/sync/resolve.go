package sync

import (
	"context"
	"log"

	"storesync-api/internal/clients"
	"storesync-api/internal/model"
)

// WarehouseAPI is the slice of the warehouse client the pipeline needs.
type WarehouseAPI interface {
	GetItemStocks(ctx context.Context, code, stockID string) ([]clients.ItemStock, error)
}

// ResolveStockID selects which warehouse's stock figure to use for an item.
//
// Static mode returns the tenant's configured default code. Dynamic mode
// queries live per-warehouse quantities and picks greedily: the highest
// quantity meeting requiredQty if any does, else the highest quantity
// overall, restricted to the tenant's allow-list when one is configured.
//
// Returns ("", false) when no warehouse can be determined; API errors never
// propagate past this boundary.
func ResolveStockID(ctx context.Context, wh WarehouseAPI, code string, requiredQty float64, t model.TenantConfig) (string, bool) {
	if !t.DynamicWarehouse {
		if id := t.DefaultStockID(); id != "" {
			return id, true
		}
		log.Printf("[ResolveStockID] License %d has no default warehouse configured", t.LicenseID)
		return "", false
	}

	rows, err := wh.GetItemStocks(ctx, code, "")
	if err != nil {
		log.Printf("[ResolveStockID] Warehouse lookup failed for %s (license %d): %v", code, t.LicenseID, err)
		return "", false
	}

	var best, bestMeeting *clients.ItemStock
	for i := range rows {
		row := rows[i]
		if row.StockID == "" || row.StockQuantity <= 0 {
			continue
		}
		if !t.WarehouseAllowed(row.StockID) {
			continue
		}
		if best == nil || row.StockQuantity > best.StockQuantity {
			best = &rows[i]
		}
		if requiredQty > 0 && row.StockQuantity >= requiredQty {
			if bestMeeting == nil || row.StockQuantity > bestMeeting.StockQuantity {
				bestMeeting = &rows[i]
			}
		}
	}

	if bestMeeting != nil {
		return bestMeeting.StockID, true
	}
	if best != nil {
		return best.StockID, true
	}

	log.Printf("[ResolveStockID] No warehouse with positive stock for %s (license %d)", code, t.LicenseID)
	return "", false
}
