package clients

import (
	"context"
	"fmt"
	"time"

	"storesync-api/internal/cache"
	"storesync-api/internal/model"
)

// RawProduct is one listing entry as returned by a storefront. Field names
// vary per vendor, which is why code extraction probes a priority list.
type RawProduct map[string]interface{}

// ProductPage is one page of a storefront product listing.
type ProductPage struct {
	Items []RawProduct
	Total int
}

// StoreAdapter is the capability a storefront backend must provide for the
// sync pipeline: a cheap connectivity probe, a paginated listing, and
// independent stock/price pushes. Both vendor integrations implement this,
// so the coordinator, fetch and batch-update stages are vendor-agnostic.
type StoreAdapter interface {
	// Ping performs a lightweight connectivity probe.
	Ping(ctx context.Context) error

	// FetchProducts returns one page of the product listing (1-based page).
	FetchProducts(ctx context.Context, page, perPage int) (*ProductPage, error)

	// PushStock updates the stock quantity for one item.
	PushStock(ctx context.Context, code string, qty float64) error

	// PushPrice updates the regular price for one item.
	PushPrice(ctx context.Context, code string, price float64) error

	// CodeFields is the ordered field-probe list used to extract an item code
	// from a RawProduct; first non-empty field wins.
	CodeFields() []string
}

// NewStoreAdapter builds the adapter matching the tenant's store kind.
// tokenCache backs the Tantooo auth token; the Woo adapter ignores it.
func NewStoreAdapter(t model.TenantConfig, timeout time.Duration, tokenCache cache.Cache) (StoreAdapter, error) {
	switch t.StoreKind {
	case model.StoreWoo:
		return NewWooClient(t, timeout), nil
	case model.StoreTantooo:
		return NewTantoooClient(t, timeout, tokenCache), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q for license %d", t.StoreKind, t.LicenseID)
	}
}
