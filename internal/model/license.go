package model

import (
	"strings"
	"time"
)

// StoreKind identifies which storefront backend a license is wired to.
type StoreKind string

const (
	// StoreWoo is a WooCommerce-style REST storefront.
	StoreWoo StoreKind = "woo"
	// StoreTantooo is a Tantooo-style single-endpoint RPC storefront.
	StoreTantooo StoreKind = "tantooo"
)

// License represents a row in the licenses table. A license is one customer
// account entitling access to one storefront integration; it carries the
// credentials and feature flags for both sides of the sync.
type License struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Active            bool      `json:"active"`
	StoreKind         StoreKind `json:"store_kind"`
	StoreBaseURL      string    `json:"store_base_url"`
	StoreAPIKey       string    `json:"-"`
	StoreAPISecret    string    `json:"-"`
	WarehouseBaseURL  string    `json:"warehouse_base_url"`
	WarehouseUser     string    `json:"-"`
	WarehousePassword string    `json:"-"`
	SyncStock         bool      `json:"sync_stock"`
	SyncPrice         bool      `json:"sync_price"`
	DynamicWarehouse  bool      `json:"dynamic_warehouse"`
	WarehouseCodes    []string  `json:"warehouse_codes"`    // default stock id(s), first wins in static mode
	AllowedWarehouses []string  `json:"allowed_warehouses"` // restricts dynamic selection when non-empty
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasStoreCredentials reports whether the license carries enough configuration
// to talk to its storefront.
func (l *License) HasStoreCredentials() bool {
	return l.StoreBaseURL != "" && l.StoreAPIKey != ""
}

// HasWarehouseCredentials reports whether the license carries enough
// configuration to talk to the warehouse API.
func (l *License) HasWarehouseCredentials() bool {
	return l.WarehouseBaseURL != "" && l.WarehouseUser != ""
}

// TenantConfig builds the serializable tenant snapshot threaded through job
// payloads. Jobs never re-query the licenses table per item; the coordinator
// loads the license once and every downstream job receives this value.
func (l *License) TenantConfig() TenantConfig {
	return TenantConfig{
		LicenseID:         l.ID,
		StoreKind:         l.StoreKind,
		StoreBaseURL:      l.StoreBaseURL,
		StoreAPIKey:       l.StoreAPIKey,
		StoreAPISecret:    l.StoreAPISecret,
		WarehouseBaseURL:  l.WarehouseBaseURL,
		WarehouseUser:     l.WarehouseUser,
		WarehousePassword: l.WarehousePassword,
		SyncStock:         l.SyncStock,
		SyncPrice:         l.SyncPrice,
		DynamicWarehouse:  l.DynamicWarehouse,
		WarehouseCodes:    l.WarehouseCodes,
		AllowedWarehouses: l.AllowedWarehouses,
	}
}

// TenantConfig is the per-tenant configuration carried inside job payloads.
type TenantConfig struct {
	LicenseID         int64     `json:"license_id"`
	StoreKind         StoreKind `json:"store_kind"`
	StoreBaseURL      string    `json:"store_base_url"`
	StoreAPIKey       string    `json:"store_api_key"`
	StoreAPISecret    string    `json:"store_api_secret,omitempty"`
	WarehouseBaseURL  string    `json:"warehouse_base_url"`
	WarehouseUser     string    `json:"warehouse_user"`
	WarehousePassword string    `json:"warehouse_password"`
	SyncStock         bool      `json:"sync_stock"`
	SyncPrice         bool      `json:"sync_price"`
	DynamicWarehouse  bool      `json:"dynamic_warehouse"`
	WarehouseCodes    []string  `json:"warehouse_codes,omitempty"`
	AllowedWarehouses []string  `json:"allowed_warehouses,omitempty"`
}

// DefaultStockID returns the tenant's static warehouse code: the first
// configured code, or "" when none is configured.
func (t TenantConfig) DefaultStockID() string {
	for _, c := range t.WarehouseCodes {
		if s := strings.TrimSpace(c); s != "" {
			return s
		}
	}
	return ""
}

// WarehouseAllowed reports whether a stock id may be selected in dynamic mode.
// An empty allow-list permits every warehouse.
func (t TenantConfig) WarehouseAllowed(stockID string) bool {
	if len(t.AllowedWarehouses) == 0 {
		return true
	}
	for _, w := range t.AllowedWarehouses {
		if strings.EqualFold(strings.TrimSpace(w), stockID) {
			return true
		}
	}
	return false
}
