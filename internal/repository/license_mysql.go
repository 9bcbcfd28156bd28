package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"storesync-api/internal/model"
)

// MySQLLicenseRepository implements LicenseRepository using MySQL.
type MySQLLicenseRepository struct {
	db *sql.DB
}

// NewMySQLLicenseRepository creates a new MySQL license repository.
func NewMySQLLicenseRepository(db *sql.DB) *MySQLLicenseRepository {
	return &MySQLLicenseRepository{db: db}
}

// GetByID loads a license row. Warehouse code lists are stored comma-separated.
func (r *MySQLLicenseRepository) GetByID(ctx context.Context, id int64) (*model.License, error) {
	query := `
		SELECT id, name, active, store_kind, store_base_url, store_api_key, store_api_secret,
		       warehouse_base_url, warehouse_user, warehouse_password,
		       sync_stock, sync_price, dynamic_warehouse,
		       warehouse_codes, allowed_warehouses, created_at, updated_at
		FROM licenses
		WHERE id = ?
		LIMIT 1`

	var lic model.License
	var storeKind, warehouseCodes, allowedWarehouses string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&lic.ID, &lic.Name, &lic.Active, &storeKind, &lic.StoreBaseURL,
		&lic.StoreAPIKey, &lic.StoreAPISecret,
		&lic.WarehouseBaseURL, &lic.WarehouseUser, &lic.WarehousePassword,
		&lic.SyncStock, &lic.SyncPrice, &lic.DynamicWarehouse,
		&warehouseCodes, &allowedWarehouses, &lic.CreatedAt, &lic.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license %d: %w", id, err)
	}

	lic.StoreKind = model.StoreKind(storeKind)
	lic.WarehouseCodes = splitCodes(warehouseCodes)
	lic.AllowedWarehouses = splitCodes(allowedWarehouses)
	return &lic, nil
}

// splitCodes parses a comma-separated code list, dropping empties.
func splitCodes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var _ LicenseRepository = (*MySQLLicenseRepository)(nil)
