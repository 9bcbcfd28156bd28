package model

import "time"

// ProductRecord is the denormalized last-known state of one catalog item,
// one row in the products table. Uniqueness is (item_id, stock_id, license_id);
// the record is upserted after every successful batch update and serves as the
// fallback data source when the live warehouse call fails.
type ProductRecord struct {
	ID         int64     `json:"id"`
	LicenseID  int64     `json:"license_id"`
	ItemID     string    `json:"item_id"`
	Barcode    string    `json:"barcode"`
	StockID    string    `json:"stock_id"`
	Stock      float64   `json:"stock"`
	Price      float64   `json:"price"`
	LastSyncAt time.Time `json:"last_sync_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
