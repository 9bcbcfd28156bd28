package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"storesync-api/internal/model"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLProductRepository implements ProductRepository using MySQL.
type MySQLProductRepository struct {
	db *sql.DB
}

// NewMySQLProductRepository creates a new MySQL product repository.
// dsn format: "user:pass@tcp(host:port)/dbname?parseTime=true"
func NewMySQLProductRepository(dsn string) (*MySQLProductRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createMySQLProductTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[MySQLProductRepository] Initialized")
	return &MySQLProductRepository{db: db}, nil
}

// createMySQLProductTables creates the products table.
func createMySQLProductTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS products (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		license_id BIGINT NOT NULL,
		item_id VARCHAR(191) NOT NULL,
		barcode VARCHAR(191) NOT NULL DEFAULT '',
		stock_id VARCHAR(64) NOT NULL DEFAULT '',
		stock DOUBLE NOT NULL DEFAULT 0,
		price DOUBLE NOT NULL DEFAULT 0,
		last_sync_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uniq_item_stock_license (item_id, stock_id, license_id),
		KEY idx_license_barcode (license_id, barcode),
		KEY idx_last_sync (last_sync_at)
	)`
	_, err := db.Exec(query)
	return err
}

// Upsert inserts or updates the record keyed by (item_id, stock_id, license_id).
func (r *MySQLProductRepository) Upsert(ctx context.Context, rec model.ProductRecord) error {
	query := `
		INSERT INTO products (license_id, item_id, barcode, stock_id, stock, price, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			barcode = VALUES(barcode),
			stock = VALUES(stock),
			price = VALUES(price),
			last_sync_at = VALUES(last_sync_at)`

	_, err := r.db.ExecContext(ctx, query,
		rec.LicenseID, rec.ItemID, rec.Barcode, rec.StockID, rec.Stock, rec.Price, rec.LastSyncAt)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", rec.ItemID, err)
	}
	return nil
}

// GetByCode finds the latest record whose barcode or item id matches code.
func (r *MySQLProductRepository) GetByCode(ctx context.Context, licenseID int64, code string) (*model.ProductRecord, error) {
	query := `
		SELECT id, license_id, item_id, barcode, stock_id, stock, price, last_sync_at, created_at, updated_at
		FROM products
		WHERE license_id = ? AND (barcode = ? OR item_id = ?)
		ORDER BY last_sync_at DESC
		LIMIT 1`

	var rec model.ProductRecord
	err := r.db.QueryRowContext(ctx, query, licenseID, code, code).Scan(
		&rec.ID, &rec.LicenseID, &rec.ItemID, &rec.Barcode, &rec.StockID,
		&rec.Stock, &rec.Price, &rec.LastSyncAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by code: %w", err)
	}
	return &rec, nil
}

// CountByLicense returns how many records a license has.
func (r *MySQLProductRepository) CountByLicense(ctx context.Context, licenseID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE license_id = ?`, licenseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// GetStats returns statistics about the products database.
func (r *MySQLProductRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, err
	}
	stats["total_products"] = total

	var licenses int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT license_id) FROM products`).Scan(&licenses); err != nil {
		return nil, err
	}
	stats["licenses"] = licenses
	stats["backend"] = "mysql"

	return stats, nil
}

// Close closes the database connection.
func (r *MySQLProductRepository) Close() error {
	return r.db.Close()
}

var _ ProductRepository = (*MySQLProductRepository)(nil)
