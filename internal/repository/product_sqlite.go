package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"

	"storesync-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteProductRepository implements ProductRepository using SQLite.
// Thread-safe with WAL mode for high-concurrency reads.
type SQLiteProductRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteProductRepository creates a new SQLite product repository.
// dbPath is the path to the SQLite database file (e.g., "./data/products.db")
func NewSQLiteProductRepository(dbPath string) (*SQLiteProductRepository, error) {
	// Open with WAL mode and other optimizations
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Keep connection alive

	if err := createSQLiteProductTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteProductRepository] Initialized with database: %s", dbPath)
	return &SQLiteProductRepository{db: db}, nil
}

// createSQLiteProductTables creates the products table.
func createSQLiteProductTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		license_id INTEGER NOT NULL,
		item_id TEXT NOT NULL,
		barcode TEXT NOT NULL DEFAULT '',
		stock_id TEXT NOT NULL DEFAULT '',
		stock REAL NOT NULL DEFAULT 0,
		price REAL NOT NULL DEFAULT 0,
		last_sync_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT (datetime('now')),
		updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
		UNIQUE(item_id, stock_id, license_id)
	);
	CREATE INDEX IF NOT EXISTS idx_products_license_barcode ON products(license_id, barcode);
	CREATE INDEX IF NOT EXISTS idx_products_last_sync ON products(last_sync_at);
	`
	_, err := db.Exec(query)
	return err
}

// Upsert inserts or updates the record keyed by (item_id, stock_id, license_id).
func (r *SQLiteProductRepository) Upsert(ctx context.Context, rec model.ProductRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO products (license_id, item_id, barcode, stock_id, stock, price, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id, stock_id, license_id) DO UPDATE SET
			barcode = excluded.barcode,
			stock = excluded.stock,
			price = excluded.price,
			last_sync_at = excluded.last_sync_at,
			updated_at = datetime('now')`

	_, err := r.db.ExecContext(ctx, query,
		rec.LicenseID, rec.ItemID, rec.Barcode, rec.StockID, rec.Stock, rec.Price, rec.LastSyncAt)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", rec.ItemID, err)
	}
	return nil
}

// GetByCode finds the latest record whose barcode or item id matches code.
func (r *SQLiteProductRepository) GetByCode(ctx context.Context, licenseID int64, code string) (*model.ProductRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

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
func (r *SQLiteProductRepository) CountByLicense(ctx context.Context, licenseID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE license_id = ?`, licenseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// GetStats returns statistics about the products database.
func (r *SQLiteProductRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

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
	stats["backend"] = "sqlite"

	return stats, nil
}

// Close closes the database connection.
func (r *SQLiteProductRepository) Close() error {
	return r.db.Close()
}

var _ ProductRepository = (*SQLiteProductRepository)(nil)
