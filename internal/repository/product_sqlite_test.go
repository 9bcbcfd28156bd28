package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"storesync-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteProductRepository {
	t.Helper()
	repo, err := NewSQLiteProductRepository(filepath.Join(t.TempDir(), "products.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func record(licenseID int64, itemID, stockID string, stock, price float64) model.ProductRecord {
	return model.ProductRecord{
		LicenseID:  licenseID,
		ItemID:     itemID,
		Barcode:    "BC-" + itemID,
		StockID:    stockID,
		Stock:      stock,
		Price:      price,
		LastSyncAt: time.Now().UTC(),
	}
}

func TestSQLiteProductRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	t.Run("insert then read back", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, record(1, "ITM-1", "MAIN", 5, 9.99)))

		got, err := repo.GetByCode(ctx, 1, "ITM-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, float64(5), got.Stock)
		assert.Equal(t, 9.99, got.Price)
		assert.Equal(t, "MAIN", got.StockID)
	})

	t.Run("repeat upsert updates in place", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, record(1, "ITM-1", "MAIN", 7, 12.50)))
		require.NoError(t, repo.Upsert(ctx, record(1, "ITM-1", "MAIN", 7, 12.50)))

		count, err := repo.CountByLicense(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		got, err := repo.GetByCode(ctx, 1, "ITM-1")
		require.NoError(t, err)
		assert.Equal(t, float64(7), got.Stock)
		assert.Equal(t, 12.50, got.Price)
	})

	t.Run("same item in another warehouse is a new row", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, record(1, "ITM-1", "BACKUP", 2, 12.50)))

		count, err := repo.CountByLicense(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("licenses are isolated", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, record(2, "ITM-1", "MAIN", 99, 1)))

		got, err := repo.GetByCode(ctx, 1, "ITM-1")
		require.NoError(t, err)
		assert.NotEqual(t, float64(99), got.Stock)

		count, err := repo.CountByLicense(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestSQLiteProductRepository_GetByCode(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Upsert(ctx, record(1, "ITM-9", "MAIN", 3, 4)))

	t.Run("matches by barcode", func(t *testing.T) {
		got, err := repo.GetByCode(ctx, 1, "BC-ITM-9")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "ITM-9", got.ItemID)
	})

	t.Run("unknown code returns nil nil", func(t *testing.T) {
		got, err := repo.GetByCode(ctx, 1, "NOPE")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestSQLiteProductRepository_GetStats(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Upsert(ctx, record(1, "A", "MAIN", 1, 1)))
	require.NoError(t, repo.Upsert(ctx, record(2, "B", "MAIN", 1, 1)))

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats["total_products"])
	assert.Equal(t, int64(2), stats["licenses"])
	assert.Equal(t, "sqlite", stats["backend"])
}
