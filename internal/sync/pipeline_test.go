package sync

import (
	"context"
	"time"

	"storesync-api/internal/cache"
	"storesync-api/internal/clients"
	"storesync-api/internal/config"
	"storesync-api/internal/model"
	"storesync-api/internal/queue"
	"storesync-api/internal/service"
)

// Shared fakes for the pipeline tests. Everything runs in-memory; clients
// are stubbed out so no HTTP happens.

type fakeLicenseRepo struct {
	licenses map[int64]*model.License
}

func (f *fakeLicenseRepo) GetByID(ctx context.Context, id int64) (*model.License, error) {
	return f.licenses[id], nil
}

type fakeProductRepo struct {
	upserts []model.ProductRecord
	byCode  map[string]*model.ProductRecord
}

func (f *fakeProductRepo) Upsert(ctx context.Context, rec model.ProductRecord) error {
	f.upserts = append(f.upserts, rec)
	return nil
}

func (f *fakeProductRepo) GetByCode(ctx context.Context, licenseID int64, code string) (*model.ProductRecord, error) {
	return f.byCode[code], nil
}

func (f *fakeProductRepo) CountByLicense(ctx context.Context, licenseID int64) (int64, error) {
	return int64(len(f.upserts)), nil
}

func (f *fakeProductRepo) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

func (f *fakeProductRepo) Close() error { return nil }

// recordingQueue captures enqueued jobs instead of running them.
type recordingQueue struct {
	jobs []queue.Job
	err  error
}

func (r *recordingQueue) Enqueue(ctx context.Context, job queue.Job) error {
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// fakeAdapter is a scriptable storefront.
type fakeAdapter struct {
	pingErr   error
	pages     []clients.ProductPage
	fetchErr  error
	stockPush map[string]float64
	pricePush map[string]float64
	pushErrs  map[string]error
	fields    []string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		stockPush: make(map[string]float64),
		pricePush: make(map[string]float64),
		pushErrs:  make(map[string]error),
		fields:    []string{"sku"},
	}
}

func (f *fakeAdapter) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeAdapter) FetchProducts(ctx context.Context, page, perPage int) (*clients.ProductPage, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if page > len(f.pages) {
		return &clients.ProductPage{}, nil
	}
	return &f.pages[page-1], nil
}

func (f *fakeAdapter) PushStock(ctx context.Context, code string, qty float64) error {
	if err := f.pushErrs[code]; err != nil {
		return err
	}
	f.stockPush[code] = qty
	return nil
}

func (f *fakeAdapter) PushPrice(ctx context.Context, code string, price float64) error {
	if err := f.pushErrs[code]; err != nil {
		return err
	}
	f.pricePush[code] = price
	return nil
}

func (f *fakeAdapter) CodeFields() []string { return f.fields }

// scriptedWarehouse returns per-code rows.
type scriptedWarehouse struct {
	rowsByCode map[string][]clients.ItemStock
	errByCode  map[string]error
}

func (s *scriptedWarehouse) GetItemStocks(ctx context.Context, code, stockID string) ([]clients.ItemStock, error) {
	if err := s.errByCode[code]; err != nil {
		return nil, err
	}
	return s.rowsByCode[code], nil
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		ChunkSize:      50,
		ChunkBaseDelay: 0,
		PerChunkDelay:  0,
		PageSize:       100,
		PagePause:      0,
		ItemPause:      0,
		FetchBudget:    time.Minute,
	}
}

func testLicense(id int64) *model.License {
	return &model.License{
		ID:               id,
		Active:           true,
		StoreKind:        model.StoreWoo,
		StoreBaseURL:     "https://shop.example.com/wp-json/wc/v3",
		StoreAPIKey:      "ck_test",
		StoreAPISecret:   "cs_test",
		WarehouseBaseURL: "https://erp.example.com",
		WarehouseUser:    "sync",
		SyncStock:        true,
		SyncPrice:        true,
		WarehouseCodes:   []string{"MAIN"},
	}
}

// testPipeline builds a pipeline on in-memory backing with the given fakes.
func testPipeline(licenses *fakeLicenseRepo, products *fakeProductRepo, q queue.Enqueuer, adapter *fakeAdapter, wh WarehouseAPI) (*Pipeline, *service.SyncResultStore) {
	results := service.NewSyncResultStore(cache.NewMemoryCache(), time.Hour)
	p := &Pipeline{
		cfg:      testSyncConfig(),
		licenses: licenses,
		products: products,
		results:  results,
		queue:    q,
		newAdapter: func(t model.TenantConfig) (clients.StoreAdapter, error) {
			return adapter, nil
		},
		newWarehouse: func(t model.TenantConfig) WarehouseAPI {
			return wh
		},
	}
	return p, results
}
