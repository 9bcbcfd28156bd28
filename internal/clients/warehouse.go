package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storesync-api/internal/model"
)

// ItemStock is one (item, warehouse) row from the warehouse inventory API.
// The API returns one row per warehouse holding the item; callers group by
// item id.
type ItemStock struct {
	ItemID        string  `json:"itemID"`
	StockID       string  `json:"stockID"`
	StockQuantity float64 `json:"stockQuantity"`
	SalePrice     float64 `json:"salePrice"`
	Barcode       string  `json:"barcode"`
	ItemName      string  `json:"itemName"`
}

// WarehouseClient calls the warehouse/ERP inventory API under HTTP Basic Auth.
type WarehouseClient struct {
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
}

// NewWarehouseClient builds a client from the tenant's warehouse credentials.
func NewWarehouseClient(t model.TenantConfig, timeout time.Duration) *WarehouseClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WarehouseClient{
		baseURL:  t.WarehouseBaseURL,
		user:     t.WarehouseUser,
		password: t.WarehousePassword,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// getItemsRequest is the {barcodes, stockId} variant body. An empty StockID is
// omitted, which asks the API for rows across all warehouses.
type getItemsRequest struct {
	Barcodes []string `json:"barcodes"`
	StockID  string   `json:"stockId,omitempty"`
}

// GetItemsByIds fetches current stock and price rows for the given codes,
// grouped by item id. When stockID is non-empty, only rows for that warehouse
// are requested.
func (c *WarehouseClient) GetItemsByIds(ctx context.Context, codes []string, stockID string) (map[string][]ItemStock, error) {
	const op = "warehouse.GetItemsByIds"

	body, err := json.Marshal(getItemsRequest{Barcodes: codes, StockID: stockID})
	if err != nil {
		return nil, NewError(KindInvalidResponse, op, err)
	}

	url := c.baseURL + "/api/itemlist/GetItemsByIds"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewError(KindUnreachable, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.user, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewError(KindUnreachable, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(KindUnreachable, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(op, resp.Status, resp.StatusCode, raw)
	}

	var rows []ItemStock
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, NewError(KindInvalidResponse, op, err)
	}

	grouped := make(map[string][]ItemStock)
	for _, row := range rows {
		if row.ItemID == "" {
			continue
		}
		grouped[row.ItemID] = append(grouped[row.ItemID], row)
	}
	return grouped, nil
}

// GetItemStocks fetches all warehouse rows for a single code. Returns a
// KindNotFound error when the warehouse knows nothing about the code.
func (c *WarehouseClient) GetItemStocks(ctx context.Context, code, stockID string) ([]ItemStock, error) {
	grouped, err := c.GetItemsByIds(ctx, []string{code}, stockID)
	if err != nil {
		return nil, err
	}

	// The API keys rows by item id, but callers address items by barcode or
	// item id interchangeably; accept either match.
	if rows, ok := grouped[code]; ok {
		return rows, nil
	}
	for _, rows := range grouped {
		for _, row := range rows {
			if row.Barcode == code {
				return grouped[row.ItemID], nil
			}
		}
	}
	return nil, NewError(KindNotFound, "warehouse.GetItemStocks", fmt.Errorf("no rows for code %s", code))
}
