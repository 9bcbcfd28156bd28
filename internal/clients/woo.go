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

// WooClient talks to a WooCommerce-style REST product API.
type WooClient struct {
	baseURL    string
	key        string
	secret     string
	httpClient *http.Client
}

// NewWooClient builds the adapter from tenant credentials.
func NewWooClient(t model.TenantConfig, timeout time.Duration) *WooClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &WooClient{
		baseURL: t.StoreBaseURL,
		key:     t.StoreAPIKey,
		secret:  t.StoreAPISecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// wooProductUpdate is one entry of the batch update endpoint body. Pointers
// keep untouched fields out of the payload so a stock push never clobbers
// price and vice versa.
type wooProductUpdate struct {
	UniqueID      string   `json:"unique_id"`
	SKU           string   `json:"sku,omitempty"`
	RegularPrice  *string  `json:"regular_price,omitempty"`
	StockQuantity *float64 `json:"stock_quantity,omitempty"`
	StockStatus   string   `json:"stock_status,omitempty"`
	ManageStock   *bool    `json:"manage_stock,omitempty"`
}

type wooBatchRequest struct {
	Products []wooProductUpdate `json:"products"`
}

type wooListResponse struct {
	Products []RawProduct `json:"products"`
	Total    int          `json:"total"`
}

// Ping performs a lightweight connectivity probe: a one-item listing request.
func (c *WooClient) Ping(ctx context.Context) error {
	_, err := c.FetchProducts(ctx, 1, 1)
	return err
}

// FetchProducts returns one page of the product listing.
func (c *WooClient) FetchProducts(ctx context.Context, page, perPage int) (*ProductPage, error) {
	const op = "woo.FetchProducts"

	url := fmt.Sprintf("%s/products?page=%d&per_page=%d", c.baseURL, page, perPage)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewError(KindUnreachable, op, err)
	}
	req.SetBasicAuth(c.key, c.secret)

	raw, err := c.do(op, req)
	if err != nil {
		return nil, err
	}

	var parsed wooListResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, NewError(KindInvalidResponse, op, err)
	}
	return &ProductPage{Items: parsed.Products, Total: parsed.Total}, nil
}

// PushStock updates the stock quantity for one item.
func (c *WooClient) PushStock(ctx context.Context, code string, qty float64) error {
	manage := true
	status := "instock"
	if qty <= 0 {
		status = "outofstock"
	}
	return c.batchUpdate(ctx, "woo.PushStock", wooProductUpdate{
		UniqueID:      code,
		StockQuantity: &qty,
		StockStatus:   status,
		ManageStock:   &manage,
	})
}

// PushPrice updates the regular price for one item.
func (c *WooClient) PushPrice(ctx context.Context, code string, price float64) error {
	p := fmt.Sprintf("%.2f", price)
	return c.batchUpdate(ctx, "woo.PushPrice", wooProductUpdate{
		UniqueID:     code,
		RegularPrice: &p,
	})
}

func (c *WooClient) batchUpdate(ctx context.Context, op string, updates ...wooProductUpdate) error {
	body, err := json.Marshal(wooBatchRequest{Products: updates})
	if err != nil {
		return NewError(KindInvalidResponse, op, err)
	}

	url := c.baseURL + "/products/batch"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return NewError(KindUnreachable, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.key, c.secret)

	_, err = c.do(op, req)
	return err
}

// do executes a request and returns the body, classifying failures.
func (c *WooClient) do(op string, req *http.Request) ([]byte, error) {
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
	return raw, nil
}

// CodeFields returns the field-probe priority for Woo-style listings.
func (c *WooClient) CodeFields() []string {
	return []string{"unique_id", "sku", "barcode"}
}

var _ StoreAdapter = (*WooClient)(nil)
