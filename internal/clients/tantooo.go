package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"storesync-api/internal/cache"
	"storesync-api/internal/model"
)

// Tantooo response msg codes. Everything is a 200 at the HTTP layer; the
// real outcome is in the body.
const (
	tantoooMsgOK           = 0
	tantoooMsgItemNotFound = 4
	tantoooMsgTokenExpired = 150
)

// Tantooo tokens are effectively permanent; the server invalidates them with
// msg 150 long before this TTL matters.
const tantoooTokenTTL = 365 * 24 * time.Hour

// TantoooClient talks to a Tantooo-style single-endpoint RPC product API:
// every call is POST {base} with a {fn: ..., ...} body and an X-API-KEY
// header; writes additionally carry an Authorization bearer token.
type TantoooClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	licenseID  int64
	httpClient *http.Client
	tokens     cache.Cache
}

// NewTantoooClient builds the adapter from tenant credentials. tokenCache
// holds the long-lived auth token across job executions.
func NewTantoooClient(t model.TenantConfig, timeout time.Duration, tokenCache cache.Cache) *TantoooClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &TantoooClient{
		baseURL:   t.StoreBaseURL,
		apiKey:    t.StoreAPIKey,
		apiSecret: t.StoreAPISecret,
		licenseID: t.LicenseID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokens: tokenCache,
	}
}

type tantoooResponse struct {
	Msg     int             `json:"msg"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Total   int             `json:"total"`
}

func (c *TantoooClient) tokenKey() string {
	return fmt.Sprintf("tantooo_token:%d", c.licenseID)
}

// token returns the cached bearer token, fetching a fresh one on miss.
func (c *TantoooClient) token(ctx context.Context) (string, error) {
	if c.tokens != nil {
		if data, err := c.tokens.Get(ctx, c.tokenKey()); err == nil && len(data) > 0 {
			return string(data), nil
		}
	}
	return c.refreshToken(ctx)
}

// refreshToken calls fn get_token and caches the result.
func (c *TantoooClient) refreshToken(ctx context.Context) (string, error) {
	const op = "tantooo.get_token"

	resp, err := c.post(ctx, op, map[string]interface{}{
		"fn":         "get_token",
		"api_secret": c.apiSecret,
	}, "")
	if err != nil {
		return "", err
	}
	if resp.Msg != tantoooMsgOK {
		return "", NewError(KindAuthExpired, op, fmt.Errorf("msg %d: %s", resp.Msg, resp.Message))
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.Token == "" {
		return "", NewError(KindInvalidResponse, op, fmt.Errorf("missing token in response"))
	}

	if c.tokens != nil {
		if err := c.tokens.Set(ctx, c.tokenKey(), []byte(data.Token), tantoooTokenTTL); err != nil {
			log.Printf("[TantoooClient] Failed to cache token for license %d: %v", c.licenseID, err)
		}
	}
	return data.Token, nil
}

// call performs one RPC. Authed calls hitting msg 150 re-authenticate and
// retry exactly once inline; a second 150 surfaces as KindAuthExpired.
func (c *TantoooClient) call(ctx context.Context, fn string, params map[string]interface{}, authed bool) (*tantoooResponse, error) {
	op := "tantooo." + fn

	body := map[string]interface{}{"fn": fn}
	for k, v := range params {
		body[k] = v
	}

	for attempt := 0; attempt < 2; attempt++ {
		var bearer string
		if authed {
			var err error
			if bearer, err = c.token(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.post(ctx, op, body, bearer)
		if err != nil {
			return nil, err
		}

		switch resp.Msg {
		case tantoooMsgOK:
			return resp, nil
		case tantoooMsgTokenExpired:
			if !authed || attempt > 0 {
				return nil, NewError(KindAuthExpired, op, fmt.Errorf("msg 150: %s", resp.Message))
			}
			log.Printf("[TantoooClient] Token expired for license %d, re-authenticating", c.licenseID)
			if _, err := c.refreshToken(ctx); err != nil {
				return nil, err
			}
		case tantoooMsgItemNotFound:
			return nil, NewError(KindNotFound, op, fmt.Errorf("msg 4: %s", resp.Message))
		default:
			return nil, NewError(KindInvalidResponse, op, fmt.Errorf("msg %d: %s", resp.Msg, resp.Message))
		}
	}

	return nil, NewError(KindAuthExpired, op, errors.New("token refresh loop exhausted"))
}

// post sends one request to the single RPC endpoint.
func (c *TantoooClient) post(ctx context.Context, op string, body map[string]interface{}, bearer string) (*tantoooResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, NewError(KindInvalidResponse, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(raw))
	if err != nil {
		return nil, NewError(KindUnreachable, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewError(KindUnreachable, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(KindUnreachable, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(op, resp.Status, resp.StatusCode, data)
	}

	var parsed tantoooResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, NewError(KindInvalidResponse, op, err)
	}
	return &parsed, nil
}

// Ping performs a lightweight connectivity probe (unauthed one-item listing).
func (c *TantoooClient) Ping(ctx context.Context) error {
	_, err := c.FetchProducts(ctx, 1, 1)
	return err
}

// FetchProducts returns one page of the product listing.
func (c *TantoooClient) FetchProducts(ctx context.Context, page, perPage int) (*ProductPage, error) {
	resp, err := c.call(ctx, "get_products", map[string]interface{}{
		"page":     page,
		"per_page": perPage,
	}, false)
	if err != nil {
		return nil, err
	}

	var items []RawProduct
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &items); err != nil {
			return nil, NewError(KindInvalidResponse, "tantooo.get_products", err)
		}
	}
	return &ProductPage{Items: items, Total: resp.Total}, nil
}

// PushStock updates the stock quantity for one item.
func (c *TantoooClient) PushStock(ctx context.Context, code string, qty float64) error {
	_, err := c.call(ctx, "update_product_qty", map[string]interface{}{
		"code": code,
		"qty":  qty,
	}, true)
	return err
}

// PushPrice updates the price for one item.
func (c *TantoooClient) PushPrice(ctx context.Context, code string, price float64) error {
	_, err := c.call(ctx, "update_product_price", map[string]interface{}{
		"code":  code,
		"price": price,
	}, true)
	return err
}

// CodeFields returns the field-probe priority for Tantooo listings.
func (c *TantoooClient) CodeFields() []string {
	return []string{"code", "barcode", "item_code"}
}

var _ StoreAdapter = (*TantoooClient)(nil)
