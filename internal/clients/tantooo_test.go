package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"storesync-api/internal/cache"
	"storesync-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tantoooServer scripts the single RPC endpoint. It records every call and
// answers per fn.
type tantoooServer struct {
	mu    sync.Mutex
	calls []map[string]interface{}

	token string
	// expireTokens invalidates tokens issued before the current one.
	expireOld bool
}

func (s *tantoooServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NotEmpty(t, r.Header.Get("X-API-KEY"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		s.mu.Lock()
		s.calls = append(s.calls, body)
		s.mu.Unlock()

		write := func(msg int, message string, data interface{}) {
			raw, _ := json.Marshal(data)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"msg": msg, "message": message, "data": json.RawMessage(raw),
			})
		}

		switch body["fn"] {
		case "get_token":
			s.mu.Lock()
			s.token = "tok-" + time.Now().Format("150405.000000000")
			token := s.token
			s.mu.Unlock()
			write(0, "ok", map[string]string{"token": token})

		case "update_product_qty", "update_product_price":
			auth := r.Header.Get("Authorization")
			s.mu.Lock()
			current := "Bearer " + s.token
			expireOld := s.expireOld
			s.mu.Unlock()

			if expireOld && auth != current {
				write(150, "token expired", nil)
				return
			}
			if body["code"] == "GHOST" {
				write(4, "item not found", nil)
				return
			}
			write(0, "ok", nil)

		case "get_products":
			write(0, "ok", []map[string]interface{}{{"code": "A-1"}})

		default:
			write(99, "unknown fn", nil)
		}
	}
}

func (s *tantoooServer) fnCalls(fn string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c["fn"] == fn {
			n++
		}
	}
	return n
}

func newTantoooUnderTest(t *testing.T, srv *httptest.Server) (*TantoooClient, cache.Cache) {
	tokens := cache.NewMemoryCache()
	t.Cleanup(func() { tokens.Close() })

	client := NewTantoooClient(model.TenantConfig{
		LicenseID:      7,
		StoreBaseURL:   srv.URL,
		StoreAPIKey:    "key",
		StoreAPISecret: "secret",
	}, 5*time.Second, tokens)
	return client, tokens
}

func TestTantoooClient_TokenLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches token once and reuses it", func(t *testing.T) {
		backend := &tantoooServer{}
		srv := httptest.NewServer(backend.handler(t))
		defer srv.Close()
		client, _ := newTantoooUnderTest(t, srv)

		require.NoError(t, client.PushStock(ctx, "A-1", 5))
		require.NoError(t, client.PushStock(ctx, "A-2", 6))
		require.NoError(t, client.PushPrice(ctx, "A-1", 9.99))

		assert.Equal(t, 1, backend.fnCalls("get_token"))
	})

	t.Run("expired token re-authenticates exactly once and retries", func(t *testing.T) {
		backend := &tantoooServer{}
		srv := httptest.NewServer(backend.handler(t))
		defer srv.Close()
		client, tokens := newTantoooUnderTest(t, srv)

		// A stale cached token: the backend only accepts its current one.
		require.NoError(t, tokens.Set(ctx, "tantooo_token:7", []byte("stale"), time.Hour))
		backend.expireOld = true

		require.NoError(t, client.PushStock(ctx, "A-1", 5))

		assert.Equal(t, 1, backend.fnCalls("get_token"))
		assert.Equal(t, 2, backend.fnCalls("update_product_qty")) // fail + retry

		// The refreshed token was cached for the next job.
		cached, err := tokens.Get(ctx, "tantooo_token:7")
		require.NoError(t, err)
		assert.NotEqual(t, "stale", string(cached))
	})

	t.Run("persistent rejection surfaces as auth error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["fn"] == "get_token" {
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"msg": 0, "data": map[string]string{"token": "tok"},
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"msg": 150, "message": "expired"})
		}))
		defer srv.Close()
		client, _ := newTantoooUnderTest(t, srv)

		err := client.PushStock(ctx, "A-1", 5)
		assert.True(t, IsKind(err, KindAuthExpired))
	})
}

func TestTantoooClient_Calls(t *testing.T) {
	ctx := context.Background()

	t.Run("missing item maps to not-found", func(t *testing.T) {
		backend := &tantoooServer{}
		srv := httptest.NewServer(backend.handler(t))
		defer srv.Close()
		client, _ := newTantoooUnderTest(t, srv)

		err := client.PushStock(ctx, "GHOST", 1)
		assert.True(t, IsKind(err, KindNotFound))
	})

	t.Run("listing parses items and is unauthenticated", func(t *testing.T) {
		backend := &tantoooServer{}
		srv := httptest.NewServer(backend.handler(t))
		defer srv.Close()
		client, _ := newTantoooUnderTest(t, srv)

		page, err := client.FetchProducts(ctx, 1, 50)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "A-1", page.Items[0]["code"])
		assert.Equal(t, 0, backend.fnCalls("get_token"))
	})

	t.Run("connection failure maps to unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // dead endpoint
		client, _ := newTantoooUnderTest(t, srv)

		err := client.Ping(ctx)
		assert.True(t, IsKind(err, KindUnreachable))
	})

	t.Run("unexpected msg maps to invalid response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"msg": 77, "message": "weird"})
		}))
		defer srv.Close()
		client, _ := newTantoooUnderTest(t, srv)

		_, err := client.FetchProducts(ctx, 1, 10)
		assert.True(t, IsKind(err, KindInvalidResponse))
	})
}
