package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"travel-sales-service/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokenCache is an in-memory TokenCache for tests
type fakeTokenCache struct {
	mu    sync.Mutex
	token string
	ttl   time.Duration
	locks map[string]bool
}

func newFakeTokenCache() *fakeTokenCache {
	return &fakeTokenCache{locks: make(map[string]bool)}
}

func (f *fakeTokenCache) GetGatewayToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeTokenCache) SetGatewayToken(ctx context.Context, token string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	f.ttl = ttl
	return nil
}

func (f *fakeTokenCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[key] {
		return false, nil
	}
	f.locks[key] = true
	return true, nil
}

func (f *fakeTokenCache) ReleaseLock(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, key)
	return nil
}

func newTestClient(baseURL string, cache TokenCache) *Client {
	cfg := config.GatewayConfig{
		BaseURL:        baseURL,
		TokenService:   "svc-token",
		TokenSecret:    "svc-secret",
		CallbackURL:    "http://localhost:8080/api/v1/gateway/callback",
		TimeoutSeconds: 5,
	}
	business := config.BusinessConfig{Currency: 2, ContactPhone: "79871000"}
	return NewClient(cfg, business, cache)
}

func TestAuthenticateCachesToken(t *testing.T) {
	var loginCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login", r.URL.Path)
		require.Equal(t, "svc-token", r.Header.Get("tcTokenService"))
		require.Equal(t, "svc-secret", r.Header.Get("tcTokenSecret"))
		loginCalls++

		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": 0, "status": 1, "message": "ok",
			"values": map[string]interface{}{
				"accessToken":      "tok-123",
				"expiresInMinutes": 60,
			},
		})
	}))
	defer srv.Close()

	cache := newFakeTokenCache()
	c := newTestClient(srv.URL, cache)

	token, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, 1, loginCalls)
	assert.Equal(t, "tok-123", cache.token)
	assert.Equal(t, 55*time.Minute, cache.ttl)

	// second acquisition hits the cache, not the provider
	token, err = c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, 1, loginCalls)
}

func TestAuthenticateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": 1, "status": 0, "message": "credenciales inválidas", "values": false,
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, newFakeTokenCache())

	_, err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credenciales inválidas")
}

func TestGenerateQR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": 0, "status": 1, "message": "ok",
				"values": map[string]interface{}{
					"accessToken":      "tok-qr",
					"expiresInMinutes": 30,
				},
			})
		case "/generate-qr":
			require.Equal(t, "Bearer tok-qr", r.Header.Get("Authorization"))

			var req QRRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "PAGO-42-ABCDEF12", req.PaymentNumber)
			assert.Equal(t, 4, req.PaymentMethod)
			assert.Equal(t, 150.0, req.Amount)

			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": 0, "status": 1, "message": "ok",
				"values": map[string]interface{}{
					"transactionId":  "pf-777",
					"qrBase64":       "aW1hZ2U=",
					"checkoutUrl":    "https://checkout.example/pf-777",
					"expirationDate": "2026-09-01 18:30:00",
				},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, newFakeTokenCache())

	req := c.BuildQRRequest("PAGO-42-ABCDEF12", "Ana Rojas", "1234567", "ana@example.com", "2", "Viaje: Uyuni", decimal.RequireFromString("150"))
	result, err := c.GenerateQR(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "pf-777", result.TransactionID)
	assert.Equal(t, "aW1hZ2U=", result.QRBase64)
	assert.Equal(t, "https://checkout.example/pf-777", result.CheckoutURL)
	assert.Equal(t, "2026-09-01 18:30:00", result.ExpirationDate)
}

func TestGenerateQRRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": 0, "status": 1, "message": "ok",
				"values": map[string]interface{}{"accessToken": "t", "expiresInMinutes": 30},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": 1, "status": 0, "message": "monto inválido", "values": false,
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, newFakeTokenCache())

	_, err := c.GenerateQR(context.Background(), c.BuildQRRequest("PAGO-1-X", "A", "", "", "1", "p", decimal.Zero))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monto inválido")
}

func TestBuildQRRequest(t *testing.T) {
	c := newTestClient("http://unused", newFakeTokenCache())

	req := c.BuildQRRequest("PAGO-7-AAAA1111", "Luis Mamani", "", "luis@example.com", "9", "Viaje: Salar", decimal.RequireFromString("367.21"))

	assert.Equal(t, 367.21, req.Amount)
	assert.Equal(t, "S/N", req.DocumentID)
	assert.Equal(t, 2, req.Currency)
	assert.Equal(t, "79871000", req.PhoneNumber)
	require.Len(t, req.OrderDetail, 1)
	assert.Equal(t, 367.21, req.OrderDetail[0].Total)
	assert.Equal(t, 1, req.OrderDetail[0].Quantity)
}

func TestBuildQRRequestTestAmountOverride(t *testing.T) {
	c := newTestClient("http://unused", newFakeTokenCache())
	c.cfg.TestAmount = 0.1

	req := c.BuildQRRequest("PAGO-7-BBBB2222", "Luis Mamani", "123", "luis@example.com", "9", "Viaje: Salar", decimal.RequireFromString("367.21"))

	assert.Equal(t, 0.1, req.Amount)
	assert.Equal(t, 0.1, req.OrderDetail[0].Price)
	assert.Equal(t, 0.1, req.OrderDetail[0].Total)
}
