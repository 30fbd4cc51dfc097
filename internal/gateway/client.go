// Package gateway implements the HTTP client for the QR payment provider.
// The provider wraps every response in the same envelope; error=0 and
// status=1 mean success, anything else is a provider-side failure.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"travel-sales-service/config"
	"travel-sales-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	paymentMethodQR = 4
	documentTypeCI  = 1

	authLockKey = "gateway-auth"
	authLockTTL = 15 * time.Second
)

// envelope is the provider's uniform response wrapper
type envelope struct {
	Error   int             `json:"error"`
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Values  json.RawMessage `json:"values"`
}

func (e *envelope) ok() bool {
	return e.Error == 0 && e.Status == 1
}

type loginValues struct {
	AccessToken      string `json:"accessToken"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
}

// QRRequest is the outbound generate-qr payload
type QRRequest struct {
	PaymentMethod int           `json:"paymentMethod"`
	ClientName    string        `json:"clientName"`
	DocumentType  int           `json:"documentType"`
	DocumentID    string        `json:"documentId"`
	PhoneNumber   string        `json:"phoneNumber"`
	Email         string        `json:"email"`
	PaymentNumber string        `json:"paymentNumber"`
	Amount        float64       `json:"amount"`
	Currency      int           `json:"currency"`
	ClientCode    string        `json:"clientCode"`
	CallbackURL   string        `json:"callbackUrl"`
	OrderDetail   []OrderDetail `json:"orderDetail"`
}

// OrderDetail is one line item of the QR request
type OrderDetail struct {
	Serial   int     `json:"serial"`
	Product  string  `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// QRResult holds the provider's generated QR data. All fields except
// TransactionID are optional in the provider's response.
type QRResult struct {
	TransactionID  string `json:"transactionId"`
	QRBase64       string `json:"qrBase64"`
	CheckoutURL    string `json:"checkoutUrl"`
	DeepLink       string `json:"deepLink"`
	QRContentURL   string `json:"qrContentUrl"`
	UniversalURL   string `json:"universalUrl"`
	ExpirationDate string `json:"expirationDate"`
}

// TokenCache shares the provider access token between instances. The Redis
// client is the production implementation.
type TokenCache interface {
	GetGatewayToken(ctx context.Context) (string, error)
	SetGatewayToken(ctx context.Context, token string, ttl time.Duration) error
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// Client talks to the QR payment provider and caches the access token so
// concurrent requests share one login.
type Client struct {
	cfg        config.GatewayConfig
	business   config.BusinessConfig
	httpClient *http.Client
	tokens     TokenCache
	logger     *zap.Logger
}

// NewClient creates a gateway client
func NewClient(cfg config.GatewayConfig, business config.BusinessConfig, tokens TokenCache) *Client {
	return &Client{
		cfg:      cfg,
		business: business,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		tokens: tokens,
		logger: util.GetLogger(),
	}
}

// AccessToken returns a valid access token, from cache when possible. A
// Redis lock keeps concurrent cache misses from stampeding the login
// endpoint; losers of the lock race wait briefly and re-read the cache.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	token, err := c.tokens.GetGatewayToken(ctx)
	if err != nil {
		c.logger.Warn("Token cache read failed, authenticating directly", zap.Error(err))
	}
	if token != "" {
		return token, nil
	}

	acquired, err := c.tokens.AcquireLock(ctx, authLockKey, authLockTTL)
	if err == nil && !acquired {
		time.Sleep(500 * time.Millisecond)
		if token, err := c.tokens.GetGatewayToken(ctx); err == nil && token != "" {
			return token, nil
		}
	}
	if acquired {
		defer func() {
			if err := c.tokens.ReleaseLock(ctx, authLockKey); err != nil {
				c.logger.Warn("Failed to release auth lock", zap.Error(err))
			}
		}()
	}

	return c.Authenticate(ctx)
}

// Authenticate logs in against the provider and caches the returned token.
// The cache TTL is five minutes shorter than the provider's expiry.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/login", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("tcTokenService", c.cfg.TokenService)
	req.Header.Set("tcTokenSecret", c.cfg.TokenSecret)

	env, err := c.do(req, "login")
	if err != nil {
		util.GatewayAuthTotal.WithLabelValues("error").Inc()
		return "", err
	}
	if !env.ok() {
		util.GatewayAuthTotal.WithLabelValues("rejected").Inc()
		return "", fmt.Errorf("gateway login rejected: %s", env.Message)
	}

	var values loginValues
	if err := json.Unmarshal(env.Values, &values); err != nil {
		return "", fmt.Errorf("gateway login values: %w", err)
	}
	if values.AccessToken == "" {
		return "", fmt.Errorf("gateway login returned empty token")
	}

	ttl := time.Duration(values.ExpiresInMinutes-5) * time.Minute
	if ttl > 0 {
		if err := c.tokens.SetGatewayToken(ctx, values.AccessToken, ttl); err != nil {
			c.logger.Warn("Failed to cache gateway token", zap.Error(err))
		}
	}

	util.GatewayAuthTotal.WithLabelValues("success").Inc()
	c.logger.Info("Gateway authentication succeeded",
		zap.Int("expires_in_minutes", values.ExpiresInMinutes))
	return values.AccessToken, nil
}

// GenerateQR requests a QR code for a payment
func (c *Client) GenerateQR(ctx context.Context, qr *QRRequest) (*QRResult, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(qr)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/generate-qr", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	env, err := c.do(req, "generate-qr")
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, fmt.Errorf("gateway rejected QR request: %s", env.Message)
	}

	var result QRResult
	if err := json.Unmarshal(env.Values, &result); err != nil {
		return nil, fmt.Errorf("gateway QR values: %w", err)
	}

	util.QRGeneratedTotal.Inc()
	c.logger.Info("QR generated",
		zap.String("payment_number", qr.PaymentNumber),
		zap.String("transaction_id", result.TransactionID))
	return &result, nil
}

// BuildQRRequest assembles the provider payload for a payment. When the
// sandbox test amount is configured it replaces the real amount, both at the
// top level and in the single order line.
func (c *Client) BuildQRRequest(paymentNumber, clientName, documentID, email, clientCode, productLabel string, amount decimal.Decimal) *QRRequest {
	amt, _ := amount.Round(2).Float64()
	if c.cfg.TestAmount > 0 {
		amt = c.cfg.TestAmount
	}
	if documentID == "" {
		documentID = "S/N"
	}

	return &QRRequest{
		PaymentMethod: paymentMethodQR,
		ClientName:    clientName,
		DocumentType:  documentTypeCI,
		DocumentID:    documentID,
		PhoneNumber:   c.business.ContactPhone,
		Email:         email,
		PaymentNumber: paymentNumber,
		Amount:        amt,
		Currency:      c.business.Currency,
		ClientCode:    clientCode,
		CallbackURL:   c.cfg.CallbackURL,
		OrderDetail: []OrderDetail{
			{
				Serial:   1,
				Product:  productLabel,
				Quantity: 1,
				Price:    amt,
				Discount: 0,
				Total:    amt,
			},
		},
	}
}

// do executes the request and decodes the envelope, recording latency
func (c *Client) do(req *http.Request, endpoint string) (*envelope, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	util.GatewayRequestLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("gateway %s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("gateway %s response (http %d): %w", endpoint, resp.StatusCode, err)
	}
	return &env, nil
}
