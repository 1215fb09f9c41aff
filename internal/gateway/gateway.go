package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Session is a gateway-side payment session minted for exactly one order.
type Session struct {
	Reference string `json:"id"`
	Amount    int64  `json:"amount"` // smallest currency unit (paise)
	Currency  string `json:"currency"`
}

// SessionCreator mints a payment session on the external gateway. The call
// crosses the network and must honour the context deadline; retrying it is
// safe only because the orchestrator guarantees at most one session per
// order.
type SessionCreator interface {
	CreateSession(ctx context.Context, receipt string, amount float64, currency string) (*Session, error)
}

// HTTPClient talks to a Razorpay-style orders API over HTTPS with basic
// auth. The gateway is an untrusted external party: nothing it returns is
// believed without the signature check in the verification flow.
type HTTPClient struct {
	baseURL   string
	keyID     string
	keySecret string
	httpc     *http.Client
}

// Config holds the gateway credentials and endpoint.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// NewHTTPClient creates a gateway client. A zero Timeout defaults to 10s.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		httpc:     &http.Client{Timeout: timeout},
	}
}

type createSessionRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

// CreateSession creates a gateway order for the given receipt (our order
// ID). Amounts are converted to the smallest currency unit on the wire.
func (c *HTTPClient) CreateSession(ctx context.Context, receipt string, amount float64, currency string) (*Session, error) {
	payload := createSessionRequest{
		Amount:         int64(amount * 100),
		Currency:       currency,
		Receipt:        receipt,
		PaymentCapture: 1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, respBody)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if session.Reference == "" {
		return nil, fmt.Errorf("gateway response missing session id")
	}
	return &session, nil
}
