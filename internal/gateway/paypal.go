// Package gateway talks to the external payment gateway.  Only the two
// calls needed by the payment state machine are exposed: opening an order
// for an amount and capturing it once the buyer has approved it.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ArRuslan/ticketer/internal/model"
)

// SandboxURL is PayPal's sandbox API root.
const SandboxURL = "https://api-m.sandbox.paypal.com"

// ErrUnexpectedResponse is returned when the gateway answers with a status
// or body the client cannot interpret.
var ErrUnexpectedResponse = errors.New("gateway: unexpected response")

// PayPal is a minimal orders-API client.  Access tokens are obtained with
// the client-credentials grant and cached until they expire.
type PayPal struct {
	base     string
	currency string
	http     *http.Client
}

// Config holds the PayPal credentials and endpoint.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Currency     string
	// Timeout bounds each HTTP exchange, token fetch included.
	Timeout time.Duration
}

// NewPayPal builds a client.  Empty BaseURL and Currency default to the
// sandbox and USD.
func NewPayPal(cfg Config) *PayPal {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = SandboxURL
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// The token source uses the context's client for token fetches.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	client := cc.Client(ctx)
	client.Timeout = timeout
	return &PayPal{base: base, currency: currency, http: client}
}

type orderAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	Amount orderAmount `json:"amount"`
}

type createOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateOrder opens a CAPTURE order for amountCents and returns its id.
func (p *PayPal) CreateOrder(ctx context.Context, amountCents int64) (string, error) {
	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Amount: orderAmount{CurrencyCode: p.currency, Value: model.FormatCents(amountCents)},
		}},
	}
	status, resp, err := p.post(ctx, p.base+"/v2/checkout/orders", body)
	if err != nil {
		return "", err
	}
	if status/100 != 2 || resp.ID == "" {
		return "", fmt.Errorf("%w: create order status %d", ErrUnexpectedResponse, status)
	}
	return resp.ID, nil
}

// CaptureOrder captures an approved order.  It reports true only when the
// gateway confirms the capture is COMPLETED; a not yet approved order is
// (false, nil).
func (p *PayPal) CaptureOrder(ctx context.Context, orderID string) (bool, error) {
	status, resp, err := p.post(ctx, p.base+"/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", struct{}{})
	if err != nil {
		return false, err
	}
	if status >= 500 {
		return false, fmt.Errorf("%w: capture status %d", ErrUnexpectedResponse, status)
	}
	return (status == http.StatusOK || status == http.StatusCreated) && resp.Status == "COMPLETED", nil
}

func (p *PayPal) post(ctx context.Context, endpoint string, payload interface{}) (int, orderResponse, error) {
	var out orderResponse
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, out, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return 0, out, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := p.http.Do(req)
	if err != nil {
		return 0, out, fmt.Errorf("gateway request: %w", err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return res.StatusCode, out, err
	}
	if len(raw) > 0 && res.StatusCode/100 == 2 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return res.StatusCode, out, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
	}
	return res.StatusCode, out, nil
}
