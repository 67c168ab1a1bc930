// Package payment talks to the card payment gateway: it opens hosted payment
// sessions, queries their status and verifies server-to-server callbacks.
package payment

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

	"kidshop/internal/config"
	"kidshop/pkg/models"

	"github.com/google/uuid"
)

// ErrNotConfigured is returned when the gateway has no URL or API key
var ErrNotConfigured = errors.New("payment gateway not configured")

// Session is an opened hosted payment page
type Session struct {
	ExternalID  string `json:"external_id"`
	RedirectURL string `json:"redirect_url"`
}

// Result is the gateway's view of a payment, normalized
type Result struct {
	OrderID        uuid.UUID // set when the caller already knows the order
	ExternalID     string
	OrderNumber    string
	Status         string // models.PaymentStatus*
	ProviderStatus string
	Amount         int64
	Currency       string
	Provider       string
	Raw            []byte
}

type createRequest struct {
	MerchantID  string `json:"merchant_id"`
	OrderID     string `json:"order_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	ReturnURL   string `json:"return_url"`
	CallbackURL string `json:"callback_url,omitempty"`
	Language    string `json:"language"`
}

type createResponse struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
	Status      string `json:"status"`
}

// statusPayload is both the status query answer and the callback body
type statusPayload struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Client is the HTTP client for the gateway
type Client struct {
	provider    string
	baseURL     string
	merchantID  string
	apiKey      string
	callbackURL string
	httpClient  *http.Client
}

// NewClient creates a gateway client. callbackURL is where the gateway posts results.
func NewClient(cfg config.PaymentConfig, callbackURL string) *Client {
	return &Client{
		provider:    cfg.Provider,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		merchantID:  cfg.MerchantID,
		apiKey:      cfg.APIKey,
		callbackURL: callbackURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Provider names the gateway in payment rows
func (c *Client) Provider() string {
	return c.provider
}

// Configured reports whether the gateway can be called
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// CreatePayment opens a payment session for an order
func (c *Client) CreatePayment(ctx context.Context, order *models.Order, returnURL string) (*Session, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	payload := createRequest{
		MerchantID:  c.merchantID,
		OrderID:     order.OrderNumber,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
		Description: "Order " + order.OrderNumber,
		ReturnURL:   returnURL,
		CallbackURL: c.callbackURL,
		Language:    string(order.Language),
	}

	var out createResponse
	if _, err := c.do(ctx, http.MethodPost, "/payments", payload, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.RedirectURL == "" {
		return nil, fmt.Errorf("gateway response is missing id or redirect_url")
	}
	return &Session{ExternalID: out.ID, RedirectURL: out.RedirectURL}, nil
}

// PaymentStatus asks the gateway for the authoritative status of a payment
func (c *Client) PaymentStatus(ctx context.Context, externalID string) (*Result, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var out statusPayload
	raw, err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(externalID), nil, &out)
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = externalID
	}
	res := out.result(c.provider)
	res.Raw = raw
	return res, nil
}

// ParseCallback decodes a verified callback body
func (c *Client) ParseCallback(body []byte) (*Result, error) {
	var p statusPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("invalid callback payload: %w", err)
	}
	if p.ID == "" && p.OrderID == "" {
		return nil, fmt.Errorf("callback payload has neither id nor order_id")
	}
	res := p.result(c.provider)
	res.Raw = body
	return res, nil
}

func (p statusPayload) result(provider string) *Result {
	return &Result{
		ExternalID:     p.ID,
		OrderNumber:    p.OrderID,
		Status:         MapStatus(p.Status),
		ProviderStatus: p.Status,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Provider:       provider,
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) ([]byte, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return raw, nil
}

// MapStatus normalizes a provider status to paid, failed or pending
func MapStatus(providerStatus string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "success", "succeeded", "completed", "captured", "paid":
		return models.PaymentStatusPaid
	case "failed", "rejected", "declined", "expired", "cancelled", "canceled":
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}
