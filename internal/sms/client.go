// Package sms sends text messages through an HTTP SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kidshop/internal/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrNotConfigured is returned when the gateway URL or key is missing
var ErrNotConfigured = errors.New("sms gateway not configured")

// StatusError is a non-2xx answer from the gateway
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sms gateway returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether a retry may succeed
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// SendRequest is the gateway payload for one message
type SendRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Text    string `json:"text"`
	Unicode bool   `json:"unicode"`
}

// SendResponse is the gateway answer
type SendResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Result describes a delivered message
type Result struct {
	MessageID string
	Attempts  int
}

// Client talks to the SMS gateway
type Client struct {
	baseURL     string
	apiKey      string
	sender      string
	maxAttempts int
	httpClient  *http.Client
	limiter     *rate.Limiter

	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewClient creates a new SMS client from configuration
func NewClient(cfg config.SMSConfig) *Client {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 3
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		sender:      cfg.Sender,
		maxAttempts: attempts,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter:         rate.NewLimiter(rate.Limit(perSec), 1),
		initialInterval: 500 * time.Millisecond,
		maxInterval:     5 * time.Second,
	}
}

// WithBackoff overrides the retry intervals
func (c *Client) WithBackoff(initial, max time.Duration) *Client {
	c.initialInterval = initial
	c.maxInterval = max
	return c
}

// Configured reports whether the client can send
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// Send delivers one message, retrying transient failures with exponential backoff.
// 4xx answers other than 429 are not retried.
func (c *Client) Send(ctx context.Context, phone, text string) (*Result, error) {
	if !c.Configured() {
		return &Result{}, ErrNotConfigured
	}

	to := NormalizePhone(phone)
	if to == "" {
		return &Result{}, fmt.Errorf("invalid phone number %q", phone)
	}

	req := SendRequest{
		To:      to,
		From:    c.sender,
		Text:    text,
		Unicode: !isASCII(text),
	}

	result := &Result{}
	operation := func() error {
		result.Attempts++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.post(ctx, req)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.Temporary() {
				return backoff.Permanent(err)
			}
			log.Warn().Err(err).Str("to", to).Int("attempt", result.Attempts).Msg("SMS send attempt failed")
			return err
		}
		result.MessageID = resp.ID
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return result, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, payload SendRequest) (*SendResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var out SendResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return &out, nil
}

// NormalizePhone turns local Georgian numbers into E.164 without the plus sign.
// "599 12-34-56" and "+995599123456" both become "995599123456".
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	d = strings.TrimPrefix(d, "00")
	switch {
	case len(d) == 9 && d[0] == '5':
		return "995" + d
	case len(d) == 12 && strings.HasPrefix(d, "995"):
		return d
	case len(d) >= 10 && len(d) <= 15:
		return d
	}
	return ""
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
