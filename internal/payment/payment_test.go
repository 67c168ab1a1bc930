package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"kidshop/internal/config"
	"kidshop/pkg/models"
)

func TestVerifyCallback(t *testing.T) {
	body := []byte(`{"id":"pay_1","order_id":"KS-20250101-ABC123","status":"success"}`)
	secret := "whsec"
	good := Sign(body, secret)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		want      bool
	}{
		{"valid", body, good, secret, true},
		{"valid with prefix", body, "sha256=" + good, secret, true},
		{"tampered body", []byte(`{"id":"pay_1","status":"success"}`), good, secret, false},
		{"wrong secret", body, good, "other", false},
		{"not hex", body, "zz-not-hex", secret, false},
		{"empty signature", body, "", secret, false},
		{"empty secret", body, good, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyCallback(tt.body, tt.signature, tt.secret); got != tt.want {
				t.Errorf("VerifyCallback() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapStatus(t *testing.T) {
	tests := map[string]string{
		"success":    models.PaymentStatusPaid,
		"COMPLETED":  models.PaymentStatusPaid,
		"captured":   models.PaymentStatusPaid,
		"failed":     models.PaymentStatusFailed,
		"Declined":   models.PaymentStatusFailed,
		"expired":    models.PaymentStatusFailed,
		"rejected":   models.PaymentStatusFailed,
		"processing": models.PaymentStatusPending,
		"":           models.PaymentStatusPending,
	}
	for in, want := range tests {
		if got := MapStatus(in); got != want {
			t.Errorf("MapStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreatePaymentAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/payments":
			var req createRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Amount != 12550 || req.OrderID != "KS-1" || req.Language != "en" {
				t.Errorf("unexpected create request %+v", req)
			}
			json.NewEncoder(w).Encode(createResponse{ID: "pay_1", RedirectURL: "https://pay.example/p/1"})
		case r.Method == http.MethodGet && r.URL.Path == "/payments/pay_1":
			json.NewEncoder(w).Encode(statusPayload{ID: "pay_1", OrderID: "KS-1", Status: "captured", Amount: 12550, Currency: "GEL"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(config.PaymentConfig{Provider: "test", BaseURL: srv.URL, APIKey: "key"}, "")
	order := &models.Order{OrderNumber: "KS-1", TotalAmount: 12550, Currency: "GEL", Language: models.LangEn}

	session, err := c.CreatePayment(context.Background(), order, "https://shop.example/return")
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if session.ExternalID != "pay_1" || session.RedirectURL == "" {
		t.Errorf("unexpected session %+v", session)
	}

	res, err := c.PaymentStatus(context.Background(), "pay_1")
	if err != nil {
		t.Fatalf("PaymentStatus: %v", err)
	}
	if res.Status != models.PaymentStatusPaid || res.OrderNumber != "KS-1" || res.Provider != "test" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestParseCallback(t *testing.T) {
	c := NewClient(config.PaymentConfig{Provider: "test"}, "")
	if _, err := c.ParseCallback([]byte(`{}`)); err == nil {
		t.Error("expected error for empty payload")
	}
	res, err := c.ParseCallback([]byte(`{"id":"pay_2","order_id":"KS-2","status":"declined"}`))
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}
	if res.Status != models.PaymentStatusFailed || res.ExternalID != "pay_2" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(config.PaymentConfig{}, "")
	if _, err := c.PaymentStatus(context.Background(), "x"); err != ErrNotConfigured {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
