package config

import (
	"testing"
	"time"
)

func TestGetDuration(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"", 15 * time.Minute},
		{"1h", time.Hour},
		{"garbage", 15 * time.Minute},
		{"-5m", 15 * time.Minute},
	}

	for _, test := range tests {
		t.Setenv("TEST_DURATION", test.value)
		if got := getDuration("TEST_DURATION", 15*time.Minute); got != test.expected {
			t.Errorf("getDuration(%q) = %v, expected %v", test.value, got, test.expected)
		}
	}
}

func TestGetInt(t *testing.T) {
	t.Setenv("TEST_INT", " 42 ")
	if got := getInt("TEST_INT", 1); got != 42 {
		t.Errorf("getInt = %d, expected 42", got)
	}

	t.Setenv("TEST_INT", "abc")
	if got := getInt("TEST_INT", 1); got != 1 {
		t.Errorf("getInt with invalid value = %d, expected default 1", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("SMS_BASE_URL", "")
	t.Setenv("SMS_API_KEY", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, expected 8080", cfg.Port)
	}
	if cfg.DB.Name != "kidshop" {
		t.Errorf("DB.Name = %q, expected kidshop", cfg.DB.Name)
	}
	if cfg.SMS.Enabled() {
		t.Error("SMS should be disabled without credentials")
	}
	if cfg.SMS.MaxAttempts != 3 {
		t.Errorf("SMS.MaxAttempts = %d, expected 3", cfg.SMS.MaxAttempts)
	}
}

func TestEmailConfigured(t *testing.T) {
	c := EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: "587", SMTPFrom: "shop@example.com"}
	if c.SESConfigured() {
		t.Error("SES should not be configured")
	}
	if !c.SMTPConfigured() {
		t.Error("SMTP should be configured")
	}
}

func TestPaymentURLs(t *testing.T) {
	cfg := &Config{PublicURL: "https://api.kidshop.ge/"}
	if got := cfg.CallbackURL(); got != "https://api.kidshop.ge/api/v1/payments/callback" {
		t.Errorf("CallbackURL = %q", got)
	}
	if got := cfg.PaymentReturnURL(); got != "https://api.kidshop.ge/api/v1/payments/return" {
		t.Errorf("PaymentReturnURL = %q", got)
	}

	cfg.Payment.ReturnURL = "https://kidshop.ge/pay/return"
	if got := cfg.PaymentReturnURL(); got != "https://kidshop.ge/pay/return" {
		t.Errorf("PaymentReturnURL override = %q", got)
	}
}

func TestGetList(t *testing.T) {
	t.Setenv("TEST_LIST", " https://a.ge, ,https://b.ge ")
	got := getList("TEST_LIST")
	if len(got) != 2 || got[0] != "https://a.ge" || got[1] != "https://b.ge" {
		t.Errorf("getList = %v", got)
	}
}
