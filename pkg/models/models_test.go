package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		input    string
		expected Language
	}{
		{"", LangKa},
		{"ka", LangKa},
		{"en", LangEn},
		{"EN", LangEn},
		{"en-US", LangEn},
		{"ru_RU", LangRu},
		{" ru ", LangRu},
		{"de", LangKa},
		{"-en", LangKa},
	}

	for _, test := range tests {
		if got := ParseLanguage(test.input); got != test.expected {
			t.Errorf("ParseLanguage(%q) = %q, expected %q", test.input, got, test.expected)
		}
	}
}

func TestLocalizedTextFallback(t *testing.T) {
	tests := []struct {
		name     string
		text     LocalizedText
		lang     Language
		expected string
	}{
		{"exact", LocalizedText{Ka: "სათამაშო", En: "Toy", Ru: "Игрушка"}, LangRu, "Игрушка"},
		{"falls back to ka", LocalizedText{Ka: "სათამაშო", En: "Toy"}, LangRu, "სათამაშო"},
		{"falls back past empty ka", LocalizedText{En: "Toy"}, LangRu, "Toy"},
		{"unknown language reads ka", LocalizedText{Ka: "სათამაშო", En: "Toy"}, Language("de"), "სათამაშო"},
		{"empty", LocalizedText{}, LangEn, ""},
	}

	for _, test := range tests {
		if got := test.text.Get(test.lang); got != test.expected {
			t.Errorf("%s: Get(%q) = %q, expected %q", test.name, test.lang, got, test.expected)
		}
	}
}

func TestLocalizedTextMissing(t *testing.T) {
	text := LocalizedText{Ka: "ბურთი", Ru: "  "}
	missing := text.Missing()
	if len(missing) != 2 || missing[0] != LangEn || missing[1] != LangRu {
		t.Errorf("Missing() = %v, expected [en ru]", missing)
	}
	if text.IsEmpty() {
		t.Error("IsEmpty() = true for text with ka")
	}
	if !(LocalizedText{}).IsEmpty() {
		t.Error("IsEmpty() = false for zero value")
	}

	text.Set(LangEn, "Ball")
	if text.En != "Ball" {
		t.Errorf("Set(en) stored %q", text.En)
	}
}

func TestLocalizedTextScan(t *testing.T) {
	var text LocalizedText
	if err := text.Scan([]byte(`{"ka":"ა","en":"a"}`)); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if text.Ka != "ა" || text.En != "a" || text.Ru != "" {
		t.Errorf("Scan produced %+v", text)
	}
	if err := text.Scan(nil); err != nil || !text.IsEmpty() {
		t.Errorf("Scan(nil) = %v, %+v", err, text)
	}
	if err := text.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}

	v, err := LocalizedText{Ka: "ა"}.Value()
	if err != nil {
		t.Fatal(err)
	}
	var back map[string]string
	if err := json.Unmarshal([]byte(v.(string)), &back); err != nil || back["ka"] != "ა" {
		t.Errorf("Value() = %v", v)
	}
}

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		price, sale int64
		expected    int64
	}{
		{5000, 0, 5000},
		{5000, 3500, 3500},
		{5000, 5000, 5000},
		{5000, 6000, 5000},
	}

	for _, test := range tests {
		p := &Product{Price: test.price, SalePrice: test.sale}
		if got := p.EffectivePrice(); got != test.expected {
			t.Errorf("EffectivePrice(price=%d, sale=%d) = %d, expected %d", test.price, test.sale, got, test.expected)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		tetri    int64
		expected string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{12550, "125.50"},
		{100, "1.00"},
		{-250, "-2.50"},
	}

	for _, test := range tests {
		if got := FormatAmount(test.tetri); got != test.expected {
			t.Errorf("FormatAmount(%d) = %q, expected %q", test.tetri, got, test.expected)
		}
	}
}

func TestParseList(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", []string{}},
		{"599123456", []string{"599123456"}},
		{"599123456,599654321", []string{"599123456", "599654321"}},
		{" 599123456 , 599654321 ", []string{"599123456", "599654321"}},
		{"599123456,,599654321", []string{"599123456", "599654321"}},
	}

	for _, test := range tests {
		result := ParseList(test.input)
		if len(result) != len(test.expected) {
			t.Errorf("ParseList(%q) returned %d items, expected %d", test.input, len(result), len(test.expected))
			continue
		}
		for i, item := range result {
			if item != test.expected[i] {
				t.Errorf("ParseList(%q)[%d] = %q, expected %q", test.input, i, item, test.expected[i])
			}
		}
	}
}

func TestOrderAwaitsOnlinePayment(t *testing.T) {
	tests := []struct {
		method, status string
		expected       bool
	}{
		{PaymentMethodCard, PaymentStatusPending, true},
		{PaymentMethodCard, PaymentStatusFailed, true},
		{PaymentMethodCard, PaymentStatusPaid, false},
		{PaymentMethodCashOnDelivery, PaymentStatusPending, false},
		{PaymentMethodBankTransfer, PaymentStatusPending, false},
	}

	for _, test := range tests {
		o := &Order{PaymentMethod: test.method, PaymentStatus: test.status}
		if got := o.AwaitsOnlinePayment(); got != test.expected {
			t.Errorf("AwaitsOnlinePayment(%s, %s) = %v, expected %v", test.method, test.status, got, test.expected)
		}
	}
}

func TestChannelEnabled(t *testing.T) {
	s := &NotificationSettings{AdminSMSEnabled: true, InAppEnabled: true}
	for channel, expected := range map[string]bool{
		ChannelAdminSMS:      true,
		ChannelCustomerSMS:   false,
		ChannelCustomerEmail: false,
		ChannelInApp:         true,
		"fax":                false,
	} {
		if got := s.ChannelEnabled(channel); got != expected {
			t.Errorf("ChannelEnabled(%s) = %v, expected %v", channel, got, expected)
		}
	}
}

func TestCartExpired(t *testing.T) {
	now := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name      string
		expiresAt *time.Time
		expected  bool
	}{
		{"no expiry", nil, false},
		{"future", &future, false},
		{"exactly now", &now, true},
		{"past", &past, true},
	}

	for _, test := range tests {
		cart := Cart{ExpiresAt: test.expiresAt}
		if got := cart.Expired(now); got != test.expected {
			t.Errorf("%s: Expired = %v, expected %v", test.name, got, test.expected)
		}
	}
}
