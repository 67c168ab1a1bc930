package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"kidshop/pkg/models"
)

type staticLowStock []models.Product

func (s staticLowStock) ListLowStock() ([]models.Product, error) {
	return s, nil
}

type memAlertLog struct {
	settings models.NotificationSettings
	logs     []models.NotificationLog
}

func (m *memAlertLog) GetSettings(ctx context.Context) (*models.NotificationSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *memAlertLog) CreateLog(ctx context.Context, l *models.NotificationLog) error {
	m.logs = append(m.logs, *l)
	return nil
}

func (m *memAlertLog) IsSentSince(ctx context.Context, kind string, since time.Time) (bool, error) {
	for _, l := range m.logs {
		if l.Kind == kind && l.Status == models.NotificationSent && l.SentAt != nil && !l.SentAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

type countingMailer struct {
	calls int
	err   error
}

func (m *countingMailer) Configured() bool { return true }

func (m *countingMailer) SendEmail(ctx context.Context, to []string, subject, body string) error {
	m.calls++
	return m.err
}

func newAlertFixture() (*AlertService, *memAlertLog, *countingMailer) {
	products := staticLowStock{
		{Name: models.LocalizedText{Ka: "თოჯინა"}, SKU: "DOLL-1", StockQuantity: 1, LowStockThreshold: 2},
		{Name: models.LocalizedText{Ka: "კუბიკები"}, SKU: "BLK-2", StockQuantity: 0, LowStockThreshold: 3},
	}
	logs := &memAlertLog{settings: models.NotificationSettings{AdminEmails: "shop@kidshop.ge,nino@kidshop.ge"}}
	mailer := &countingMailer{}
	return NewAlertService(products, logs, mailer), logs, mailer
}

func TestLowStockAlertOncePerDay(t *testing.T) {
	svc, logs, mailer := newAlertFixture()
	morning := time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return morning }
	ctx := context.Background()

	n, err := svc.SendLowStockAlert(ctx, false)
	if err != nil || n != 2 {
		t.Fatalf("first send = %d, %v", n, err)
	}
	if mailer.calls != 1 || len(logs.logs) != 2 {
		t.Errorf("calls = %d, logs = %d; want 1 and 2", mailer.calls, len(logs.logs))
	}

	svc.now = func() time.Time { return morning.Add(8 * time.Hour) }
	if _, err := svc.SendLowStockAlert(ctx, false); !errors.Is(err, ErrAlreadySentToday) {
		t.Errorf("second send same day = %v, expected ErrAlreadySentToday", err)
	}
	if mailer.calls != 1 {
		t.Errorf("mailer called again on the same day")
	}

	if _, err := svc.SendLowStockAlert(ctx, true); err != nil {
		t.Errorf("forced send: %v", err)
	}
	if mailer.calls != 2 {
		t.Errorf("forced send did not mail, calls = %d", mailer.calls)
	}

	svc.now = func() time.Time { return morning.Add(24 * time.Hour) }
	if _, err := svc.SendLowStockAlert(ctx, false); err != nil {
		t.Errorf("next day: %v", err)
	}
	if mailer.calls != 3 {
		t.Errorf("next day calls = %d, want 3", mailer.calls)
	}
}

func TestLowStockAlertFailureDoesNotCountAsSent(t *testing.T) {
	svc, logs, mailer := newAlertFixture()
	svc.now = func() time.Time { return time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC) }
	mailer.err = errors.New("ses throttled")

	if _, err := svc.SendLowStockAlert(context.Background(), false); err == nil {
		t.Fatal("expected the mailer error")
	}
	for _, l := range logs.logs {
		if l.Status != models.NotificationFailed || l.Kind != models.KindLowStock {
			t.Errorf("log = %+v", l)
		}
	}

	mailer.err = nil
	if _, err := svc.SendLowStockAlert(context.Background(), false); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestLowStockAlertWithNothingLow(t *testing.T) {
	mailer := &countingMailer{}
	svc := NewAlertService(staticLowStock{}, &memAlertLog{}, mailer)

	n, err := svc.SendLowStockAlert(context.Background(), false)
	if err != nil || n != 0 {
		t.Errorf("SendLowStockAlert = %d, %v", n, err)
	}
	if mailer.calls != 0 {
		t.Error("mailed an empty report")
	}
}
