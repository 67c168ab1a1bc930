package orderflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"kidshop/internal/payment"
	"kidshop/internal/sms"
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeOrders struct {
	mu         sync.Mutex
	orders     map[uuid.UUID]*models.Order
	payments   []models.Payment
	stock      map[uuid.UUID]int
	decrements int
}

func newFakeOrders(orders ...*models.Order) *fakeOrders {
	f := &fakeOrders{orders: map[uuid.UUID]*models.Order{}, stock: map[uuid.UUID]int{}}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeOrders) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrders) GetByGatewayPaymentID(ctx context.Context, externalID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.GatewayPaymentID != "" && o.GatewayPaymentID == externalID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrders) flag(o *models.Order, channel string) *bool {
	switch channel {
	case models.ChannelAdminSMS:
		return &o.AdminSMSSent
	case models.ChannelCustomerSMS:
		return &o.CustomerSMSSent
	case models.ChannelCustomerEmail:
		return &o.CustomerEmailSent
	case models.ChannelInApp:
		return &o.InAppNotified
	}
	return nil
}

func (f *fakeOrders) ClaimFlag(ctx context.Context, orderID uuid.UUID, channel string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	flag := f.flag(f.orders[orderID], channel)
	if *flag {
		return false, nil
	}
	*flag = true
	return true, nil
}

func (f *fakeOrders) ReleaseFlag(ctx context.Context, orderID uuid.UUID, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.flag(f.orders[orderID], channel) = false
	return nil
}

func (f *fakeOrders) MarkPaid(ctx context.Context, orderID uuid.UUID, externalID string, paidAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.orders[orderID]
	if o.PaymentStatus == models.PaymentStatusPaid {
		return false, nil
	}
	o.PaymentStatus = models.PaymentStatusPaid
	if o.Status == models.OrderStatusPending {
		o.Status = models.OrderStatusConfirmed
	}
	o.PaidAt = &paidAt
	if externalID != "" {
		o.GatewayPaymentID = externalID
	}
	return true, nil
}

func (f *fakeOrders) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.orders[orderID]
	if o.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	o.PaymentStatus = models.PaymentStatusFailed
	return true, nil
}

func (f *fakeOrders) DecrementStock(ctx context.Context, orderID uuid.UUID) (bool, []uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.orders[orderID]
	if o.StockDecremented || o.Status == models.OrderStatusCancelled {
		return false, nil, nil
	}
	o.StockDecremented = true
	f.decrements++
	var oversold []uuid.UUID
	for _, item := range o.Items {
		if item.ProductID == nil {
			continue
		}
		if f.stock[*item.ProductID] < item.Quantity {
			oversold = append(oversold, *item.ProductID)
			continue
		}
		f.stock[*item.ProductID] -= item.Quantity
	}
	return true, oversold, nil
}

func (f *fakeOrders) RecordPayment(ctx context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, *p)
	return nil
}

type fakeNotes struct {
	mu       sync.Mutex
	settings models.NotificationSettings
	logs     []models.NotificationLog
	inApp    []models.InAppNotification
	inAppErr error
}

func newFakeNotes() *fakeNotes {
	return &fakeNotes{settings: models.NotificationSettings{
		AdminPhones:          "599000001, 599000002",
		AdminSMSEnabled:      true,
		CustomerSMSEnabled:   true,
		CustomerEmailEnabled: true,
		InAppEnabled:         true,
	}}
}

func (f *fakeNotes) GetSettings(ctx context.Context) (*models.NotificationSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.settings
	return &s, nil
}

func (f *fakeNotes) CreateLog(ctx context.Context, l *models.NotificationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *l)
	return nil
}

func (f *fakeNotes) CreateInApp(ctx context.Context, n *models.InAppNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inAppErr != nil {
		return f.inAppErr
	}
	f.inApp = append(f.inApp, *n)
	return nil
}

func (f *fakeNotes) logsFor(channel, status string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.logs {
		if l.Channel == channel && l.Status == status {
			n++
		}
	}
	return n
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
	fail map[string]error
}

func (f *fakeSMS) Configured() bool { return true }

func (f *fakeSMS) Send(ctx context.Context, phone, text string) (*sms.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[phone]; err != nil {
		return &sms.Result{Attempts: 3}, err
	}
	f.sent = append(f.sent, phone+"|"+text)
	return &sms.Result{MessageID: "m", Attempts: 1}, nil
}

func (f *fakeSMS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeEmail struct {
	mu       sync.Mutex
	sent     []string
	failures int // fail this many calls before succeeding
	calls    int
}

func (f *fakeEmail) Configured() bool { return true }

func (f *fakeEmail) SendEmail(ctx context.Context, to []string, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, to[0]+"|"+subject)
	return nil
}

type fakeHub struct {
	mu     sync.Mutex
	events int
}

func (f *fakeHub) Broadcast(event string, payload interface{}) {
	f.mu.Lock()
	f.events++
	f.mu.Unlock()
}

type fakeGateway struct {
	result *payment.Result
	err    error
}

func (f *fakeGateway) Configured() bool { return true }

func (f *fakeGateway) PaymentStatus(ctx context.Context, externalID string) (*payment.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.ExternalID = externalID
	return &r, nil
}

type harness struct {
	pipeline *Pipeline
	orders   *fakeOrders
	notes    *fakeNotes
	sms      *fakeSMS
	email    *fakeEmail
	hub      *fakeHub
	gateway  *fakeGateway
}

func newHarness(orders ...*models.Order) *harness {
	h := &harness{
		orders:  newFakeOrders(orders...),
		notes:   newFakeNotes(),
		sms:     &fakeSMS{fail: map[string]error{}},
		email:   &fakeEmail{},
		hub:     &fakeHub{},
		gateway: &fakeGateway{},
	}
	h.pipeline = New(Deps{
		Orders:        h.orders,
		Notifications: h.notes,
		SMS:           h.sms,
		Email:         h.email,
		Hub:           h.hub,
		Gateway:       h.gateway,
	}).WithEmailRetry(3, time.Millisecond, 2*time.Millisecond)
	return h
}

func newOrder(method string) *models.Order {
	productID := uuid.New()
	return &models.Order{
		BaseModel:      models.BaseModel{ID: uuid.New()},
		OrderNumber:    "KS-20250101-" + strings.ToUpper(uuid.NewString()[:6]),
		Status:         models.OrderStatusPending,
		PaymentStatus:  models.PaymentStatusPending,
		PaymentMethod:  method,
		Language:       models.LangEn,
		CustomerName:   "Nino",
		CustomerPhone:  "599123456",
		CustomerEmail:  "nino@example.com",
		Subtotal:       12000,
		ShippingAmount: 500,
		TotalAmount:    12500,
		Currency:       "GEL",
		Items: []models.OrderItem{{
			ProductID:   &productID,
			ProductName: models.LocalizedText{Ka: "თოჯინა", En: "Doll"},
			UnitPrice:   6000,
			Quantity:    2,
			Total:       12000,
		}},
	}
}

func statusOf(t *testing.T, r *Report, channel string) string {
	t.Helper()
	c, ok := r.Channel(channel)
	if !ok {
		t.Fatalf("no result for channel %s", channel)
	}
	return c.Status
}

func TestOrderPlacedFansOutCashOrder(t *testing.T) {
	order := newOrder(models.PaymentMethodCashOnDelivery)
	h := newHarness(order)

	report, err := h.pipeline.OrderPlaced(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("OrderPlaced: %v", err)
	}
	for _, ch := range models.AllChannels {
		if got := statusOf(t, report, ch); got != models.NotificationSent {
			t.Errorf("%s = %s, want sent", ch, got)
		}
	}
	// two admin phones plus the customer
	if got := h.sms.count(); got != 3 {
		t.Errorf("sms sent = %d, want 3", got)
	}
	if len(h.email.sent) != 1 || !strings.Contains(h.email.sent[0], "Order "+order.OrderNumber+" received") {
		t.Errorf("unexpected emails %v", h.email.sent)
	}
	if len(h.notes.inApp) != 1 || h.hub.events != 1 {
		t.Errorf("in-app = %d, broadcasts = %d", len(h.notes.inApp), h.hub.events)
	}

	stored, _ := h.orders.GetByID(context.Background(), order.ID)
	if !stored.AdminSMSSent || !stored.CustomerSMSSent || !stored.CustomerEmailSent || !stored.InAppNotified {
		t.Errorf("flags not all set: %+v", stored)
	}
}

func TestOrderPlacedTwiceSendsOnce(t *testing.T) {
	order := newOrder(models.PaymentMethodBankTransfer)
	h := newHarness(order)

	if _, err := h.pipeline.OrderPlaced(context.Background(), order.ID); err != nil {
		t.Fatal(err)
	}
	report, err := h.pipeline.OrderPlaced(context.Background(), order.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, ch := range models.AllChannels {
		c, _ := report.Channel(ch)
		if c.Status != models.NotificationSkipped || c.Reason != "already sent" {
			t.Errorf("%s = %+v, want skipped/already sent", ch, c)
		}
	}
	if got := h.sms.count(); got != 3 {
		t.Errorf("sms sent = %d, want 3", got)
	}
	if len(h.email.sent) != 1 {
		t.Errorf("emails = %d, want 1", len(h.email.sent))
	}
}

func TestConcurrentRunsNeverDuplicate(t *testing.T) {
	order := newOrder(models.PaymentMethodCashOnDelivery)
	h := newHarness(order)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.pipeline.OrderPlaced(context.Background(), order.ID)
		}()
	}
	wg.Wait()

	if got := h.sms.count(); got != 3 {
		t.Errorf("sms sent = %d, want 3", got)
	}
	if len(h.email.sent) != 1 {
		t.Errorf("emails = %d, want 1", len(h.email.sent))
	}
	if len(h.notes.inApp) != 1 {
		t.Errorf("in-app = %d, want 1", len(h.notes.inApp))
	}
}

func TestPartialFailureReleasesOnlyFailedChannel(t *testing.T) {
	order := newOrder(models.PaymentMethodCashOnDelivery)
	h := newHarness(order)
	h.sms.fail[order.CustomerPhone] = errors.New("gateway down")
	h.email.failures = 10

	report, err := h.pipeline.OrderPlaced(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("OrderPlaced: %v", err)
	}
	if !report.Failed() {
		t.Error("report should show a failure")
	}
	if got := statusOf(t, report, models.ChannelCustomerSMS); got != models.NotificationFailed {
		t.Errorf("customer sms = %s", got)
	}
	if got := statusOf(t, report, models.ChannelCustomerEmail); got != models.NotificationFailed {
		t.Errorf("customer email = %s", got)
	}
	if c, _ := report.Channel(models.ChannelCustomerEmail); c.Attempts != 3 {
		t.Errorf("email attempts = %d, want 3", c.Attempts)
	}
	if got := statusOf(t, report, models.ChannelAdminSMS); got != models.NotificationSent {
		t.Errorf("admin sms = %s", got)
	}
	if got := statusOf(t, report, models.ChannelInApp); got != models.NotificationSent {
		t.Errorf("in-app = %s", got)
	}

	stored, _ := h.orders.GetByID(context.Background(), order.ID)
	if stored.CustomerSMSSent || stored.CustomerEmailSent {
		t.Error("failed channels must release their flags")
	}
	if !stored.AdminSMSSent || !stored.InAppNotified {
		t.Error("delivered channels must keep their flags")
	}
	if h.notes.logsFor(models.ChannelCustomerSMS, models.NotificationFailed) != 1 {
		t.Error("expected a failed log row for customer sms")
	}
}

func TestEmailRetrySucceedsAfterTransientFailure(t *testing.T) {
	order := newOrder(models.PaymentMethodCashOnDelivery)
	h := newHarness(order)
	h.email.failures = 2

	report, err := h.pipeline.OrderPlaced(context.Background(), order.ID)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := report.Channel(models.ChannelCustomerEmail)
	if c.Status != models.NotificationSent || c.Attempts != 3 {
		t.Errorf("email result = %+v, want sent after 3 attempts", c)
	}
}

func TestDisabledAndMissingRecipientsAreSkipped(t *testing.T) {
	order := newOrder(models.PaymentMethodCashOnDelivery)
	order.CustomerEmail = ""
	h := newHarness(order)
	h.notes.settings.AdminSMSEnabled = false

	report, err := h.pipeline.OrderPlaced(context.Background(), order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c, _ := report.Channel(models.ChannelAdminSMS); c.Status != models.NotificationSkipped || c.Reason != "disabled" {
		t.Errorf("admin sms = %+v", c)
	}
	if c, _ := report.Channel(models.ChannelCustomerEmail); c.Status != models.NotificationSkipped || c.Reason != "no recipient" {
		t.Errorf("customer email = %+v", c)
	}
	if h.notes.logsFor(models.ChannelAdminSMS, models.NotificationSkipped) != 1 {
		t.Error("expected a skipped log row")
	}
	stored, _ := h.orders.GetByID(context.Background(), order.ID)
	if stored.AdminSMSSent || stored.CustomerEmailSent {
		t.Error("skipped channels must not claim flags")
	}
}

func TestCardOrderWaitsForPayment(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	h := newHarness(order)

	report, err := h.pipeline.OrderPlaced(context.Background(), order.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range report.Channels {
		if c.Status != models.NotificationSkipped {
			t.Errorf("%s = %s, want skipped", c.Channel, c.Status)
		}
	}
	if h.sms.count() != 0 || len(h.email.sent) != 0 {
		t.Error("nothing may reach the customer before payment")
	}
	if len(h.notes.inApp) != 1 || h.notes.inApp[0].Kind != kindAwaitingPayment {
		t.Errorf("expected one awaiting-payment entry, got %+v", h.notes.inApp)
	}
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	order.GatewayPaymentID = "pay_1"
	h := newHarness(order)
	h.orders.stock[*order.Items[0].ProductID] = 5

	res := &payment.Result{ExternalID: "pay_1", Status: models.PaymentStatusPaid, Amount: 12500, Provider: "test"}

	first, err := h.pipeline.ConfirmPayment(context.Background(), res, "callback")
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if !first.Transitioned {
		t.Error("first confirmation should transition")
	}
	second, err := h.pipeline.ConfirmPayment(context.Background(), res, "redirect")
	if err != nil {
		t.Fatalf("second ConfirmPayment: %v", err)
	}
	if second.Transitioned {
		t.Error("second confirmation must be a no-op")
	}

	if h.orders.decrements != 1 || h.orders.stock[*order.Items[0].ProductID] != 3 {
		t.Errorf("stock decremented %d times, stock = %d", h.orders.decrements, h.orders.stock[*order.Items[0].ProductID])
	}
	if got := h.sms.count(); got != 3 {
		t.Errorf("sms sent = %d, want 3", got)
	}
	if len(h.email.sent) != 1 || !strings.Contains(h.email.sent[0], "paid") {
		t.Errorf("unexpected emails %v", h.email.sent)
	}

	stored, _ := h.orders.GetByID(context.Background(), order.ID)
	if stored.Status != models.OrderStatusConfirmed || stored.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("order = %s/%s", stored.Status, stored.PaymentStatus)
	}
}

func TestConfirmPaymentOversold(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	h := newHarness(order)
	h.orders.stock[*order.Items[0].ProductID] = 1

	report, err := h.pipeline.ConfirmPayment(context.Background(), &payment.Result{OrderID: order.ID, Status: models.PaymentStatusPaid}, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Oversold) != 1 {
		t.Errorf("oversold = %v", report.Oversold)
	}
	if report.PaymentStatus != models.PaymentStatusPaid {
		t.Error("an oversold paid order is still confirmed")
	}
}

func TestConfirmPaymentAmountMismatch(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	h := newHarness(order)

	_, err := h.pipeline.ConfirmPayment(context.Background(), &payment.Result{OrderNumber: order.OrderNumber, Status: models.PaymentStatusPaid, Amount: 100}, "callback")
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	stored, _ := h.orders.GetByID(context.Background(), order.ID)
	if stored.IsPaid() {
		t.Error("order must not be paid")
	}
}

func TestConfirmPaymentFailed(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	h := newHarness(order)
	res := &payment.Result{OrderNumber: order.OrderNumber, Status: models.PaymentStatusFailed}

	report, err := h.pipeline.ConfirmPayment(context.Background(), res, "callback")
	if err != nil {
		t.Fatal(err)
	}
	if !report.Transitioned || report.PaymentStatus != models.PaymentStatusFailed {
		t.Errorf("unexpected report %+v", report)
	}
	if len(h.email.sent) != 1 || !strings.Contains(h.email.sent[0], "payment failed") {
		t.Errorf("expected failure email, got %v", h.email.sent)
	}
	if h.sms.count() != 0 {
		t.Error("no SMS on payment failure")
	}

	again, err := h.pipeline.ConfirmPayment(context.Background(), res, "callback")
	if err != nil {
		t.Fatal(err)
	}
	if again.Transitioned || len(h.email.sent) != 1 {
		t.Error("repeated failure must not email again")
	}
}

func TestFailedResultIgnoredForPaidOrder(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	order.PaymentStatus = models.PaymentStatusPaid
	h := newHarness(order)

	report, err := h.pipeline.ConfirmPayment(context.Background(), &payment.Result{OrderID: order.ID, Status: models.PaymentStatusFailed}, "callback")
	if err != nil {
		t.Fatal(err)
	}
	if report.Transitioned {
		t.Error("paid is terminal")
	}
	stored, _ := h.orders.GetByID(context.Background(), order.ID)
	if stored.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("payment status = %s", stored.PaymentStatus)
	}
}

func TestPendingResultChangesNothing(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	h := newHarness(order)

	report, err := h.pipeline.ConfirmPayment(context.Background(), &payment.Result{OrderID: order.ID, Status: models.PaymentStatusPending}, "redirect")
	if err != nil {
		t.Fatal(err)
	}
	if report.Transitioned || len(report.Channels) != 0 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestUnknownOrder(t *testing.T) {
	h := newHarness()
	_, err := h.pipeline.ConfirmPayment(context.Background(), &payment.Result{ExternalID: "nope", Status: models.PaymentStatusPaid}, "callback")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestReconcileUsesGatewayStatus(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	order.GatewayPaymentID = "pay_9"
	h := newHarness(order)
	h.gateway.result = &payment.Result{Status: models.PaymentStatusPaid, Amount: 12500}

	report, err := h.pipeline.Reconcile(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !report.Transitioned {
		t.Error("reconcile should confirm the order")
	}
}

func TestReconcileWithoutPayment(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	h := newHarness(order)
	if _, err := h.pipeline.Reconcile(context.Background(), order.ID); !errors.Is(err, ErrNoPayment) {
		t.Fatalf("expected ErrNoPayment, got %v", err)
	}
}

func TestResendSingleChannel(t *testing.T) {
	order := newOrder(models.PaymentMethodCashOnDelivery)
	h := newHarness(order)

	if _, err := h.pipeline.OrderPlaced(context.Background(), order.ID); err != nil {
		t.Fatal(err)
	}
	result, err := h.pipeline.Resend(context.Background(), order.ID, models.ChannelCustomerSMS)
	if err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if result.Status != models.NotificationSent {
		t.Errorf("resend = %+v", result)
	}
	if got := h.sms.count(); got != 4 {
		t.Errorf("sms sent = %d, want 4", got)
	}
	if len(h.email.sent) != 1 {
		t.Error("resend must not touch other channels")
	}
}

func TestResendValidation(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	h := newHarness(order)

	if _, err := h.pipeline.Resend(context.Background(), order.ID, "fax"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("expected ErrUnknownChannel, got %v", err)
	}
	if _, err := h.pipeline.Resend(context.Background(), order.ID, models.ChannelCustomerEmail); !errors.Is(err, ErrAwaitingPayment) {
		t.Errorf("expected ErrAwaitingPayment, got %v", err)
	}
}

func TestInAppFailureReleasesFlag(t *testing.T) {
	order := newOrder(models.PaymentMethodCashOnDelivery)
	h := newHarness(order)
	h.notes.inAppErr = errors.New("db down")

	report, err := h.pipeline.OrderPlaced(context.Background(), order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := statusOf(t, report, models.ChannelInApp); got != models.NotificationFailed {
		t.Errorf("in-app = %s", got)
	}
	stored, _ := h.orders.GetByID(context.Background(), order.ID)
	if stored.InAppNotified {
		t.Error("in-app flag must be released")
	}
}

func TestRedeliverSendsOnlyMissedChannels(t *testing.T) {
	order := newOrder(models.PaymentMethodCashOnDelivery)
	h := newHarness(order)
	h.sms.fail[order.CustomerPhone] = errors.New("gateway down")

	if _, err := h.pipeline.OrderPlaced(context.Background(), order.ID); err != nil {
		t.Fatal(err)
	}
	delete(h.sms.fail, order.CustomerPhone)

	report, err := h.pipeline.Redeliver(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Redeliver: %v", err)
	}
	if got := statusOf(t, report, models.ChannelCustomerSMS); got != models.NotificationSent {
		t.Errorf("customer sms = %s", got)
	}
	if c, _ := report.Channel(models.ChannelAdminSMS); c.Reason != "already sent" {
		t.Errorf("admin sms = %+v, want already sent", c)
	}
	// two admin phones on the first run, the customer on the second
	if got := h.sms.count(); got != 3 {
		t.Errorf("sms sent = %d, want 3", got)
	}
	if len(h.email.sent) != 1 {
		t.Errorf("emails = %d, want 1", len(h.email.sent))
	}
}

func TestRedeliverRefusesUnpaidCardOrder(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	h := newHarness(order)

	if _, err := h.pipeline.Redeliver(context.Background(), order.ID); !errors.Is(err, ErrAwaitingPayment) {
		t.Errorf("expected ErrAwaitingPayment, got %v", err)
	}
}

func TestPaymentForCancelledOrderNeedsRefund(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	order.Status = models.OrderStatusCancelled
	h := newHarness(order)
	productID := *order.Items[0].ProductID
	h.orders.stock[productID] = 10

	res := &payment.Result{OrderID: order.ID, ExternalID: "pay_late", Status: models.PaymentStatusPaid, Amount: 12500}
	report, err := h.pipeline.ConfirmPayment(context.Background(), res, "callback")
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if !report.RefundRequired || report.Kind != kindPaidAfterCancel {
		t.Errorf("report = %+v", report)
	}

	stored, _ := h.orders.GetByID(context.Background(), order.ID)
	if stored.Status != models.OrderStatusCancelled || stored.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("order = %s/%s, want cancelled/paid", stored.Status, stored.PaymentStatus)
	}
	if h.orders.decrements != 0 || h.orders.stock[productID] != 10 {
		t.Errorf("stock taken for a cancelled order: decrements=%d stock=%d", h.orders.decrements, h.orders.stock[productID])
	}
	if h.sms.count() != 0 || len(h.email.sent) != 0 {
		t.Errorf("customer or admin messages sent: sms=%d email=%d", h.sms.count(), len(h.email.sent))
	}
	if len(h.notes.inApp) != 1 || h.notes.inApp[0].Kind != kindPaidAfterCancel {
		t.Fatalf("in-app notices = %+v", h.notes.inApp)
	}
	if got := statusOf(t, report, models.ChannelCustomerSMS); got != models.NotificationSkipped {
		t.Errorf("customer sms = %s", got)
	}

	// A repeated callback records nothing new for staff
	if _, err := h.pipeline.ConfirmPayment(context.Background(), res, "reconcile"); err != nil {
		t.Fatal(err)
	}
	if len(h.notes.inApp) != 1 {
		t.Errorf("in-app notices after repeat = %d, want 1", len(h.notes.inApp))
	}
}

func TestResendAndRedeliverRefuseCancelledOrder(t *testing.T) {
	order := newOrder(models.PaymentMethodCashOnDelivery)
	order.Status = models.OrderStatusCancelled
	h := newHarness(order)

	if _, err := h.pipeline.Resend(context.Background(), order.ID, models.ChannelCustomerSMS); !errors.Is(err, ErrOrderCancelled) {
		t.Errorf("Resend: expected ErrOrderCancelled, got %v", err)
	}
	if _, err := h.pipeline.Redeliver(context.Background(), order.ID); !errors.Is(err, ErrOrderCancelled) {
		t.Errorf("Redeliver: expected ErrOrderCancelled, got %v", err)
	}
}

func TestResendKeepsFlagWhenChannelCannotRun(t *testing.T) {
	order := newOrder(models.PaymentMethodCashOnDelivery)
	h := newHarness(order)

	if _, err := h.pipeline.OrderPlaced(context.Background(), order.ID); err != nil {
		t.Fatal(err)
	}
	h.notes.settings.CustomerSMSEnabled = false

	result, err := h.pipeline.Resend(context.Background(), order.ID, models.ChannelCustomerSMS)
	if err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if result.Status != models.NotificationSkipped || result.Reason != "disabled" {
		t.Errorf("resend = %+v", result)
	}
	stored, _ := h.orders.GetByID(context.Background(), order.ID)
	if !stored.CustomerSMSSent {
		t.Fatal("flag of a delivered message was cleared")
	}

	// With the toggle back on, a sweep finds nothing to send again
	h.notes.settings.CustomerSMSEnabled = true
	before := h.sms.count()
	if _, err := h.pipeline.Redeliver(context.Background(), order.ID); err != nil {
		t.Fatal(err)
	}
	if got := h.sms.count(); got != before {
		t.Errorf("sms sent again: %d -> %d", before, got)
	}
}

func TestRedeliverDoesNotLogBlockedChannels(t *testing.T) {
	order := newOrder(models.PaymentMethodCashOnDelivery)
	order.CustomerEmail = ""
	h := newHarness(order)

	if _, err := h.pipeline.OrderPlaced(context.Background(), order.ID); err != nil {
		t.Fatal(err)
	}
	skippedBefore := h.notes.logsFor(models.ChannelCustomerEmail, models.NotificationSkipped)

	for i := 0; i < 3; i++ {
		report, err := h.pipeline.Redeliver(context.Background(), order.ID)
		if err != nil {
			t.Fatal(err)
		}
		if c, _ := report.Channel(models.ChannelCustomerEmail); c.Reason != "no recipient" {
			t.Errorf("customer email = %+v", c)
		}
	}
	if got := h.notes.logsFor(models.ChannelCustomerEmail, models.NotificationSkipped); got != skippedBefore {
		t.Errorf("skipped rows grew from %d to %d", skippedBefore, got)
	}
}

func TestDeliverable(t *testing.T) {
	notes := newFakeNotes()
	notes.settings.CustomerEmailEnabled = false
	p := New(Deps{Orders: newFakeOrders(), Notifications: notes, Email: &fakeEmail{}})

	channels, err := p.Deliverable(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// no SMS transport and email switched off
	if len(channels) != 1 || channels[0] != models.ChannelInApp {
		t.Errorf("channels = %v, want [in_app]", channels)
	}

	notes.settings.AdminPhones = ""
	notes.settings.CustomerEmailEnabled = true
	h := newHarness()
	h.notes.settings = notes.settings
	channels, _ = h.pipeline.Deliverable(context.Background())
	for _, c := range channels {
		if c == models.ChannelAdminSMS {
			t.Error("admin sms listed without admin phones")
		}
	}
	if len(channels) != 3 {
		t.Errorf("channels = %v, want three", channels)
	}
}

func TestAcceptPaymentConfirmsInBackground(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	h := newHarness(order)
	h.orders.stock[*order.Items[0].ProductID] = 5

	report, err := h.pipeline.AcceptPayment(context.Background(), &payment.Result{OrderNumber: order.OrderNumber, ExternalID: "pay_9", Status: models.PaymentStatusPaid, Amount: 12500}, "callback")
	if err != nil {
		t.Fatalf("AcceptPayment: %v", err)
	}
	if report.Kind != "accepted" || report.OrderID != order.ID {
		t.Errorf("report = %+v", report)
	}

	h.pipeline.Wait()

	stored, _ := h.orders.GetByID(context.Background(), order.ID)
	if !stored.IsPaid() || !stored.CustomerEmailSent {
		t.Errorf("order not confirmed in background: %+v", stored)
	}
	if h.orders.decrements != 1 {
		t.Errorf("decrements = %d", h.orders.decrements)
	}
}

func TestAcceptPaymentReportsProblemsSynchronously(t *testing.T) {
	order := newOrder(models.PaymentMethodCard)
	h := newHarness(order)

	_, err := h.pipeline.AcceptPayment(context.Background(), &payment.Result{OrderNumber: "KS-NOPE", Status: models.PaymentStatusPaid}, "callback")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("unknown order: %v", err)
	}

	_, err = h.pipeline.AcceptPayment(context.Background(), &payment.Result{OrderNumber: order.OrderNumber, Status: models.PaymentStatusPaid, Amount: 1}, "callback")
	if !errors.Is(err, ErrAmountMismatch) {
		t.Errorf("mismatch: %v", err)
	}
	h.pipeline.Wait()

	stored, _ := h.orders.GetByID(context.Background(), order.ID)
	if stored.IsPaid() {
		t.Error("mismatched payment confirmed the order")
	}
	if len(h.orders.payments) != 1 || h.orders.payments[0].Status != models.PaymentStatusFailed {
		t.Errorf("payments = %+v", h.orders.payments)
	}
}
