// Package orderflow runs everything that happens after an order is committed:
// payment reconciliation, the one-time inventory decrement, and the notification
// fan-out to admin SMS, customer SMS, customer email and the admin panel.
//
// Every side effect is guarded by a boolean flag on the order row that is claimed
// with a conditional update before sending and released when sending fails, so
// repeated callbacks, redirects and admin resends never deliver a message twice.
package orderflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kidshop/internal/metrics"
	"kidshop/internal/payment"
	"kidshop/internal/sms"
	"kidshop/pkg/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	kindAwaitingPayment = "order_awaiting_payment"
	kindPaidAfterCancel = "payment_after_cancel"
)

var (
	ErrUnknownChannel  = errors.New("unknown notification channel")
	ErrAwaitingPayment = errors.New("order is waiting for card payment")
	ErrNoPayment       = errors.New("order has no gateway payment")
	ErrAmountMismatch  = errors.New("paid amount does not match order total")
	ErrOrderNotFound   = errors.New("order not found for payment")
	ErrOrderCancelled  = errors.New("order is cancelled")
)

// OrderStore is the order persistence the pipeline needs
type OrderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, number string) (*models.Order, error)
	GetByGatewayPaymentID(ctx context.Context, externalID string) (*models.Order, error)
	ClaimFlag(ctx context.Context, orderID uuid.UUID, channel string) (bool, error)
	ReleaseFlag(ctx context.Context, orderID uuid.UUID, channel string) error
	MarkPaid(ctx context.Context, orderID uuid.UUID, externalID string, paidAt time.Time) (bool, error)
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (bool, error)
	DecrementStock(ctx context.Context, orderID uuid.UUID) (bool, []uuid.UUID, error)
	RecordPayment(ctx context.Context, p *models.Payment) error
}

// NotificationStore is the notification persistence the pipeline needs
type NotificationStore interface {
	GetSettings(ctx context.Context) (*models.NotificationSettings, error)
	CreateLog(ctx context.Context, log *models.NotificationLog) error
	CreateInApp(ctx context.Context, n *models.InAppNotification) error
}

// SMSSender delivers text messages, retrying on its own
type SMSSender interface {
	Configured() bool
	Send(ctx context.Context, phone, text string) (*sms.Result, error)
}

// EmailSender delivers a single HTML email attempt
type EmailSender interface {
	Configured() bool
	SendEmail(ctx context.Context, to []string, subject, body string) error
}

// Broadcaster pushes live events to connected admin panels
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// StatusChecker asks the payment gateway for the authoritative payment status
type StatusChecker interface {
	Configured() bool
	PaymentStatus(ctx context.Context, externalID string) (*payment.Result, error)
}

// Deps wires the pipeline. SMS, Email, Hub and Gateway may be nil.
type Deps struct {
	Orders        OrderStore
	Notifications NotificationStore
	SMS           SMSSender
	Email         EmailSender
	Hub           Broadcaster
	Gateway       StatusChecker
	ShopName      string
}

// Pipeline coordinates payment confirmation and notification fan-out
type Pipeline struct {
	orders   OrderStore
	notes    NotificationStore
	sms      SMSSender
	email    EmailSender
	hub      Broadcaster
	gateway  StatusChecker
	shopName string

	emailAttempts int
	retryInitial  time.Duration
	retryMax      time.Duration

	tracer trace.Tracer
	wg     sync.WaitGroup
	now    func() time.Time
}

// New creates a pipeline
func New(deps Deps) *Pipeline {
	shop := deps.ShopName
	if shop == "" {
		shop = "KidShop"
	}
	return &Pipeline{
		orders:        deps.Orders,
		notes:         deps.Notifications,
		sms:           deps.SMS,
		email:         deps.Email,
		hub:           deps.Hub,
		gateway:       deps.Gateway,
		shopName:      shop,
		emailAttempts: 3,
		retryInitial:  500 * time.Millisecond,
		retryMax:      5 * time.Second,
		tracer:        otel.Tracer("kidshop/orderflow"),
		now:           time.Now,
	}
}

// WithEmailRetry overrides the email retry policy
func (p *Pipeline) WithEmailRetry(attempts int, initial, max time.Duration) *Pipeline {
	p.emailAttempts = attempts
	p.retryInitial = initial
	p.retryMax = max
	return p
}

// ChannelResult is the outcome of one channel of a fan-out
type ChannelResult struct {
	Channel   string `json:"channel"`
	Status    string `json:"status"` // sent, failed, skipped
	Reason    string `json:"reason,omitempty"`
	Delivered int    `json:"delivered"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
}

// Report summarizes one pipeline run
type Report struct {
	OrderID        uuid.UUID       `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	Kind           string          `json:"kind"`
	PaymentStatus  string          `json:"payment_status"`
	Transitioned   bool            `json:"transitioned"`
	RefundRequired bool            `json:"refund_required,omitempty"`
	Oversold       []uuid.UUID     `json:"oversold,omitempty"`
	Channels       []ChannelResult `json:"channels"`
}

// Channel returns the result for one channel
func (r *Report) Channel(channel string) (ChannelResult, bool) {
	for _, c := range r.Channels {
		if c.Channel == channel {
			return c, true
		}
	}
	return ChannelResult{}, false
}

// Failed reports whether any channel failed
func (r *Report) Failed() bool {
	for _, c := range r.Channels {
		if c.Status == models.NotificationFailed {
			return true
		}
	}
	return false
}

// OrderPlaced runs after an order is committed. Cash and bank transfer orders fan out
// immediately; card orders only get an admin panel entry until payment is confirmed.
func (p *Pipeline) OrderPlaced(ctx context.Context, orderID uuid.UUID) (*Report, error) {
	ctx, span := p.tracer.Start(ctx, "orderflow.OrderPlaced", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	order, err := p.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	settings, err := p.notes.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}

	report := &Report{OrderID: order.ID, OrderNumber: order.OrderNumber, Kind: models.KindOrderPlaced, PaymentStatus: order.PaymentStatus}

	if order.AwaitsOnlinePayment() {
		if settings.InAppEnabled {
			if err := p.createInApp(ctx, order, kindAwaitingPayment); err != nil {
				log.Error().Err(err).Str("order", order.OrderNumber).Msg("Failed to create awaiting-payment notification")
			}
		}
		for _, channel := range models.AllChannels {
			report.Channels = append(report.Channels, ChannelResult{Channel: channel, Status: models.NotificationSkipped, Reason: "awaiting payment"})
		}
		return report, nil
	}

	report.Channels = p.fanOut(ctx, order, settings, models.KindOrderPlaced)
	return report, nil
}

// ConfirmPayment applies a payment result from the gateway callback, a status query or
// an admin. A paid result confirms the order once, takes stock once and fans out.
// A failed result on a pending order marks it failed and tells the customer.
func (p *Pipeline) ConfirmPayment(ctx context.Context, res *payment.Result, source string) (*Report, error) {
	ctx, span := p.tracer.Start(ctx, "orderflow.ConfirmPayment", trace.WithAttributes(
		attribute.String("payment.external_id", res.ExternalID),
		attribute.String("payment.status", res.Status),
		attribute.String("payment.source", source),
	))
	defer span.End()

	order, err := p.resolveOrder(ctx, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("order.number", order.OrderNumber))

	metrics.PaymentEventsTotal.WithLabelValues(source, res.Status).Inc()

	record := &models.Payment{
		OrderID:    order.ID,
		Provider:   res.Provider,
		ExternalID: res.ExternalID,
		Status:     res.Status,
		Amount:     res.Amount,
		Currency:   res.Currency,
		RawPayload: string(res.Raw),
	}
	if record.Amount == 0 {
		record.Amount = order.TotalAmount
	}
	if record.Currency == "" {
		record.Currency = order.Currency
	}

	if res.Status == models.PaymentStatusPaid && res.Amount > 0 && res.Amount != order.TotalAmount {
		record.Status = models.PaymentStatusFailed
		if err := p.orders.RecordPayment(ctx, record); err != nil {
			log.Error().Err(err).Str("order", order.OrderNumber).Msg("Failed to record payment")
		}
		log.Error().
			Str("order", order.OrderNumber).
			Int64("expected", order.TotalAmount).
			Int64("paid", res.Amount).
			Msg("Payment amount mismatch, order not confirmed")
		return nil, ErrAmountMismatch
	}

	if res.Status == models.PaymentStatusPaid {
		now := p.now()
		record.ConfirmedAt = &now
	}
	if err := p.orders.RecordPayment(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	report := &Report{OrderID: order.ID, OrderNumber: order.OrderNumber, PaymentStatus: order.PaymentStatus}

	switch res.Status {
	case models.PaymentStatusPaid:
		return p.confirmPaid(ctx, order, res, report)
	case models.PaymentStatusFailed:
		return p.confirmFailed(ctx, order, report)
	default:
		report.Kind = "payment_pending"
		return report, nil
	}
}

func (p *Pipeline) confirmPaid(ctx context.Context, order *models.Order, res *payment.Result, report *Report) (*Report, error) {
	report.Kind = models.KindPaymentConfirmed

	transitioned, err := p.orders.MarkPaid(ctx, order.ID, res.ExternalID, p.now())
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}
	report.Transitioned = transitioned
	report.PaymentStatus = models.PaymentStatusPaid
	if transitioned {
		log.Info().Str("order", order.OrderNumber).Str("payment", res.ExternalID).Msg("Order paid")
	}

	// Reload so the rest sees the confirmed state, a cancellation and current flags
	fresh, err := p.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}
	settings, err := p.notes.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}

	if fresh.Status == models.OrderStatusCancelled {
		return p.paidAfterCancel(ctx, fresh, settings, res, report, transitioned), nil
	}

	// Runs on every confirmation; the stock flag makes repeats a no-op and recovers a
	// run that stopped between marking paid and decrementing.
	claimed, oversold, err := p.orders.DecrementStock(ctx, order.ID)
	if err != nil {
		log.Error().Err(err).Str("order", order.OrderNumber).Msg("Failed to decrement stock")
	} else if claimed && len(oversold) > 0 {
		report.Oversold = oversold
		metrics.OversoldItemsTotal.Add(float64(len(oversold)))
		log.Warn().Str("order", order.OrderNumber).Int("items", len(oversold)).Msg("Paid order is oversold")
	}

	report.Channels = p.fanOut(ctx, fresh, settings, models.KindPaymentConfirmed)
	return report, nil
}

// paidAfterCancel handles money arriving for an order the shop already cancelled.
// The payment stays recorded for a manual refund; no stock is taken and the customer
// is not told the order is confirmed. Staff get one admin panel notice.
func (p *Pipeline) paidAfterCancel(ctx context.Context, order *models.Order, settings *models.NotificationSettings, res *payment.Result, report *Report, transitioned bool) *Report {
	report.Kind = kindPaidAfterCancel
	report.RefundRequired = true

	if transitioned {
		log.Error().
			Str("order", order.OrderNumber).
			Str("payment", res.ExternalID).
			Int64("amount", order.TotalAmount).
			Msg("Payment received for a cancelled order, refund required")
	}

	for _, channel := range models.AllChannels {
		result := ChannelResult{Channel: channel, Status: models.NotificationSkipped, Reason: "order cancelled"}
		if channel == models.ChannelInApp && transitioned && settings.InAppEnabled {
			if err := p.createInApp(ctx, order, kindPaidAfterCancel); err != nil {
				result = ChannelResult{Channel: channel, Status: models.NotificationFailed, Attempts: 1, Error: err.Error()}
			} else {
				result = ChannelResult{Channel: channel, Status: models.NotificationSent, Delivered: 1, Attempts: 1}
			}
		}
		report.Channels = append(report.Channels, result)
	}
	return report
}

func (p *Pipeline) confirmFailed(ctx context.Context, order *models.Order, report *Report) (*Report, error) {
	report.Kind = models.KindPaymentFailed

	if order.IsPaid() {
		log.Warn().Str("order", order.OrderNumber).Msg("Ignoring failed payment result for a paid order")
		return report, nil
	}

	transitioned, err := p.orders.MarkPaymentFailed(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	report.Transitioned = transitioned
	report.PaymentStatus = models.PaymentStatusFailed
	if !transitioned {
		return report, nil
	}

	settings, err := p.notes.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}

	var g errgroup.Group
	results := make([]ChannelResult, 2)
	g.Go(func() error {
		results[0] = p.sendFailureEmail(ctx, order, settings)
		return nil
	})
	g.Go(func() error {
		results[1] = ChannelResult{Channel: models.ChannelInApp, Status: models.NotificationSkipped, Reason: "disabled"}
		if settings.InAppEnabled {
			if err := p.createInApp(ctx, order, models.KindPaymentFailed); err != nil {
				results[1] = ChannelResult{Channel: models.ChannelInApp, Status: models.NotificationFailed, Error: err.Error()}
			} else {
				results[1] = ChannelResult{Channel: models.ChannelInApp, Status: models.NotificationSent, Delivered: 1, Attempts: 1}
			}
		}
		return nil
	})
	g.Wait()

	report.Channels = results
	return report, nil
}

// sendFailureEmail runs once per failed transition and so needs no flag
func (p *Pipeline) sendFailureEmail(ctx context.Context, order *models.Order, settings *models.NotificationSettings) ChannelResult {
	result := ChannelResult{Channel: models.ChannelCustomerEmail}
	if !settings.CustomerEmailEnabled {
		return p.skip(ctx, order, result, models.KindPaymentFailed, "", "disabled")
	}
	if order.CustomerEmail == "" {
		return p.skip(ctx, order, result, models.KindPaymentFailed, "", "no recipient")
	}
	if p.email == nil || !p.email.Configured() {
		return p.skip(ctx, order, result, models.KindPaymentFailed, order.CustomerEmail, "email not configured")
	}

	msg, err := customerEmail(order, models.KindPaymentFailed, p.shopName)
	if err != nil {
		result.Status = models.NotificationFailed
		result.Error = err.Error()
		return result
	}
	attempts, err := p.sendEmailWithRetry(ctx, order.CustomerEmail, msg)
	result.Attempts = attempts
	p.logDelivery(ctx, order, models.ChannelCustomerEmail, models.KindPaymentFailed, order.CustomerEmail, msg, attempts, err)
	if err != nil {
		result.Status = models.NotificationFailed
		result.Error = err.Error()
		return result
	}
	result.Status = models.NotificationSent
	result.Delivered = 1
	return result
}

// Reconcile asks the gateway for the order's payment status and applies it
func (p *Pipeline) Reconcile(ctx context.Context, orderID uuid.UUID) (*Report, error) {
	ctx, span := p.tracer.Start(ctx, "orderflow.Reconcile", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	order, err := p.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.GatewayPaymentID == "" {
		return nil, ErrNoPayment
	}
	if p.gateway == nil || !p.gateway.Configured() {
		return nil, payment.ErrNotConfigured
	}

	res, err := p.gateway.PaymentStatus(ctx, order.GatewayPaymentID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query payment status: %w", err)
	}
	res.OrderID = order.ID
	return p.ConfirmPayment(ctx, res, "reconcile")
}

// Resend clears one channel's flag and runs that channel again
func (p *Pipeline) Resend(ctx context.Context, orderID uuid.UUID, channel string) (*ChannelResult, error) {
	if !validChannel(channel) {
		return nil, ErrUnknownChannel
	}

	ctx, span := p.tracer.Start(ctx, "orderflow.Resend", trace.WithAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("channel", channel),
	))
	defer span.End()

	order, err := p.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.AwaitsOnlinePayment() {
		return nil, ErrAwaitingPayment
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, ErrOrderCancelled
	}
	settings, err := p.notes.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}

	kind := notifyKind(order)

	// A channel that cannot run keeps its flag, so a set flag is never lost
	if result, blocked := p.precheck(ctx, order, settings, channel, kind); blocked {
		return &result, nil
	}

	if err := p.orders.ReleaseFlag(ctx, order.ID, channel); err != nil {
		return nil, fmt.Errorf("failed to release flag: %w", err)
	}
	result := p.runChannel(ctx, order, settings, channel, kind)
	return &result, nil
}

// Redeliver sends the channels a paid or offline order missed. Channels whose flag is
// set, or that cannot run at all, are reported as skipped without a log row.
func (p *Pipeline) Redeliver(ctx context.Context, orderID uuid.UUID) (*Report, error) {
	ctx, span := p.tracer.Start(ctx, "orderflow.Redeliver", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	order, err := p.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.AwaitsOnlinePayment() {
		return nil, ErrAwaitingPayment
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, ErrOrderCancelled
	}
	settings, err := p.notes.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}

	kind := notifyKind(order)
	report := &Report{OrderID: order.ID, OrderNumber: order.OrderNumber, Kind: kind, PaymentStatus: order.PaymentStatus}
	report.Channels = make([]ChannelResult, len(models.AllChannels))

	var g errgroup.Group
	for i, channel := range models.AllChannels {
		i, channel := i, channel
		if flagSet(order, channel) {
			report.Channels[i] = ChannelResult{Channel: channel, Status: models.NotificationSkipped, Reason: "already sent"}
			continue
		}
		if reason, _ := p.blockReason(order, settings, channel); reason != "" {
			report.Channels[i] = ChannelResult{Channel: channel, Status: models.NotificationSkipped, Reason: reason}
			continue
		}
		g.Go(func() error {
			report.Channels[i] = p.runChannel(ctx, order, settings, channel, kind)
			return nil
		})
	}
	g.Wait()

	return report, nil
}

// OrderPlacedAsync runs OrderPlaced in the background, detached from the request
func (p *Pipeline) OrderPlacedAsync(orderID uuid.UUID) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		report, err := p.OrderPlaced(ctx, orderID)
		if err != nil {
			log.Error().Err(err).Str("order_id", orderID.String()).Msg("Order placed pipeline failed")
			return
		}
		logReport(report)
	}()
}

// AcceptPayment answers a gateway callback without waiting for the fan-out. Unknown
// orders and amount mismatches are reported synchronously; everything else is handed
// to ConfirmPaymentAsync and reported with kind "accepted".
func (p *Pipeline) AcceptPayment(ctx context.Context, res *payment.Result, source string) (*Report, error) {
	order, err := p.resolveOrder(ctx, res)
	if err != nil {
		return nil, err
	}
	if res.Status == models.PaymentStatusPaid && res.Amount > 0 && res.Amount != order.TotalAmount {
		// Records the rejected payment; nothing is sent
		return p.ConfirmPayment(ctx, res, source)
	}

	accepted := *res
	accepted.OrderID = order.ID
	p.ConfirmPaymentAsync(&accepted, source)

	return &Report{OrderID: order.ID, OrderNumber: order.OrderNumber, Kind: "accepted", PaymentStatus: order.PaymentStatus}, nil
}

// ConfirmPaymentAsync runs ConfirmPayment in the background
func (p *Pipeline) ConfirmPaymentAsync(res *payment.Result, source string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		report, err := p.ConfirmPayment(ctx, res, source)
		if err != nil {
			log.Error().Err(err).Str("payment", res.ExternalID).Msg("Payment confirmation failed")
			return
		}
		logReport(report)
	}()
}

// Wait blocks until background runs finish
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func logReport(r *Report) {
	event := log.Info()
	if r.Failed() {
		event = log.Warn()
	}
	for _, c := range r.Channels {
		event = event.Str(c.Channel, c.Status)
	}
	event.Str("order", r.OrderNumber).Str("kind", r.Kind).Msg("Order pipeline finished")
}

func (p *Pipeline) resolveOrder(ctx context.Context, res *payment.Result) (*models.Order, error) {
	if res.OrderID != uuid.Nil {
		return p.orders.GetByID(ctx, res.OrderID)
	}
	if res.ExternalID != "" {
		if order, err := p.orders.GetByGatewayPaymentID(ctx, res.ExternalID); err == nil {
			return p.orders.GetByID(ctx, order.ID)
		}
	}
	if res.OrderNumber != "" {
		if order, err := p.orders.GetByNumber(ctx, res.OrderNumber); err == nil {
			return p.orders.GetByID(ctx, order.ID)
		}
	}
	return nil, ErrOrderNotFound
}

// fanOut runs all four channels concurrently. A failing channel never stops the others.
func (p *Pipeline) fanOut(ctx context.Context, order *models.Order, settings *models.NotificationSettings, kind string) []ChannelResult {
	results := make([]ChannelResult, len(models.AllChannels))

	var g errgroup.Group
	for i, channel := range models.AllChannels {
		i, channel := i, channel
		g.Go(func() error {
			results[i] = p.runChannel(ctx, order, settings, channel, kind)
			return nil
		})
	}
	g.Wait()

	return results
}

func (p *Pipeline) runChannel(ctx context.Context, order *models.Order, settings *models.NotificationSettings, channel, kind string) ChannelResult {
	ctx, span := p.tracer.Start(ctx, "orderflow.channel."+channel)
	defer span.End()

	result := ChannelResult{Channel: channel}
	if skipped, blocked := p.precheck(ctx, order, settings, channel, kind); blocked {
		return skipped
	}
	recipients := p.recipients(order, settings, channel)

	claimed, err := p.orders.ClaimFlag(ctx, order.ID, channel)
	if err != nil {
		result.Status = models.NotificationFailed
		result.Error = err.Error()
		span.RecordError(err)
		metrics.NotificationsTotal.WithLabelValues(channel, models.NotificationFailed).Inc()
		return result
	}
	if !claimed {
		result.Status = models.NotificationSkipped
		result.Reason = "already sent"
		metrics.NotificationsTotal.WithLabelValues(channel, models.NotificationSkipped).Inc()
		return result
	}

	var lastErr error
	for _, recipient := range recipients {
		attempts, err := p.deliver(ctx, order, channel, kind, recipient)
		result.Attempts += attempts
		if err != nil {
			lastErr = err
			continue
		}
		result.Delivered++
	}

	// The flag stays set once any recipient got the message
	if result.Delivered == 0 {
		if err := p.orders.ReleaseFlag(ctx, order.ID, channel); err != nil {
			log.Error().Err(err).Str("order", order.OrderNumber).Str("channel", channel).Msg("Failed to release notification flag")
		}
		result.Status = models.NotificationFailed
		if lastErr != nil {
			result.Error = lastErr.Error()
			span.RecordError(lastErr)
			span.SetStatus(codes.Error, lastErr.Error())
		}
		metrics.NotificationsTotal.WithLabelValues(channel, models.NotificationFailed).Inc()
		return result
	}

	result.Status = models.NotificationSent
	if lastErr != nil {
		result.Error = lastErr.Error()
	}
	metrics.NotificationsTotal.WithLabelValues(channel, models.NotificationSent).Inc()
	return result
}

// deliver sends to one recipient and writes its log row
func (p *Pipeline) deliver(ctx context.Context, order *models.Order, channel, kind, recipient string) (int, error) {
	var (
		msg      Message
		attempts int
		err      error
	)

	switch channel {
	case models.ChannelAdminSMS, models.ChannelCustomerSMS:
		if channel == models.ChannelAdminSMS {
			msg = adminSMS(order, kind)
		} else {
			msg = customerSMS(order, kind)
		}
		var res *sms.Result
		res, err = p.sms.Send(ctx, recipient, msg.Body)
		attempts = 1
		if res != nil && res.Attempts > 0 {
			attempts = res.Attempts
		}

	case models.ChannelCustomerEmail:
		msg, err = customerEmail(order, kind, p.shopName)
		if err == nil {
			attempts, err = p.sendEmailWithRetry(ctx, recipient, msg)
		}

	case models.ChannelInApp:
		msg = inAppMessage(order, kind)
		attempts = 1
		err = p.createInApp(ctx, order, kind)
	}

	p.logDelivery(ctx, order, channel, kind, recipient, msg, attempts, err)
	return attempts, err
}

func (p *Pipeline) sendEmailWithRetry(ctx context.Context, to string, msg Message) (int, error) {
	attempts := 0
	operation := func() error {
		attempts++
		err := p.email.SendEmail(ctx, []string{to}, msg.Subject, msg.Body)
		if err != nil {
			log.Warn().Err(err).Str("to", to).Int("attempt", attempts).Msg("Email send attempt failed")
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.retryInitial
	b.MaxInterval = p.retryMax
	b.MaxElapsedTime = 0

	max := p.emailAttempts
	if max < 1 {
		max = 1
	}
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(max-1)), ctx))
	return attempts, err
}

func (p *Pipeline) createInApp(ctx context.Context, order *models.Order, kind string) error {
	msg := inAppMessage(order, kind)
	orderID := order.ID
	n := &models.InAppNotification{
		OrderID: &orderID,
		Kind:    kind,
		Title:   msg.Subject,
		Body:    msg.Body,
	}
	if err := p.notes.CreateInApp(ctx, n); err != nil {
		return fmt.Errorf("failed to store in-app notification: %w", err)
	}
	if p.hub != nil {
		p.hub.Broadcast("notification", n)
	}
	return nil
}

// precheck reports a skipped result when a channel is disabled, has no recipient or
// has no transport
func (p *Pipeline) precheck(ctx context.Context, order *models.Order, settings *models.NotificationSettings, channel, kind string) (ChannelResult, bool) {
	result := ChannelResult{Channel: channel}
	reason, recipient := p.blockReason(order, settings, channel)
	if reason == "" {
		return result, false
	}
	return p.skip(ctx, order, result, kind, recipient, reason), true
}

// blockReason says why a channel cannot run for an order, or "" when it can
func (p *Pipeline) blockReason(order *models.Order, settings *models.NotificationSettings, channel string) (reason, recipient string) {
	if !settings.ChannelEnabled(channel) {
		return "disabled", ""
	}
	recipients := p.recipients(order, settings, channel)
	if len(recipients) == 0 {
		return "no recipient", ""
	}
	if missing := p.transportMissing(channel); missing != "" {
		return missing, recipients[0]
	}
	return "", recipients[0]
}

// Deliverable lists the channels that can currently send: enabled, with a transport,
// and for admin SMS at least one admin phone. Customer recipients are per order.
func (p *Pipeline) Deliverable(ctx context.Context) ([]string, error) {
	settings, err := p.notes.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}
	var channels []string
	for _, channel := range models.AllChannels {
		if !settings.ChannelEnabled(channel) || p.transportMissing(channel) != "" {
			continue
		}
		if channel == models.ChannelAdminSMS && len(settings.AdminPhoneList()) == 0 {
			continue
		}
		channels = append(channels, channel)
	}
	return channels, nil
}

func flagSet(order *models.Order, channel string) bool {
	switch channel {
	case models.ChannelAdminSMS:
		return order.AdminSMSSent
	case models.ChannelCustomerSMS:
		return order.CustomerSMSSent
	case models.ChannelCustomerEmail:
		return order.CustomerEmailSent
	case models.ChannelInApp:
		return order.InAppNotified
	}
	return false
}

// notifyKind is the message kind a paid or offline order is announced with
func notifyKind(order *models.Order) string {
	if order.PaymentMethod == models.PaymentMethodCard {
		return models.KindPaymentConfirmed
	}
	return models.KindOrderPlaced
}

func (p *Pipeline) recipients(order *models.Order, settings *models.NotificationSettings, channel string) []string {
	switch channel {
	case models.ChannelAdminSMS:
		return settings.AdminPhoneList()
	case models.ChannelCustomerSMS:
		if order.CustomerPhone != "" {
			return []string{order.CustomerPhone}
		}
	case models.ChannelCustomerEmail:
		if order.CustomerEmail != "" {
			return []string{order.CustomerEmail}
		}
	case models.ChannelInApp:
		return []string{"admin"}
	}
	return nil
}

func (p *Pipeline) transportMissing(channel string) string {
	switch channel {
	case models.ChannelAdminSMS, models.ChannelCustomerSMS:
		if p.sms == nil || !p.sms.Configured() {
			return "sms not configured"
		}
	case models.ChannelCustomerEmail:
		if p.email == nil || !p.email.Configured() {
			return "email not configured"
		}
	}
	return ""
}

func (p *Pipeline) skip(ctx context.Context, order *models.Order, result ChannelResult, kind, recipient, reason string) ChannelResult {
	result.Status = models.NotificationSkipped
	result.Reason = reason
	metrics.NotificationsTotal.WithLabelValues(result.Channel, models.NotificationSkipped).Inc()

	orderID := order.ID
	entry := &models.NotificationLog{
		OrderID:      &orderID,
		Channel:      result.Channel,
		Kind:         kind,
		Recipient:    recipient,
		Status:       models.NotificationSkipped,
		ErrorMessage: reason,
	}
	if err := p.notes.CreateLog(ctx, entry); err != nil {
		log.Error().Err(err).Msg("Failed to write notification log")
	}
	return result
}

func (p *Pipeline) logDelivery(ctx context.Context, order *models.Order, channel, kind, recipient string, msg Message, attempts int, sendErr error) {
	orderID := order.ID
	entry := &models.NotificationLog{
		OrderID:   &orderID,
		Channel:   channel,
		Kind:      kind,
		Recipient: recipient,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Attempts:  attempts,
	}
	if sendErr != nil {
		entry.Status = models.NotificationFailed
		entry.ErrorMessage = sendErr.Error()
		log.Error().Err(sendErr).Str("order", order.OrderNumber).Str("channel", channel).Str("recipient", recipient).Msg("Notification failed")
	} else {
		now := p.now()
		entry.Status = models.NotificationSent
		entry.SentAt = &now
	}
	if err := p.notes.CreateLog(ctx, entry); err != nil {
		log.Error().Err(err).Msg("Failed to write notification log")
	}
}

func validChannel(channel string) bool {
	for _, c := range models.AllChannels {
		if c == channel {
			return true
		}
	}
	return false
}
