package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"kidshop/internal/payment"
	"kidshop/internal/repo"
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PaymentStarter opens hosted payment sessions
type PaymentStarter interface {
	Configured() bool
	Provider() string
	CreatePayment(ctx context.Context, order *models.Order, returnURL string) (*payment.Session, error)
}

// OrderStore is the order persistence checkout and order administration need
type OrderStore interface {
	Create(ctx context.Context, order *models.Order, decrementStock bool, cartID *uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, number string) (*models.Order, error)
	List(ctx context.Context, filters repo.OrderFilters, page, perPage int) (*models.PaginationResult[models.Order], error)
	History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	UpdateStatus(ctx context.Context, order *models.Order, status, notes string, changedBy *uuid.UUID) error
	RestoreStock(ctx context.Context, orderID uuid.UUID) (bool, error)
	SetGatewayPaymentID(ctx context.Context, orderID uuid.UUID, externalID string) error
	RecordPayment(ctx context.Context, payment *models.Payment) error
}

// ProductLookup loads products by id
type ProductLookup interface {
	GetByIDs(ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// CartLookup loads carts by token
type CartLookup interface {
	GetByToken(token string) (*models.Cart, error)
}

// OrderEvents is notified after an order is committed
type OrderEvents interface {
	OrderPlacedAsync(orderID uuid.UUID)
}

// PlaceOrderResult is returned from checkout
type PlaceOrderResult struct {
	Order        *models.Order `json:"order"`
	PaymentURL   string        `json:"payment_url,omitempty"`
	PaymentError string        `json:"payment_error,omitempty"`
}

// orderTransitions lists the fulfillment changes an admin may make
var orderTransitions = map[string][]string{
	models.OrderStatusPending:   {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:   {models.OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to string) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderService handles checkout and order administration
type OrderService struct {
	orderRepo   OrderStore
	productRepo ProductLookup
	cartRepo    CartLookup
	pricing     Pricing
	gateway     PaymentStarter
	events      OrderEvents
	returnURL   string
}

// NewOrderService creates a new order service. returnURL is the public URL of the
// payment return endpoint; the order number is appended as ?order=.
func NewOrderService(orderRepo OrderStore, productRepo ProductLookup, cartRepo CartLookup, pricing Pricing, gateway PaymentStarter, events OrderEvents, returnURL string) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		cartRepo:    cartRepo,
		pricing:     pricing,
		gateway:     gateway,
		events:      events,
		returnURL:   returnURL,
	}
}

// PlaceOrder validates stock, snapshots prices, stores the order and, for card
// payments, opens a payment session. Notifications run in the background.
func (s *OrderService) PlaceOrder(ctx context.Context, req *models.PlaceOrderRequest) (*PlaceOrderResult, error) {
	if req.PaymentMethod == models.PaymentMethodCard && (s.gateway == nil || !s.gateway.Configured()) {
		return nil, ErrPaymentDisabled
	}

	lines, cartID, err := s.collectLines(req)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.productRepo.GetByIDs(ids)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber:     GenerateOrderNumber(time.Now()),
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   req.PaymentMethod,
		Language:        models.ParseLanguage(req.Language),
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		ShippingCity:    strings.TrimSpace(req.ShippingCity),
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		Notes:           strings.TrimSpace(req.Notes),
		Currency:        "GEL",
	}

	for _, l := range lines {
		product, ok := products[l.ProductID]
		if !ok || !product.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, l.ProductID)
		}
		productID := product.ID
		unit := product.EffectivePrice()
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   &productID,
			ProductName: product.Name,
			ProductSKU:  product.SKU,
			UnitPrice:   unit,
			Quantity:    l.Quantity,
			Total:       unit * int64(l.Quantity),
		})
		order.Subtotal += unit * int64(l.Quantity)
	}
	order.ShippingAmount = s.pricing.Shipping(order.Subtotal)
	order.TotalAmount = order.Subtotal + order.ShippingAmount

	// Offline payments take stock now; card payments take it on confirmation
	takeStock := req.PaymentMethod != models.PaymentMethodCard
	if err := s.orderRepo.Create(ctx, order, takeStock, cartID); err != nil {
		return nil, err
	}

	log.Info().
		Str("order", order.OrderNumber).
		Str("method", order.PaymentMethod).
		Int64("total", order.TotalAmount).
		Msg("Order placed")

	result := &PlaceOrderResult{Order: order}

	if req.PaymentMethod == models.PaymentMethodCard {
		if err := s.startPayment(ctx, order, result); err != nil {
			log.Error().Err(err).Str("order", order.OrderNumber).Msg("Failed to open payment session")
			result.PaymentError = "payment could not be started, please try again"
		}
	}

	if s.events != nil {
		s.events.OrderPlacedAsync(order.ID)
	}
	return result, nil
}

// RetryPayment opens a new payment session for an unpaid card order
func (s *OrderService) RetryPayment(ctx context.Context, number, phone string) (*PlaceOrderResult, error) {
	order, err := s.Lookup(ctx, number, phone)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != models.PaymentMethodCard || order.IsPaid() || order.Status == models.OrderStatusCancelled {
		return nil, ErrInvalidOrderState
	}
	if s.gateway == nil || !s.gateway.Configured() {
		return nil, ErrPaymentDisabled
	}
	result := &PlaceOrderResult{Order: order}
	if err := s.startPayment(ctx, order, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *OrderService) startPayment(ctx context.Context, order *models.Order, result *PlaceOrderResult) error {
	session, err := s.gateway.CreatePayment(ctx, order, s.paymentReturnURL(order))
	if err != nil {
		return err
	}
	if err := s.orderRepo.SetGatewayPaymentID(ctx, order.ID, session.ExternalID); err != nil {
		return err
	}
	order.GatewayPaymentID = session.ExternalID
	err = s.orderRepo.RecordPayment(ctx, &models.Payment{
		OrderID:    order.ID,
		Provider:   s.gateway.Provider(),
		ExternalID: session.ExternalID,
		Status:     models.PaymentStatusPending,
		Amount:     order.TotalAmount,
		Currency:   order.Currency,
	})
	if err != nil {
		return err
	}
	result.PaymentURL = session.RedirectURL
	return nil
}

func (s *OrderService) paymentReturnURL(order *models.Order) string {
	sep := "?"
	if strings.Contains(s.returnURL, "?") {
		sep = "&"
	}
	return s.returnURL + sep + "order=" + url.QueryEscape(order.OrderNumber)
}

type orderLine struct {
	ProductID uuid.UUID
	Quantity  int
}

func (s *OrderService) collectLines(req *models.PlaceOrderRequest) ([]orderLine, *uuid.UUID, error) {
	merged := map[uuid.UUID]int{}
	var order []uuid.UUID
	add := func(id uuid.UUID, qty int) {
		if _, ok := merged[id]; !ok {
			order = append(order, id)
		}
		merged[id] += qty
	}

	var cartID *uuid.UUID
	if req.CartToken != "" {
		cart, err := s.cartRepo.GetByToken(req.CartToken)
		if err != nil {
			return nil, nil, err
		}
		if cart.Status != models.CartStatusActive {
			return nil, nil, ErrCartClosed
		}
		if cart.Expired(time.Now()) {
			return nil, nil, ErrCartExpired
		}
		for _, item := range cart.Items {
			add(item.ProductID, item.Quantity)
		}
		id := cart.ID
		cartID = &id
	} else {
		for _, item := range req.Items {
			if item.Quantity < 1 {
				return nil, nil, ErrInvalidQuantity
			}
			add(item.ProductID, item.Quantity)
		}
	}

	if len(order) == 0 {
		return nil, nil, ErrEmptyCart
	}

	lines := make([]orderLine, 0, len(order))
	for _, id := range order {
		lines = append(lines, orderLine{ProductID: id, Quantity: merged[id]})
	}
	return lines, cartID, nil
}

// Lookup finds an order by number for the customer who placed it
func (s *OrderService) Lookup(ctx context.Context, number, phone string) (*models.Order, error) {
	order, err := s.orderRepo.GetByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
	if err != nil {
		return nil, err
	}
	if phone == "" || lastDigits(order.CustomerPhone, 9) != lastDigits(phone, 9) {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

// GetByNumber gets an order by number without the phone check
func (s *OrderService) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	return s.orderRepo.GetByNumber(ctx, number)
}

// Get gets an order by id with items and payments
func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.orderRepo.GetByID(ctx, id)
}

// History lists the status changes of an order
func (s *OrderService) History(ctx context.Context, id uuid.UUID) ([]models.OrderStatusHistory, error) {
	return s.orderRepo.History(ctx, id)
}

// List lists orders for the admin panel
func (s *OrderService) List(ctx context.Context, filters repo.OrderFilters, page, perPage int) (*models.PaginationResult[models.Order], error) {
	return s.orderRepo.List(ctx, filters, page, perPage)
}

// UpdateStatus applies an admin fulfillment change. Cancelling gives back taken stock.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, req *models.UpdateOrderStatusRequest, actor *uuid.UUID) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == req.Status {
		return order, nil
	}
	if !CanTransition(order.Status, req.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidOrderState, order.Status, req.Status)
	}
	if err := s.orderRepo.UpdateStatus(ctx, order, req.Status, req.Notes, actor); err != nil {
		return nil, err
	}

	if req.Status == models.OrderStatusCancelled {
		restored, err := s.orderRepo.RestoreStock(ctx, order.ID)
		if err != nil {
			log.Error().Err(err).Str("order", order.OrderNumber).Msg("Failed to restore stock")
		} else if restored {
			log.Info().Str("order", order.OrderNumber).Msg("Stock restored for cancelled order")
		}
	}

	return s.orderRepo.GetByID(ctx, id)
}

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateOrderNumber returns KS-YYYYMMDD-XXXXXX
func GenerateOrderNumber(now time.Time) string {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			n = big.NewInt(now.UnixNano() % int64(len(orderNumberAlphabet)))
		}
		suffix[i] = orderNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("KS-%s-%s", now.Format("20060102"), suffix)
}

func lastDigits(raw string, n int) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if len(d) > n {
		return d[len(d)-n:]
	}
	return d
}

// IsNotFound reports whether err means a missing record
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
