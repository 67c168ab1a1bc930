package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"kidshop/internal/repo"
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type memOrders struct {
	orders   map[uuid.UUID]*models.Order
	stock    map[uuid.UUID]int
	history  []models.OrderStatusHistory
	restores int
}

func newMemOrders(orders ...*models.Order) *memOrders {
	m := &memOrders{orders: map[uuid.UUID]*models.Order{}, stock: map[uuid.UUID]int{}}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memOrders) Create(ctx context.Context, order *models.Order, decrementStock bool, cartID *uuid.UUID) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.StockDecremented = decrementStock
	m.orders[order.ID] = order
	return nil
}

func (m *memOrders) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	for _, o := range m.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memOrders) List(ctx context.Context, filters repo.OrderFilters, page, perPage int) (*models.PaginationResult[models.Order], error) {
	var orders []models.Order
	for _, o := range m.orders {
		orders = append(orders, *o)
	}
	return models.NewPaginationResult(orders, int64(len(orders)), page, perPage), nil
}

func (m *memOrders) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	return m.history, nil
}

func (m *memOrders) UpdateStatus(ctx context.Context, order *models.Order, status, notes string, changedBy *uuid.UUID) error {
	m.history = append(m.history, models.OrderStatusHistory{OrderID: order.ID, FromStatus: order.Status, ToStatus: status, Notes: notes})
	m.orders[order.ID].Status = status
	order.Status = status
	return nil
}

func (m *memOrders) RestoreStock(ctx context.Context, orderID uuid.UUID) (bool, error) {
	m.restores++
	o := m.orders[orderID]
	if !o.StockDecremented {
		return false, nil
	}
	o.StockDecremented = false
	for _, item := range o.Items {
		if item.ProductID != nil {
			m.stock[*item.ProductID] += item.Quantity
		}
	}
	return true, nil
}

func (m *memOrders) SetGatewayPaymentID(ctx context.Context, orderID uuid.UUID, externalID string) error {
	m.orders[orderID].GatewayPaymentID = externalID
	return nil
}

func (m *memOrders) RecordPayment(ctx context.Context, payment *models.Payment) error {
	return nil
}

func stockedOrder(method string, decremented bool) *models.Order {
	productID := uuid.New()
	return &models.Order{
		BaseModel:        models.BaseModel{ID: uuid.New()},
		OrderNumber:      "KS-20250308-ABCDEF",
		Status:           models.OrderStatusConfirmed,
		PaymentStatus:    models.PaymentStatusPending,
		PaymentMethod:    method,
		StockDecremented: decremented,
		Items:            []models.OrderItem{{ProductID: &productID, Quantity: 2}},
	}
}

func TestCancelRestoresStockOnce(t *testing.T) {
	order := stockedOrder(models.PaymentMethodCashOnDelivery, true)
	productID := *order.Items[0].ProductID
	store := newMemOrders(order)
	store.stock[productID] = 3
	svc := NewOrderService(store, nil, nil, Pricing{}, nil, nil, "")
	ctx := context.Background()

	cancelled, err := svc.UpdateStatus(ctx, order.ID, &models.UpdateOrderStatusRequest{Status: models.OrderStatusCancelled, Notes: "customer called"}, nil)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if cancelled.Status != models.OrderStatusCancelled || cancelled.StockDecremented {
		t.Errorf("order after cancel = %s, decremented=%v", cancelled.Status, cancelled.StockDecremented)
	}
	if store.stock[productID] != 5 {
		t.Errorf("stock = %d, want 5", store.stock[productID])
	}
	if len(store.history) != 1 || store.history[0].FromStatus != models.OrderStatusConfirmed {
		t.Errorf("history = %+v", store.history)
	}

	// Cancelling again changes nothing
	if _, err := svc.UpdateStatus(ctx, order.ID, &models.UpdateOrderStatusRequest{Status: models.OrderStatusCancelled}, nil); err != nil {
		t.Fatal(err)
	}
	if restored, _ := store.RestoreStock(ctx, order.ID); restored {
		t.Error("stock restored twice")
	}
	if store.stock[productID] != 5 || len(store.history) != 1 {
		t.Errorf("second cancel: stock = %d, history = %d", store.stock[productID], len(store.history))
	}

	if _, err := svc.UpdateStatus(ctx, order.ID, &models.UpdateOrderStatusRequest{Status: models.OrderStatusConfirmed}, nil); !errors.Is(err, ErrInvalidOrderState) {
		t.Errorf("reopening a cancelled order: %v", err)
	}
}

func TestCancelUnpaidCardOrderLeavesStock(t *testing.T) {
	order := stockedOrder(models.PaymentMethodCard, false)
	order.Status = models.OrderStatusPending
	productID := *order.Items[0].ProductID
	store := newMemOrders(order)
	store.stock[productID] = 4
	svc := NewOrderService(store, nil, nil, Pricing{}, nil, nil, "")

	if _, err := svc.UpdateStatus(context.Background(), order.ID, &models.UpdateOrderStatusRequest{Status: models.OrderStatusCancelled}, nil); err != nil {
		t.Fatal(err)
	}
	if store.restores != 1 || store.stock[productID] != 4 {
		t.Errorf("restores = %d, stock = %d; want 1 attempt and 4", store.restores, store.stock[productID])
	}
}

func TestShippedOrderCannotBeCancelled(t *testing.T) {
	order := stockedOrder(models.PaymentMethodCashOnDelivery, true)
	order.Status = models.OrderStatusShipped
	store := newMemOrders(order)
	svc := NewOrderService(store, nil, nil, Pricing{}, nil, nil, "")

	_, err := svc.UpdateStatus(context.Background(), order.ID, &models.UpdateOrderStatusRequest{Status: models.OrderStatusCancelled}, nil)
	if !errors.Is(err, ErrInvalidOrderState) {
		t.Fatalf("expected ErrInvalidOrderState, got %v", err)
	}
	if store.restores != 0 {
		t.Error("stock restored for a refused cancel")
	}
}

type memCarts map[string]*models.Cart

func (m memCarts) GetByToken(token string) (*models.Cart, error) {
	if c, ok := m[token]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func TestPlaceOrderRejectsExpiredCart(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	carts := memCarts{"old": {
		BaseModel: models.BaseModel{ID: uuid.New()},
		Token:     "old",
		Status:    models.CartStatusActive,
		ExpiresAt: &past,
		Items:     []models.CartItem{{ProductID: uuid.New(), Quantity: 1}},
	}}
	svc := NewOrderService(newMemOrders(), nil, carts, Pricing{}, nil, nil, "")

	_, err := svc.PlaceOrder(context.Background(), &models.PlaceOrderRequest{CartToken: "old", PaymentMethod: models.PaymentMethodCashOnDelivery})
	if !errors.Is(err, ErrCartExpired) {
		t.Errorf("PlaceOrder = %v, expected ErrCartExpired", err)
	}
}
