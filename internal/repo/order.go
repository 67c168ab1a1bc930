package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kidshop/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInsufficientStock is returned when an order asks for more than is in stock
var ErrInsufficientStock = errors.New("insufficient stock")

// InsufficientStockError carries the product that could not be reserved
type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

// Unwrap lets errors.Is match ErrInsufficientStock
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// flagColumns maps fan-out channels to their idempotency columns on orders
var flagColumns = map[string]string{
	models.ChannelAdminSMS:      "admin_sms_sent",
	models.ChannelCustomerSMS:   "customer_sms_sent",
	models.ChannelCustomerEmail: "customer_email_sent",
	models.ChannelInApp:         "in_app_notified",
}

// FlagColumn returns the idempotency column for a channel
func FlagColumn(channel string) (string, error) {
	col, ok := flagColumns[channel]
	if !ok {
		return "", fmt.Errorf("unknown notification channel %q", channel)
	}
	return col, nil
}

// OrderFilters represents filters for the admin order list
type OrderFilters struct {
	Status        string
	PaymentStatus string
	Search        string
	From          *time.Time
	To            *time.Time
}

// OrderRepository handles order data access
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create stores an order with its items in one transaction. Stock is checked for every
// item; when decrementStock is set it is also taken, and the order is marked so the
// payment pipeline does not take it twice. A non-nil cartID closes that cart.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order, decrementStock bool, cartID *uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range order.Items {
			if item.ProductID == nil {
				continue
			}
			if decrementStock {
				if err := takeStock(tx, *item.ProductID, item.Quantity); err != nil {
					return err
				}
				continue
			}
			var product models.Product
			if err := tx.Select("id", "stock_quantity").Where("id = ?", *item.ProductID).First(&product).Error; err != nil {
				return err
			}
			if product.StockQuantity < item.Quantity {
				return &InsufficientStockError{ProductID: product.ID, Available: product.StockQuantity, Requested: item.Quantity}
			}
		}

		order.StockDecremented = decrementStock
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		history := models.OrderStatusHistory{
			OrderID:  order.ID,
			ToStatus: order.Status,
			Notes:    "order placed",
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		if cartID != nil {
			if err := tx.Model(&models.Cart{}).Where("id = ?", *cartID).Update("status", models.CartStatusOrdered).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// takeStock decrements stock only when enough is available
func takeStock(tx *gorm.DB, productID uuid.UUID, quantity int) error {
	result := tx.Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var product models.Product
		available := 0
		if err := tx.Select("stock_quantity").Where("id = ?", productID).First(&product).Error; err == nil {
			available = product.StockQuantity
		}
		return &InsufficientStockError{ProductID: productID, Available: available, Requested: quantity}
	}
	return nil
}

// GetByID gets an order with items and payments
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByNumber gets an order by its public order number
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("order_number = ?", number).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByGatewayPaymentID gets an order by the gateway transaction id
func (r *OrderRepository) GetByGatewayPaymentID(ctx context.Context, externalID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("gateway_payment_id = ?", externalID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// List lists orders for the admin panel, newest first
func (r *OrderRepository) List(ctx context.Context, filters OrderFilters, page, perPage int) (*models.PaginationResult[models.Order], error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filters.PaymentStatus)
	}
	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		query = query.Where("order_number ILIKE ? OR customer_name ILIKE ? OR customer_phone ILIKE ?", pattern, pattern, pattern)
	}
	if filters.From != nil {
		query = query.Where("created_at >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("created_at < ?", *filters.To)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (page - 1) * perPage
	if err := query.Order("created_at DESC").Limit(perPage).Offset(offset).Find(&orders).Error; err != nil {
		return nil, err
	}

	return models.NewPaginationResult(orders, total, page, perPage), nil
}

// UpdateStatus changes the fulfillment status and records the transition
func (r *OrderRepository) UpdateStatus(ctx context.Context, order *models.Order, status, notes string, changedBy *uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": status}
		now := time.Now()
		switch status {
		case models.OrderStatusShipped:
			updates["shipped_at"] = now
		case models.OrderStatusDelivered:
			updates["delivered_at"] = now
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
			return err
		}

		history := models.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: order.Status,
			ToStatus:   status,
			Notes:      notes,
			ChangedBy:  changedBy,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		order.Status = status
		return nil
	})
}

// RestoreStock gives back the stock of a cancelled order once
func (r *OrderRepository) RestoreStock(ctx context.Context, orderID uuid.UUID) (bool, error) {
	restored := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND stock_decremented = ?", orderID, true).
			Update("stock_decremented", false)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		restored = true

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
			return err
		}
		for _, item := range items {
			if item.ProductID == nil {
				continue
			}
			err := tx.Model(&models.Product{}).
				Where("id = ?", *item.ProductID).
				Update("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity)).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	return restored, err
}

// History lists the status transitions of an order
func (r *OrderRepository) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var history []models.OrderStatusHistory
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&history).Error
	return history, err
}

// ClaimFlag atomically sets a channel's idempotency flag. It returns false when the
// flag was already set, meaning another run owns (or finished) that delivery.
func (r *OrderRepository) ClaimFlag(ctx context.Context, orderID uuid.UUID, channel string) (bool, error) {
	col, err := FlagColumn(channel)
	if err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND "+col+" = ?", orderID, false).
		Update(col, true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseFlag clears a channel's idempotency flag so the delivery can be retried
func (r *OrderRepository) ReleaseFlag(ctx context.Context, orderID uuid.UUID, channel string) error {
	col, err := FlagColumn(channel)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Update(col, false).Error
}

// MarkPaid moves an unpaid order to paid, and a pending one to confirmed. A cancelled
// order keeps its status. It returns false when the order was already paid.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID uuid.UUID, externalID string, paidAt time.Time) (bool, error) {
	transitioned := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Select("id", "status", "payment_status").Where("id = ?", orderID).First(&order).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"payment_status": models.PaymentStatusPaid,
			"paid_at":        paidAt,
		}
		if order.Status == models.OrderStatusPending {
			updates["status"] = models.OrderStatusConfirmed
		}
		if externalID != "" {
			updates["gateway_payment_id"] = externalID
		}

		result := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status <> ?", orderID, models.PaymentStatusPaid).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		transitioned = true

		if to, ok := updates["status"].(string); ok {
			history := models.OrderStatusHistory{
				OrderID:    orderID,
				FromStatus: order.Status,
				ToStatus:   to,
				Notes:      "payment confirmed",
			}
			return tx.Create(&history).Error
		}
		return nil
	})
	return transitioned, err
}

// MarkPaymentFailed records a failed payment on a still-pending order. It returns false
// when the order was not pending (already paid or already failed).
func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, models.PaymentStatusPending).
		Update("payment_status", models.PaymentStatusFailed)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DecrementStock takes stock for every item of an order exactly once. Items that can no
// longer be covered are returned as oversold; the rest are still decremented.
// Cancelled orders are never decremented, so a later RestoreStock cannot miss them.
func (r *OrderRepository) DecrementStock(ctx context.Context, orderID uuid.UUID) (claimed bool, oversold []uuid.UUID, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND stock_decremented = ? AND status <> ?", orderID, false, models.OrderStatusCancelled).
			Update("stock_decremented", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		claimed = true

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
			return err
		}
		for _, item := range items {
			if item.ProductID == nil {
				continue
			}
			if err := takeStock(tx, *item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, ErrInsufficientStock) {
					oversold = append(oversold, *item.ProductID)
					continue
				}
				return err
			}
		}
		return nil
	})
	return claimed, oversold, err
}

// SetGatewayPaymentID stores the gateway transaction id on the order
func (r *OrderRepository) SetGatewayPaymentID(ctx context.Context, orderID uuid.UUID, externalID string) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Update("gateway_payment_id", externalID).Error
}

// RecordPayment upserts the payment row for a gateway transaction
func (r *OrderRepository) RecordPayment(ctx context.Context, payment *models.Payment) error {
	db := r.db.WithContext(ctx)
	if payment.ExternalID != "" {
		var existing models.Payment
		err := db.Where("order_id = ? AND external_id = ?", payment.OrderID, payment.ExternalID).First(&existing).Error
		if err == nil {
			existing.Status = payment.Status
			existing.RawPayload = payment.RawPayload
			if payment.ConfirmedAt != nil {
				existing.ConfirmedAt = payment.ConfirmedAt
			}
			if payment.Amount > 0 {
				existing.Amount = payment.Amount
			}
			if err := db.Save(&existing).Error; err != nil {
				return err
			}
			*payment = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	return db.Create(payment).Error
}

// pendingClauses selects orders whose channel flag is unset and that have someone to
// send to on that channel
var pendingClauses = map[string]string{
	models.ChannelAdminSMS:      "admin_sms_sent = false",
	models.ChannelCustomerSMS:   "(customer_sms_sent = false AND customer_phone <> '')",
	models.ChannelCustomerEmail: "(customer_email_sent = false AND customer_email IS NOT NULL AND customer_email <> '')",
	models.ChannelInApp:         "in_app_notified = false",
}

// ListUnnotifiedPaid returns paid or offline orders created after since that still miss
// a notification on one of channels. Channels that cannot send are left out by the
// caller, so orders are not picked again only because of them.
func (r *OrderRepository) ListUnnotifiedPaid(ctx context.Context, since time.Time, limit int, channels []string) ([]models.Order, error) {
	var clauses []string
	for _, channel := range channels {
		clause, ok := pendingClauses[channel]
		if !ok {
			return nil, fmt.Errorf("unknown notification channel %q", channel)
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Where("payment_status = ? OR payment_method <> ?", models.PaymentStatusPaid, models.PaymentMethodCard).
		Where("status <> ?", models.OrderStatusCancelled).
		Where("(" + strings.Join(clauses, " OR ") + ")").
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
