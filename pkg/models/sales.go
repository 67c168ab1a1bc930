package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category represents a product category
type Category struct {
	BaseModel
	Slug        string        `gorm:"uniqueIndex;not null" json:"slug" validate:"required"`
	Name        LocalizedText `json:"name"`
	Description LocalizedText `json:"description"`
	ParentID    *uuid.UUID    `gorm:"type:uuid;constraint:OnDelete:SET NULL" json:"parent_id"`
	Image       string        `json:"image"`
	IsActive    bool          `gorm:"default:true" json:"is_active"`
	SortOrder   int           `gorm:"default:0" json:"sort_order"`
}

// Product represents a handmade product in the catalog.
// Prices are stored in tetri.
type Product struct {
	BaseModel
	CategoryID        *uuid.UUID    `gorm:"type:uuid;index;constraint:OnDelete:SET NULL" json:"category_id"`
	Slug              string        `gorm:"uniqueIndex;not null" json:"slug"`
	SKU               string        `gorm:"index" json:"sku"`
	Name              LocalizedText `json:"name"`
	Description       LocalizedText `json:"description"`
	Price             int64         `gorm:"not null" json:"price"`
	SalePrice         int64         `gorm:"default:0" json:"sale_price"`
	StockQuantity     int           `gorm:"default:0" json:"stock_quantity"`
	LowStockThreshold int           `gorm:"default:2" json:"low_stock_threshold"`
	Images            StringList    `json:"images"`
	AgeRange          string        `json:"age_range"`
	Material          string        `json:"material"`
	IsFeatured        bool          `gorm:"default:false;index" json:"is_featured"`
	IsActive          bool          `gorm:"default:true" json:"is_active"`
	SortOrder         int           `gorm:"default:0" json:"sort_order"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// OnSale reports whether the sale price applies
func (p *Product) OnSale() bool {
	return p.SalePrice > 0 && p.SalePrice < p.Price
}

// EffectivePrice returns the price a customer pays per unit
func (p *Product) EffectivePrice() int64 {
	if p.OnSale() {
		return p.SalePrice
	}
	return p.Price
}

// IsLowStock reports whether stock dropped to the low-stock threshold
func (p *Product) IsLowStock() bool {
	return p.StockQuantity <= p.LowStockThreshold
}

// Cart represents an anonymous shopping cart identified by a client token
type Cart struct {
	BaseModel
	Token     string     `gorm:"uniqueIndex;not null" json:"token"`
	Status    string     `gorm:"default:'active'" json:"status"` // active, ordered, abandoned
	ExpiresAt *time.Time `json:"expires_at"`

	Items []CartItem `gorm:"foreignKey:CartID" json:"items"`
}

// Expired reports whether the cart's lifetime has passed
func (c *Cart) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Cart statuses
const (
	CartStatusActive  = "active"
	CartStatusOrdered = "ordered"
)

// CartItem represents an item in a cart
type CartItem struct {
	BaseModel
	CartID    uuid.UUID `gorm:"type:uuid;not null;index;constraint:OnDelete:CASCADE" json:"cart_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;constraint:OnDelete:CASCADE" json:"product_id"`
	Quantity  int       `gorm:"not null" json:"quantity" validate:"min=1"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Payment statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Payment methods
const (
	PaymentMethodCard           = "card"
	PaymentMethodCashOnDelivery = "cash_on_delivery"
	PaymentMethodBankTransfer   = "bank_transfer"
)

// Order represents a customer purchase
type Order struct {
	BaseModel
	OrderNumber   string   `gorm:"uniqueIndex;not null" json:"order_number"`
	Status        string   `gorm:"default:'pending';index" json:"status"`
	PaymentStatus string   `gorm:"default:'pending';index" json:"payment_status"`
	PaymentMethod string   `gorm:"not null" json:"payment_method"`
	Language      Language `gorm:"type:varchar(2);default:'ka'" json:"language"`

	CustomerName  string `gorm:"not null" json:"customer_name"`
	CustomerPhone string `gorm:"not null;index" json:"customer_phone"`
	CustomerEmail string `json:"customer_email"`

	ShippingCity    string `json:"shipping_city"`
	ShippingAddress string `json:"shipping_address"`
	Notes           string `json:"notes"`

	Subtotal       int64  `gorm:"not null" json:"subtotal"`
	ShippingAmount int64  `gorm:"default:0" json:"shipping_amount"`
	TotalAmount    int64  `gorm:"not null" json:"total_amount"`
	Currency       string `gorm:"default:'GEL'" json:"currency"`

	GatewayPaymentID string     `gorm:"index" json:"gateway_payment_id,omitempty"`
	PaidAt           *time.Time `json:"paid_at"`
	ShippedAt        *time.Time `json:"shipped_at"`
	DeliveredAt      *time.Time `json:"delivered_at"`

	// Idempotency guards for side effects of the notification pipeline
	StockDecremented  bool `gorm:"default:false" json:"stock_decremented"`
	AdminSMSSent      bool `gorm:"column:admin_sms_sent;default:false" json:"admin_sms_sent"`
	CustomerSMSSent   bool `gorm:"column:customer_sms_sent;default:false" json:"customer_sms_sent"`
	CustomerEmailSent bool `gorm:"default:false" json:"customer_email_sent"`
	InAppNotified     bool `gorm:"default:false" json:"in_app_notified"`

	Items    []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	Payments []Payment   `gorm:"foreignKey:OrderID" json:"payments,omitempty"`
}

// IsPaid reports whether payment was confirmed
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// AwaitsOnlinePayment reports whether customer-facing notifications must wait for the gateway
func (o *Order) AwaitsOnlinePayment() bool {
	return o.PaymentMethod == PaymentMethodCard && !o.IsPaid()
}

// FormatAmount renders tetri as lari with two decimals, e.g. 12550 -> "125.50"
func FormatAmount(tetri int64) string {
	sign := ""
	if tetri < 0 {
		sign = "-"
		tetri = -tetri
	}
	return fmt.Sprintf("%s%d.%02d", sign, tetri/100, tetri%100)
}

// OrderItem represents an item in an order, with a snapshot of the product
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID     `gorm:"type:uuid;not null;index;constraint:OnDelete:CASCADE" json:"order_id"`
	ProductID   *uuid.UUID    `gorm:"type:uuid;constraint:OnDelete:SET NULL" json:"product_id"`
	ProductName LocalizedText `json:"product_name"`
	ProductSKU  string        `json:"product_sku"`
	UnitPrice   int64         `gorm:"not null" json:"unit_price"`
	Quantity    int           `gorm:"not null" json:"quantity"`
	Total       int64         `gorm:"not null" json:"total"`
}

// Payment represents one payment gateway transaction
type Payment struct {
	BaseModel
	OrderID     uuid.UUID  `gorm:"type:uuid;not null;index;constraint:OnDelete:CASCADE" json:"order_id"`
	Provider    string     `gorm:"not null" json:"provider"`
	ExternalID  string     `gorm:"index" json:"external_id"`
	Status      string     `gorm:"default:'pending'" json:"status"`
	Amount      int64      `gorm:"not null" json:"amount"`
	Currency    string     `gorm:"default:'GEL'" json:"currency"`
	RawPayload  string     `gorm:"type:text" json:"-"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
}

// OrderStatusHistory represents order status changes
type OrderStatusHistory struct {
	BaseModel
	OrderID    uuid.UUID  `gorm:"type:uuid;not null;index;constraint:OnDelete:CASCADE" json:"order_id"`
	FromStatus string     `json:"from_status"`
	ToStatus   string     `gorm:"not null" json:"to_status"`
	Notes      string     `json:"notes"`
	ChangedBy  *uuid.UUID `gorm:"type:uuid" json:"changed_by"`
}

// CreateCategoryRequest is the admin payload for a new category
type CreateCategoryRequest struct {
	Slug        string        `json:"slug" validate:"required"`
	Name        LocalizedText `json:"name"`
	Description LocalizedText `json:"description"`
	ParentID    *uuid.UUID    `json:"parent_id"`
	Image       string        `json:"image"`
	SortOrder   int           `json:"sort_order"`
}

// UpdateCategoryRequest is the admin payload for a category update
type UpdateCategoryRequest struct {
	Slug        string         `json:"slug"`
	Name        *LocalizedText `json:"name"`
	Description *LocalizedText `json:"description"`
	ParentID    *uuid.UUID     `json:"parent_id"`
	Image       *string        `json:"image"`
	IsActive    *bool          `json:"is_active"`
	SortOrder   *int           `json:"sort_order"`
}

// ProductRequest is the admin payload for creating or replacing a product
type ProductRequest struct {
	CategoryID        *uuid.UUID    `json:"category_id"`
	Slug              string        `json:"slug" validate:"required"`
	SKU               string        `json:"sku"`
	Name              LocalizedText `json:"name"`
	Description       LocalizedText `json:"description"`
	Price             int64         `json:"price" validate:"required,gt=0"`
	SalePrice         int64         `json:"sale_price" validate:"gte=0"`
	StockQuantity     int           `json:"stock_quantity" validate:"gte=0"`
	LowStockThreshold int           `json:"low_stock_threshold" validate:"gte=0"`
	Images            []string      `json:"images"`
	AgeRange          string        `json:"age_range"`
	Material          string        `json:"material"`
	IsFeatured        bool          `json:"is_featured"`
	IsActive          *bool         `json:"is_active"`
	SortOrder         int           `json:"sort_order"`
}

// Validate checks rules the struct tags cannot express
func (r *ProductRequest) Validate() error {
	if r.Name.Ka == "" {
		return fmt.Errorf("name.ka is required")
	}
	if r.SalePrice > 0 && r.SalePrice >= r.Price {
		return fmt.Errorf("sale_price must be less than price")
	}
	return nil
}

// PlaceOrderItem is one line of a direct order
type PlaceOrderItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// PlaceOrderRequest is the checkout payload. Items come from the cart when CartToken is set.
type PlaceOrderRequest struct {
	CartToken       string           `json:"cart_token"`
	Items           []PlaceOrderItem `json:"items" validate:"omitempty,dive"`
	CustomerName    string           `json:"customer_name" validate:"required,max=120"`
	CustomerPhone   string           `json:"customer_phone" validate:"required,min=9,max=20"`
	CustomerEmail   string           `json:"customer_email" validate:"omitempty,email"`
	Language        string           `json:"language"`
	ShippingCity    string           `json:"shipping_city" validate:"required"`
	ShippingAddress string           `json:"shipping_address" validate:"required"`
	Notes           string           `json:"notes" validate:"max=1000"`
	PaymentMethod   string           `json:"payment_method" validate:"required,oneof=card cash_on_delivery bank_transfer"`
}

// UpdateOrderStatusRequest is the admin payload for a fulfillment change
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
	Notes  string `json:"notes"`
}
