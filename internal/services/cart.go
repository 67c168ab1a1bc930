package services

import (
	"errors"
	"time"

	"kidshop/internal/repo"
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const cartLifetime = 30 * 24 * time.Hour

// Pricing holds the shipping rules applied to carts and orders
type Pricing struct {
	ShippingFlatRate      int64
	FreeShippingThreshold int64
}

// Shipping returns the shipping amount for a subtotal. A zero threshold disables free shipping.
func (p Pricing) Shipping(subtotal int64) int64 {
	if subtotal == 0 {
		return 0
	}
	if p.FreeShippingThreshold > 0 && subtotal >= p.FreeShippingThreshold {
		return 0
	}
	return p.ShippingFlatRate
}

// CartLine is a cart item priced at the current effective price
type CartLine struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Product   *models.Product `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice int64           `json:"unit_price"`
	Total     int64           `json:"total"`
	Available bool            `json:"available"`
}

// CartView is a cart with computed totals
type CartView struct {
	Token     string     `json:"token"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at"`
	Items     []CartLine `json:"items"`
	Subtotal  int64      `json:"subtotal"`
	Shipping  int64      `json:"shipping"`
	Total     int64      `json:"total"`
	Currency  string     `json:"currency"`
}

// CartService handles anonymous carts
type CartService struct {
	cartRepo    *repo.CartRepository
	productRepo *repo.ProductRepository
	pricing     Pricing
}

// NewCartService creates a new cart service
func NewCartService(cartRepo *repo.CartRepository, productRepo *repo.ProductRepository, pricing Pricing) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		pricing:     pricing,
	}
}

// Create opens a new empty cart
func (s *CartService) Create() (*CartView, error) {
	expires := time.Now().Add(cartLifetime)
	cart := &models.Cart{
		Token:     uuid.New().String(),
		Status:    models.CartStatusActive,
		ExpiresAt: &expires,
	}
	if err := s.cartRepo.Create(cart); err != nil {
		return nil, err
	}
	return s.view(cart), nil
}

// Get loads a cart with totals
func (s *CartService) Get(token string) (*CartView, error) {
	cart, err := s.cartRepo.GetByToken(token)
	if err != nil {
		return nil, err
	}
	return s.view(cart), nil
}

// Load returns the raw cart for checkout
func (s *CartService) Load(token string) (*models.Cart, error) {
	return s.cartRepo.GetByToken(token)
}

// AddItem adds a product to the cart, merging with an existing line
func (s *CartService) AddItem(token string, productID uuid.UUID, quantity int) (*CartView, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	cart, err := s.activeCart(token)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}
	if !product.IsActive {
		return nil, ErrProductUnavailable
	}

	item, err := s.cartRepo.FindItem(cart.ID, productID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if item == nil {
		item = &models.CartItem{CartID: cart.ID, ProductID: productID}
	}
	item.Quantity += quantity

	if item.Quantity > product.StockQuantity {
		return nil, &repo.InsufficientStockError{ProductID: productID, Available: product.StockQuantity, Requested: item.Quantity}
	}

	if err := s.cartRepo.SaveItem(item); err != nil {
		return nil, err
	}
	return s.Get(token)
}

// UpdateItem sets the quantity of a cart line
func (s *CartService) UpdateItem(token string, itemID uuid.UUID, quantity int) (*CartView, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	cart, err := s.activeCart(token)
	if err != nil {
		return nil, err
	}
	item, err := s.cartRepo.GetItem(cart.ID, itemID)
	if err != nil {
		return nil, err
	}
	product, err := s.productRepo.GetByID(item.ProductID)
	if err != nil {
		return nil, err
	}
	if quantity > product.StockQuantity {
		return nil, &repo.InsufficientStockError{ProductID: product.ID, Available: product.StockQuantity, Requested: quantity}
	}

	item.Quantity = quantity
	if err := s.cartRepo.SaveItem(item); err != nil {
		return nil, err
	}
	return s.Get(token)
}

// RemoveItem removes a cart line
func (s *CartService) RemoveItem(token string, itemID uuid.UUID) (*CartView, error) {
	cart, err := s.activeCart(token)
	if err != nil {
		return nil, err
	}
	if err := s.cartRepo.DeleteItem(cart.ID, itemID); err != nil {
		return nil, err
	}
	return s.Get(token)
}

func (s *CartService) activeCart(token string) (*models.Cart, error) {
	cart, err := s.cartRepo.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if cart.Status != models.CartStatusActive {
		return nil, ErrCartClosed
	}
	if cart.Expired(time.Now()) {
		return nil, ErrCartExpired
	}
	return cart, nil
}

func (s *CartService) view(cart *models.Cart) *CartView {
	v := &CartView{
		Token:     cart.Token,
		Status:    cart.Status,
		ExpiresAt: cart.ExpiresAt,
		Items:     []CartLine{},
		Currency:  "GEL",
	}
	for _, item := range cart.Items {
		line := CartLine{
			ID:        item.ID,
			ProductID: item.ProductID,
			Product:   item.Product,
			Quantity:  item.Quantity,
		}
		if item.Product != nil {
			line.UnitPrice = item.Product.EffectivePrice()
			line.Total = line.UnitPrice * int64(item.Quantity)
			line.Available = item.Product.IsActive && item.Product.StockQuantity >= item.Quantity
		}
		if line.Available {
			v.Subtotal += line.Total
		}
		v.Items = append(v.Items, line)
	}
	v.Shipping = s.pricing.Shipping(v.Subtotal)
	v.Total = v.Subtotal + v.Shipping
	return v
}
