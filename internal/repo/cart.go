package repo

import (
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository handles cart data access
type CartRepository struct {
	db *gorm.DB
}

// NewCartRepository creates a new cart repository
func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

// Create creates a new cart
func (r *CartRepository) Create(cart *models.Cart) error {
	return r.db.Create(cart).Error
}

// GetByToken loads a cart with its items and their products
func (r *CartRepository) GetByToken(token string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).Preload("Items.Product").
		Where("token = ?", token).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindItem finds an item of a product in a cart
func (r *CartRepository) FindItem(cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.Where("cart_id = ? AND product_id = ?", cartID, productID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItem gets a cart item by id within a cart
func (r *CartRepository) GetItem(cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.Where("cart_id = ? AND id = ?", cartID, itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// SaveItem creates or updates a cart item
func (r *CartRepository) SaveItem(item *models.CartItem) error {
	return r.db.Save(item).Error
}

// DeleteItem removes an item from a cart
func (r *CartRepository) DeleteItem(cartID, itemID uuid.UUID) error {
	result := r.db.Unscoped().Where("cart_id = ? AND id = ?", cartID, itemID).Delete(&models.CartItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkOrdered closes a cart after checkout
func (r *CartRepository) MarkOrdered(tx *gorm.DB, cartID uuid.UUID) error {
	return tx.Model(&models.Cart{}).Where("id = ?", cartID).Update("status", models.CartStatusOrdered).Error
}
