package repo

import (
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryRepository handles product category data access
type CategoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// GetByID gets a category by ID
func (r *CategoryRepository) GetByID(id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.Where("id = ?", id).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// GetBySlug gets a category by its URL slug
func (r *CategoryRepository) GetBySlug(slug string) (*models.Category, error) {
	var category models.Category
	if err := r.db.Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// Create creates a new category
func (r *CategoryRepository) Create(category *models.Category) error {
	return r.db.Create(category).Error
}

// Update updates a category
func (r *CategoryRepository) Update(category *models.Category) error {
	return r.db.Save(category).Error
}

// Delete soft deletes a category
func (r *CategoryRepository) Delete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&models.Category{}).Error
}

// List gets categories ordered by sort_order. Inactive ones are included only for the admin panel.
func (r *CategoryRepository) List(includeInactive bool) ([]models.Category, error) {
	var categories []models.Category
	query := r.db.Order("sort_order ASC, slug ASC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// GetByParent gets all active categories under a parent
func (r *CategoryRepository) GetByParent(parentID uuid.UUID) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.Where("parent_id = ? AND is_active = ?", parentID, true).Order("sort_order ASC, slug ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// CountProducts counts how many products are in this category
func (r *CategoryRepository) CountProducts(categoryID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Product{}).Where("category_id = ?", categoryID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
