package repo

import (
	"strings"

	"kidshop/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductFilters represents filters for product queries
type ProductFilters struct {
	CategoryIDs     []uuid.UUID
	MinPrice        *int64
	MaxPrice        *int64
	Search          string
	Featured        *bool
	InStock         *bool
	OnSale          *bool
	IncludeInactive bool
	Sort            string // price_asc, price_desc, newest, default
}

// ProductRepository handles product data access
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// GetBySlug gets an active product by slug
func (r *ProductRepository) GetBySlug(slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.Preload("Category").Where("slug = ? AND is_active = ?", slug, true).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetByIDs loads products by id, keyed by id
func (r *ProductRepository) GetByIDs(ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	var products []models.Product
	if len(ids) == 0 {
		return map[uuid.UUID]models.Product{}, nil
	}
	if err := r.db.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// Create creates a new product
func (r *ProductRepository) Create(product *models.Product) error {
	return r.db.Create(product).Error
}

// Update updates a product
func (r *ProductRepository) Update(product *models.Product) error {
	return r.db.Save(product).Error
}

// Delete soft deletes a product
func (r *ProductRepository) Delete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&models.Product{}).Error
}

// AppendImage adds an image URL to a product
func (r *ProductRepository) AppendImage(id uuid.UUID, url string) (*models.Product, error) {
	product, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	product.Images = append(product.Images, url)
	if err := r.db.Model(product).Update("images", product.Images).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// ListLowStock lists active products at or under their low-stock threshold
func (r *ProductRepository) ListLowStock() ([]models.Product, error) {
	var products []models.Product
	err := r.db.Where("is_active = ? AND stock_quantity <= low_stock_threshold", true).
		Order("stock_quantity ASC").
		Find(&products).Error
	return products, err
}

// List lists products with filters and pagination
func (r *ProductRepository) List(filters ProductFilters, page, perPage int) (*models.PaginationResult[models.Product], error) {
	var products []models.Product
	var total int64

	query := r.applyFilters(r.db.Model(&models.Product{}), filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (page - 1) * perPage
	err := query.Order(productOrder(filters.Sort)).Limit(perPage).Offset(offset).Find(&products).Error
	if err != nil {
		return nil, err
	}

	return models.NewPaginationResult(products, total, page, perPage), nil
}

func (r *ProductRepository) applyFilters(query *gorm.DB, filters ProductFilters) *gorm.DB {
	if !filters.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if len(filters.CategoryIDs) > 0 {
		query = query.Where("category_id IN ?", filters.CategoryIDs)
	}
	if filters.MinPrice != nil {
		query = query.Where(effectivePriceSQL+" >= ?", *filters.MinPrice)
	}
	if filters.MaxPrice != nil {
		query = query.Where(effectivePriceSQL+" <= ?", *filters.MaxPrice)
	}
	if filters.Featured != nil {
		query = query.Where("is_featured = ?", *filters.Featured)
	}
	if filters.InStock != nil {
		if *filters.InStock {
			query = query.Where("stock_quantity > 0")
		} else {
			query = query.Where("stock_quantity <= 0")
		}
	}
	if filters.OnSale != nil && *filters.OnSale {
		query = query.Where("sale_price > 0 AND sale_price < price")
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name::text) LIKE ? OR LOWER(sku) LIKE ? OR LOWER(description::text) LIKE ?", pattern, pattern, pattern)
	}
	return query
}

const effectivePriceSQL = "(CASE WHEN sale_price > 0 AND sale_price < price THEN sale_price ELSE price END)"

func productOrder(sort string) string {
	switch sort {
	case "price_asc":
		return effectivePriceSQL + " ASC"
	case "price_desc":
		return effectivePriceSQL + " DESC"
	case "newest":
		return "created_at DESC"
	default:
		return "sort_order ASC, created_at DESC"
	}
}

// FindBySlugAny finds a product by slug regardless of active state, soft deleted included
func (r *ProductRepository) FindBySlugAny(slug string, out *models.Product) error {
	return r.db.Unscoped().Where("slug = ?", slug).First(out).Error
}
