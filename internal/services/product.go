package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"kidshop/internal/repo"
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductQuery is the public catalog query after parsing
type ProductQuery struct {
	CategorySlug string
	MinPrice     *int64
	MaxPrice     *int64
	Search       string
	Featured     *bool
	InStock      *bool
	OnSale       *bool
	Sort         string
	Page         int
	PerPage      int
}

// ProductService handles the catalog
type ProductService struct {
	productRepo *repo.ProductRepository
	categories  *CategoryService
	storage     *StorageService
}

// NewProductService creates a new product service. storage may be nil when S3 is not configured.
func NewProductService(productRepo *repo.ProductRepository, categories *CategoryService, storage *StorageService) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		categories:  categories,
		storage:     storage,
	}
}

// ListPublic lists active products. A category slug includes its subcategories.
func (s *ProductService) ListPublic(q ProductQuery) (*models.PaginationResult[models.Product], error) {
	filters := repo.ProductFilters{
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Search:   q.Search,
		Featured: q.Featured,
		InStock:  q.InStock,
		OnSale:   q.OnSale,
		Sort:     q.Sort,
	}

	if q.CategorySlug != "" {
		category, err := s.categories.GetCategoryBySlug(q.CategorySlug)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewPaginationResult([]models.Product{}, 0, q.Page, q.PerPage), nil
			}
			return nil, err
		}
		ids, err := s.categories.SubtreeIDs(category.ID)
		if err != nil {
			return nil, err
		}
		filters.CategoryIDs = ids
	}

	return s.productRepo.List(filters, q.Page, q.PerPage)
}

// ListAdmin lists products including inactive ones
func (s *ProductService) ListAdmin(filters repo.ProductFilters, page, perPage int) (*models.PaginationResult[models.Product], error) {
	filters.IncludeInactive = true
	return s.productRepo.List(filters, page, perPage)
}

// GetBySlug gets an active product by slug
func (s *ProductService) GetBySlug(slug string) (*models.Product, error) {
	return s.productRepo.GetBySlug(slug)
}

// GetByID gets a product by id
func (s *ProductService) GetByID(id uuid.UUID) (*models.Product, error) {
	return s.productRepo.GetByID(id)
}

// Create creates a product
func (s *ProductService) Create(req *models.ProductRequest) (*models.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	slug := normalizeSlug(req.Slug)
	if err := s.ensureSlugFree(slug, uuid.Nil); err != nil {
		return nil, err
	}

	product := &models.Product{}
	applyProductRequest(product, req)
	product.Slug = slug

	if err := s.productRepo.Create(product); err != nil {
		return nil, err
	}
	// is_active has a database default of true, so an inactive product needs a second write
	if !product.IsActive {
		if err := s.productRepo.Update(product); err != nil {
			return nil, err
		}
	}
	return product, nil
}

// Update replaces a product's editable fields
func (s *ProductService) Update(id uuid.UUID, req *models.ProductRequest) (*models.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	slug := normalizeSlug(req.Slug)
	if slug != product.Slug {
		if err := s.ensureSlugFree(slug, id); err != nil {
			return nil, err
		}
	}

	applyProductRequest(product, req)
	product.Slug = slug
	if err := s.productRepo.Update(product); err != nil {
		return nil, err
	}
	return product, nil
}

// Delete soft deletes a product; past order items keep their snapshot
func (s *ProductService) Delete(id uuid.UUID) error {
	if _, err := s.productRepo.GetByID(id); err != nil {
		return err
	}
	return s.productRepo.Delete(id)
}

// ListLowStock lists products at or under their threshold
func (s *ProductService) ListLowStock() ([]models.Product, error) {
	return s.productRepo.ListLowStock()
}

// UploadImage stores an image and appends its URL to the product
func (s *ProductService) UploadImage(ctx context.Context, id uuid.UUID, filename string, body io.ReadSeeker) (*models.Product, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	if _, err := s.productRepo.GetByID(id); err != nil {
		return nil, err
	}
	url, err := s.storage.UploadProductImage(ctx, id, filename, body)
	if err != nil {
		return nil, err
	}
	return s.productRepo.AppendImage(id, url)
}

func (s *ProductService) ensureSlugFree(slug string, selfID uuid.UUID) error {
	var existing models.Product
	err := s.productRepo.FindBySlugAny(slug, &existing)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return ErrSlugTaken
	}
	return nil
}

func applyProductRequest(p *models.Product, req *models.ProductRequest) {
	p.CategoryID = req.CategoryID
	p.SKU = req.SKU
	p.Name = req.Name
	p.Description = req.Description
	p.Price = req.Price
	p.SalePrice = req.SalePrice
	p.StockQuantity = req.StockQuantity
	p.LowStockThreshold = req.LowStockThreshold
	if req.Images != nil {
		p.Images = models.StringList(req.Images)
	}
	p.AgeRange = req.AgeRange
	p.Material = req.Material
	p.IsFeatured = req.IsFeatured
	p.IsActive = req.IsActive == nil || *req.IsActive
	p.SortOrder = req.SortOrder
}
