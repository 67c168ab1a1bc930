package services

import (
	"errors"
	"strings"

	"kidshop/internal/repo"
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CategoryService struct {
	categoryRepo *repo.CategoryRepository
}

func NewCategoryService(categoryRepo *repo.CategoryRepository) *CategoryService {
	return &CategoryService{
		categoryRepo: categoryRepo,
	}
}

// CreateCategory creates a new category
func (s *CategoryService) CreateCategory(req *models.CreateCategoryRequest) (*models.Category, error) {
	slug := normalizeSlug(req.Slug)
	if err := s.ensureSlugFree(slug, uuid.Nil); err != nil {
		return nil, err
	}

	category := &models.Category{
		Slug:        slug,
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
		Image:       req.Image,
		IsActive:    true,
		SortOrder:   req.SortOrder,
	}

	if err := s.categoryRepo.Create(category); err != nil {
		return nil, err
	}

	return category, nil
}

// UpdateCategory updates an existing category
func (s *CategoryService) UpdateCategory(id uuid.UUID, req *models.UpdateCategoryRequest) (*models.Category, error) {
	category, err := s.categoryRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if req.Slug != "" {
		slug := normalizeSlug(req.Slug)
		if slug != category.Slug {
			if err := s.ensureSlugFree(slug, id); err != nil {
				return nil, err
			}
			category.Slug = slug
		}
	}

	if req.Name != nil {
		category.Name = *req.Name
	}

	if req.Description != nil {
		category.Description = *req.Description
	}

	if req.ParentID != nil {
		if *req.ParentID == id {
			return nil, ErrCategoryCycle
		}
		category.ParentID = req.ParentID
	}

	if req.Image != nil {
		category.Image = *req.Image
	}

	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if req.SortOrder != nil {
		category.SortOrder = *req.SortOrder
	}

	if err := s.categoryRepo.Update(category); err != nil {
		return nil, err
	}

	return category, nil
}

// DeleteCategory deletes a category that has no products
func (s *CategoryService) DeleteCategory(id uuid.UUID) error {
	if _, err := s.categoryRepo.GetByID(id); err != nil {
		return err
	}

	count, err := s.categoryRepo.CountProducts(id)
	if err != nil {
		return err
	}

	if count > 0 {
		return ErrCategoryInUse
	}

	return s.categoryRepo.Delete(id)
}

// GetCategoryByID gets a category by ID
func (s *CategoryService) GetCategoryByID(id uuid.UUID) (*models.Category, error) {
	return s.categoryRepo.GetByID(id)
}

// GetCategoryBySlug gets an active category by slug
func (s *CategoryService) GetCategoryBySlug(slug string) (*models.Category, error) {
	category, err := s.categoryRepo.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if !category.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return category, nil
}

// ListCategories lists categories; inactive ones only for the admin panel
func (s *CategoryService) ListCategories(includeInactive bool) ([]models.Category, error) {
	return s.categoryRepo.List(includeInactive)
}

// GetCategoriesByParent gets all categories by parent ID
func (s *CategoryService) GetCategoriesByParent(parentID uuid.UUID) ([]models.Category, error) {
	return s.categoryRepo.GetByParent(parentID)
}

// SubtreeIDs returns the id of a category and all its active descendants
func (s *CategoryService) SubtreeIDs(rootID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{rootID}
	queue := []uuid.UUID{rootID}
	seen := map[uuid.UUID]bool{rootID: true}
	for len(queue) > 0 {
		children, err := s.categoryRepo.GetByParent(queue[0])
		if err != nil {
			return nil, err
		}
		queue = queue[1:]
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			ids = append(ids, c.ID)
			queue = append(queue, c.ID)
		}
	}
	return ids, nil
}

func (s *CategoryService) ensureSlugFree(slug string, selfID uuid.UUID) error {
	existing, err := s.categoryRepo.GetBySlug(slug)
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

// normalizeSlug lowercases and turns whitespace into dashes
func normalizeSlug(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(raw))), "-")
}
