package repo

import (
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContentRepository handles homepage sections and footer blocks
type ContentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a new content repository
func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// ListSections lists homepage sections by position
func (r *ContentRepository) ListSections(includeInactive bool) ([]models.HomepageSection, error) {
	var sections []models.HomepageSection
	query := r.db.Order("position ASC, created_at ASC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	err := query.Find(&sections).Error
	return sections, err
}

// GetSection gets a homepage section by ID
func (r *ContentRepository) GetSection(id uuid.UUID) (*models.HomepageSection, error) {
	var section models.HomepageSection
	if err := r.db.Where("id = ?", id).First(&section).Error; err != nil {
		return nil, err
	}
	return &section, nil
}

// SaveSection creates or updates a homepage section
func (r *ContentRepository) SaveSection(section *models.HomepageSection) error {
	return r.db.Save(section).Error
}

// DeleteSection soft deletes a homepage section
func (r *ContentRepository) DeleteSection(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&models.HomepageSection{}).Error
}

// ReorderSections assigns positions following the order of ids
func (r *ContentRepository) ReorderSections(ids []uuid.UUID) error {
	return reorder(r.db, &models.HomepageSection{}, ids)
}

// ListFooter lists footer blocks grouped by section and position
func (r *ContentRepository) ListFooter(includeInactive bool) ([]models.FooterContent, error) {
	var blocks []models.FooterContent
	query := r.db.Order("section ASC, position ASC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	err := query.Find(&blocks).Error
	return blocks, err
}

// GetFooter gets a footer block by ID
func (r *ContentRepository) GetFooter(id uuid.UUID) (*models.FooterContent, error) {
	var block models.FooterContent
	if err := r.db.Where("id = ?", id).First(&block).Error; err != nil {
		return nil, err
	}
	return &block, nil
}

// SaveFooter creates or updates a footer block
func (r *ContentRepository) SaveFooter(block *models.FooterContent) error {
	return r.db.Save(block).Error
}

// DeleteFooter soft deletes a footer block
func (r *ContentRepository) DeleteFooter(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&models.FooterContent{}).Error
}

// ReorderFooter assigns positions following the order of ids
func (r *ContentRepository) ReorderFooter(ids []uuid.UUID) error {
	return reorder(r.db, &models.FooterContent{}, ids)
}

func reorder(db *gorm.DB, model interface{}, ids []uuid.UUID) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			result := tx.Model(model).Where("id = ?", id).Update("position", i)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return nil
	})
}
