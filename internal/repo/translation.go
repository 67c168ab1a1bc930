package repo

import (
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TranslationRepository handles UI string data access
type TranslationRepository struct {
	db *gorm.DB
}

// NewTranslationRepository creates a new translation repository
func NewTranslationRepository(db *gorm.DB) *TranslationRepository {
	return &TranslationRepository{db: db}
}

// GetByID gets a translation by ID
func (r *TranslationRepository) GetByID(id uuid.UUID) (*models.Translation, error) {
	var t models.Translation
	if err := r.db.Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByKey gets a translation by key
func (r *TranslationRepository) GetByKey(key string) (*models.Translation, error) {
	var t models.Translation
	if err := r.db.Where("key = ?", key).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// List lists translations, optionally within a namespace and matching a key search
func (r *TranslationRepository) List(namespace, search string) ([]models.Translation, error) {
	var translations []models.Translation
	query := r.db.Order("namespace ASC, key ASC")
	if namespace != "" {
		query = query.Where("namespace = ?", namespace)
	}
	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("key ILIKE ? OR value::text ILIKE ?", pattern, pattern)
	}
	if err := query.Find(&translations).Error; err != nil {
		return nil, err
	}
	return translations, nil
}

// ListMissing lists translations with at least one empty language
func (r *TranslationRepository) ListMissing() ([]models.Translation, error) {
	var translations []models.Translation
	err := r.db.Where("COALESCE(value->>'ka','') = '' OR COALESCE(value->>'en','') = '' OR COALESCE(value->>'ru','') = ''").
		Order("key ASC").
		Find(&translations).Error
	return translations, err
}

// Create creates a translation
func (r *TranslationRepository) Create(t *models.Translation) error {
	return r.db.Create(t).Error
}

// Update updates a translation
func (r *TranslationRepository) Update(t *models.Translation) error {
	return r.db.Save(t).Error
}

// Delete removes a translation; keys are unique so the row is deleted for good
func (r *TranslationRepository) Delete(id uuid.UUID) error {
	result := r.db.Unscoped().Where("id = ?", id).Delete(&models.Translation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
