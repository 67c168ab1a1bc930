package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"kidshop/internal/repo"
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Suggester fills missing languages of a text
type Suggester interface {
	Suggest(ctx context.Context, text models.LocalizedText, hint string) (models.LocalizedText, error)
}

// TranslationRequest is the admin payload for a UI string
type TranslationRequest struct {
	Key       string               `json:"key" validate:"required,max=200"`
	Namespace string               `json:"namespace"`
	Value     models.LocalizedText `json:"value"`
}

// TranslationService serves UI strings and keeps a per-language lookup cache
type TranslationService struct {
	repo      *repo.TranslationRepository
	suggester Suggester

	mu    sync.RWMutex
	cache map[string]map[string]string // namespace|lang -> key -> value
}

// NewTranslationService creates a translation service. suggester may be nil.
func NewTranslationService(r *repo.TranslationRepository, suggester Suggester) *TranslationService {
	return &TranslationService{
		repo:      r,
		suggester: suggester,
		cache:     map[string]map[string]string{},
	}
}

// Lookup returns key -> text for a language, with fallback through ka, en, ru
func (s *TranslationService) Lookup(namespace string, lang models.Language) (map[string]string, error) {
	cacheKey := namespace + "|" + string(lang)

	s.mu.RLock()
	cached, ok := s.cache[cacheKey]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	items, err := s.repo.List(namespace, "")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(items))
	for _, t := range items {
		out[t.Key] = t.Value.Get(lang)
	}

	s.mu.Lock()
	s.cache[cacheKey] = out
	s.mu.Unlock()
	return out, nil
}

func (s *TranslationService) invalidate() {
	s.mu.Lock()
	s.cache = map[string]map[string]string{}
	s.mu.Unlock()
}

// List lists translations for the admin editor
func (s *TranslationService) List(namespace, search string, missingOnly bool) ([]models.Translation, error) {
	if missingOnly {
		return s.repo.ListMissing()
	}
	return s.repo.List(namespace, search)
}

// Create creates a translation
func (s *TranslationService) Create(req *TranslationRequest) (*models.Translation, error) {
	key := strings.TrimSpace(req.Key)
	if _, err := s.repo.GetByKey(key); err == nil {
		return nil, ErrSlugTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	t := &models.Translation{Key: key, Namespace: namespaceOrDefault(req.Namespace), Value: req.Value}
	if err := s.repo.Create(t); err != nil {
		return nil, err
	}
	s.invalidate()
	return t, nil
}

// Update updates a translation
func (s *TranslationService) Update(id uuid.UUID, req *TranslationRequest) (*models.Translation, error) {
	t, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(req.Key)
	if key != t.Key {
		if existing, err := s.repo.GetByKey(key); err == nil && existing.ID != id {
			return nil, ErrSlugTaken
		}
		t.Key = key
	}
	t.Namespace = namespaceOrDefault(req.Namespace)
	t.Value = req.Value
	if err := s.repo.Update(t); err != nil {
		return nil, err
	}
	s.invalidate()
	return t, nil
}

// Delete deletes a translation
func (s *TranslationService) Delete(id uuid.UUID) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// Suggest asks the AI suggester for the missing languages. Nothing is saved.
func (s *TranslationService) Suggest(ctx context.Context, id uuid.UUID) (*models.Translation, error) {
	if s.suggester == nil {
		return nil, ErrSuggestionsDisabled
	}
	t, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	value, err := s.suggester.Suggest(ctx, t.Value, "UI string key "+t.Key)
	if err != nil {
		return nil, err
	}
	t.Value = value
	return t, nil
}

func namespaceOrDefault(ns string) string {
	if ns = strings.TrimSpace(ns); ns != "" {
		return ns
	}
	return "common"
}
