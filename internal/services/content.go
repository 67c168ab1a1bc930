package services

import (
	"fmt"

	"kidshop/internal/repo"
	"kidshop/pkg/models"

	"github.com/google/uuid"
)

// ContentService manages homepage sections and footer blocks
type ContentService struct {
	repo *repo.ContentRepository
}

// NewContentService creates a new content service
func NewContentService(r *repo.ContentRepository) *ContentService {
	return &ContentService{repo: r}
}

// Sections lists homepage sections
func (s *ContentService) Sections(includeInactive bool) ([]models.HomepageSection, error) {
	return s.repo.ListSections(includeInactive)
}

// SaveSection creates (id == uuid.Nil) or replaces a homepage section
func (s *ContentService) SaveSection(id uuid.UUID, in *models.HomepageSection) (*models.HomepageSection, error) {
	if id != uuid.Nil {
		existing, err := s.repo.GetSection(id)
		if err != nil {
			return nil, err
		}
		in.BaseModel = existing.BaseModel
	} else if in.Position == 0 {
		sections, err := s.repo.ListSections(true)
		if err != nil {
			return nil, err
		}
		in.Position = len(sections)
	}
	if err := s.repo.SaveSection(in); err != nil {
		return nil, err
	}
	return in, nil
}

// DeleteSection deletes a homepage section
func (s *ContentService) DeleteSection(id uuid.UUID) error {
	if _, err := s.repo.GetSection(id); err != nil {
		return err
	}
	return s.repo.DeleteSection(id)
}

// ReorderSections sets section positions in the given order
func (s *ContentService) ReorderSections(rawIDs []string) error {
	ids, err := parseIDs(rawIDs)
	if err != nil {
		return err
	}
	return s.repo.ReorderSections(ids)
}

// Footer lists footer blocks
func (s *ContentService) Footer(includeInactive bool) ([]models.FooterContent, error) {
	return s.repo.ListFooter(includeInactive)
}

// SaveFooter creates (id == uuid.Nil) or replaces a footer block
func (s *ContentService) SaveFooter(id uuid.UUID, in *models.FooterContent) (*models.FooterContent, error) {
	if id != uuid.Nil {
		existing, err := s.repo.GetFooter(id)
		if err != nil {
			return nil, err
		}
		in.BaseModel = existing.BaseModel
	}
	if err := s.repo.SaveFooter(in); err != nil {
		return nil, err
	}
	return in, nil
}

// DeleteFooter deletes a footer block
func (s *ContentService) DeleteFooter(id uuid.UUID) error {
	if _, err := s.repo.GetFooter(id); err != nil {
		return err
	}
	return s.repo.DeleteFooter(id)
}

// ReorderFooter sets footer positions in the given order
func (s *ContentService) ReorderFooter(rawIDs []string) error {
	ids, err := parseIDs(rawIDs)
	if err != nil {
		return err
	}
	return s.repo.ReorderFooter(ids)
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	seen := map[uuid.UUID]bool{}
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id %q", ErrInvalidInput, r)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidInput, r)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
