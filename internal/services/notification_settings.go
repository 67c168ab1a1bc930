package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"kidshop/internal/repo"
	"kidshop/internal/sms"
	"kidshop/pkg/models"
)

// NotificationSettingsService edits the notification preferences row
type NotificationSettingsService struct {
	repo *repo.NotificationRepository
}

// NewNotificationSettingsService creates a new settings service
func NewNotificationSettingsService(r *repo.NotificationRepository) *NotificationSettingsService {
	return &NotificationSettingsService{repo: r}
}

// Get returns the current settings
func (s *NotificationSettingsService) Get(ctx context.Context) (*models.NotificationSettings, error) {
	return s.repo.GetSettings(ctx)
}

// Update applies a partial update. Phone and email lists are validated and normalized.
func (s *NotificationSettingsService) Update(ctx context.Context, req *models.UpdateNotificationSettingsRequest) (*models.NotificationSettings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	if req.AdminPhones != nil {
		phones, err := normalizePhoneList(*req.AdminPhones)
		if err != nil {
			return nil, err
		}
		settings.AdminPhones = phones
	}
	if req.AdminEmails != nil {
		emails, err := normalizeEmailList(*req.AdminEmails)
		if err != nil {
			return nil, err
		}
		settings.AdminEmails = emails
	}
	if req.AdminSMSEnabled != nil {
		settings.AdminSMSEnabled = *req.AdminSMSEnabled
	}
	if req.CustomerSMSEnabled != nil {
		settings.CustomerSMSEnabled = *req.CustomerSMSEnabled
	}
	if req.CustomerEmailEnabled != nil {
		settings.CustomerEmailEnabled = *req.CustomerEmailEnabled
	}
	if req.InAppEnabled != nil {
		settings.InAppEnabled = *req.InAppEnabled
	}
	if req.SenderName != nil {
		settings.SenderName = strings.TrimSpace(*req.SenderName)
	}

	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func normalizePhoneList(raw string) (string, error) {
	var out []string
	for _, p := range models.ParseList(raw) {
		n := sms.NormalizePhone(p)
		if n == "" {
			return "", fmt.Errorf("invalid phone number %q", p)
		}
		out = append(out, n)
	}
	return strings.Join(out, ","), nil
}

func normalizeEmailList(raw string) (string, error) {
	var out []string
	for _, e := range models.ParseList(raw) {
		addr, err := mail.ParseAddress(e)
		if err != nil {
			return "", fmt.Errorf("invalid email %q", e)
		}
		out = append(out, strings.ToLower(addr.Address))
	}
	return strings.Join(out, ","), nil
}
