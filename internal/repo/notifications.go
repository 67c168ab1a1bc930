package repo

import (
	"context"
	"time"

	"kidshop/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationLogFilters filters the delivery log
type NotificationLogFilters struct {
	OrderID *uuid.UUID
	Channel string
	Status  string
}

// ChannelStats counts log rows per channel and status
type ChannelStats struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Count   int64  `json:"count"`
}

// NotificationRepository handles notification data access
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// GetSettings returns the notification settings row, creating it with defaults when missing
func (r *NotificationRepository) GetSettings(ctx context.Context) (*models.NotificationSettings, error) {
	var settings models.NotificationSettings
	err := r.db.WithContext(ctx).Order("created_at ASC").
		Attrs(models.NotificationSettings{
			AdminSMSEnabled:      true,
			CustomerSMSEnabled:   true,
			CustomerEmailEnabled: true,
			InAppEnabled:         true,
			SenderName:           "KidShop",
		}).
		FirstOrCreate(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveSettings stores the notification settings row
func (r *NotificationRepository) SaveSettings(ctx context.Context, settings *models.NotificationSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}

// CreateLog creates a new notification log
func (r *NotificationRepository) CreateLog(ctx context.Context, log *models.NotificationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ListLogs lists delivery log rows, newest first
func (r *NotificationRepository) ListLogs(ctx context.Context, filters NotificationLogFilters, page, perPage int) (*models.PaginationResult[models.NotificationLog], error) {
	var logs []models.NotificationLog
	var total int64

	query := r.db.WithContext(ctx).Model(&models.NotificationLog{})
	if filters.OrderID != nil {
		query = query.Where("order_id = ?", *filters.OrderID)
	}
	if filters.Channel != "" {
		query = query.Where("channel = ?", filters.Channel)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (page - 1) * perPage
	if err := query.Order("created_at DESC").Limit(perPage).Offset(offset).Find(&logs).Error; err != nil {
		return nil, err
	}
	return models.NewPaginationResult(logs, total, page, perPage), nil
}

// Stats counts log rows per channel and status since a point in time
func (r *NotificationRepository) Stats(ctx context.Context, since time.Time) ([]ChannelStats, error) {
	var stats []ChannelStats
	err := r.db.WithContext(ctx).Model(&models.NotificationLog{}).
		Select("channel, status, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("channel, status").
		Order("channel, status").
		Scan(&stats).Error
	return stats, err
}

// CreateInApp stores an admin panel notification
func (r *NotificationRepository) CreateInApp(ctx context.Context, n *models.InAppNotification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// ListInApp lists admin panel notifications, newest first
func (r *NotificationRepository) ListInApp(ctx context.Context, unreadOnly bool, page, perPage int) (*models.PaginationResult[models.InAppNotification], error) {
	var items []models.InAppNotification
	var total int64

	query := r.db.WithContext(ctx).Model(&models.InAppNotification{})
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (page - 1) * perPage
	if err := query.Order("created_at DESC").Limit(perPage).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return models.NewPaginationResult(items, total, page, perPage), nil
}

// MarkRead marks one notification as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.InAppNotification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", time.Now())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		r.db.WithContext(ctx).Model(&models.InAppNotification{}).Where("id = ?", id).Count(&count)
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

// MarkAllRead marks every unread notification as read
func (r *NotificationRepository) MarkAllRead(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.InAppNotification{}).
		Where("read_at IS NULL").
		Update("read_at", time.Now())
	return result.RowsAffected, result.Error
}

// UnreadCount counts unread admin panel notifications
func (r *NotificationRepository) UnreadCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.InAppNotification{}).Where("read_at IS NULL").Count(&count).Error
	return count, err
}

// IsSentSince reports whether a notification of kind was sent after since
func (r *NotificationRepository) IsSentSince(ctx context.Context, kind string, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.NotificationLog{}).
		Where("kind = ? AND status = ? AND created_at >= ?", kind, models.NotificationSent, since).
		Count(&count).Error
	return count > 0, err
}
