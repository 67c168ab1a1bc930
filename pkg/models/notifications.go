package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Notification channels
const (
	ChannelAdminSMS      = "admin_sms"
	ChannelCustomerSMS   = "customer_sms"
	ChannelCustomerEmail = "customer_email"
	ChannelInApp         = "in_app"

	// ChannelAdminEmail carries staff reports outside the order fan-out
	ChannelAdminEmail = "admin_email"
)

// AllChannels lists the pipeline fan-out channels
var AllChannels = []string{ChannelAdminSMS, ChannelCustomerSMS, ChannelCustomerEmail, ChannelInApp}

// Notification kinds
const (
	KindOrderPlaced      = "order_placed"
	KindPaymentConfirmed = "payment_confirmed"
	KindPaymentFailed    = "payment_failed"
	KindLowStock         = "low_stock_alert"
)

// Notification log statuses
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationSkipped = "skipped"
)

// NotificationSettings is the single row of notification preferences edited in the admin panel
type NotificationSettings struct {
	BaseModel
	AdminPhones          string `gorm:"type:text" json:"admin_phones"` // comma separated
	AdminEmails          string `gorm:"type:text" json:"admin_emails"` // comma separated
	AdminSMSEnabled      bool   `gorm:"default:true" json:"admin_sms_enabled"`
	CustomerSMSEnabled   bool   `gorm:"default:true" json:"customer_sms_enabled"`
	CustomerEmailEnabled bool   `gorm:"default:true" json:"customer_email_enabled"`
	InAppEnabled         bool   `gorm:"default:true" json:"in_app_enabled"`
	SenderName           string `gorm:"default:'KidShop'" json:"sender_name"`
}

// ChannelEnabled reports whether a fan-out channel is switched on
func (s *NotificationSettings) ChannelEnabled(channel string) bool {
	switch channel {
	case ChannelAdminSMS:
		return s.AdminSMSEnabled
	case ChannelCustomerSMS:
		return s.CustomerSMSEnabled
	case ChannelCustomerEmail:
		return s.CustomerEmailEnabled
	case ChannelInApp:
		return s.InAppEnabled
	}
	return false
}

// AdminPhoneList returns the configured admin phones
func (s *NotificationSettings) AdminPhoneList() []string {
	return ParseList(s.AdminPhones)
}

// AdminEmailList returns the configured admin emails
func (s *NotificationSettings) AdminEmailList() []string {
	return ParseList(s.AdminEmails)
}

// ParseList splits a comma separated list, dropping blanks
func ParseList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UpdateNotificationSettingsRequest is the admin payload for settings
type UpdateNotificationSettingsRequest struct {
	AdminPhones          *string `json:"admin_phones"`
	AdminEmails          *string `json:"admin_emails"`
	AdminSMSEnabled      *bool   `json:"admin_sms_enabled"`
	CustomerSMSEnabled   *bool   `json:"customer_sms_enabled"`
	CustomerEmailEnabled *bool   `json:"customer_email_enabled"`
	InAppEnabled         *bool   `json:"in_app_enabled"`
	SenderName           *string `json:"sender_name"`
}

// NotificationLog represents one delivery attempt outcome
type NotificationLog struct {
	BaseModel
	OrderID      *uuid.UUID `gorm:"type:uuid;index;constraint:OnDelete:SET NULL" json:"order_id,omitempty"`
	Channel      string     `gorm:"not null;index" json:"channel"`
	Kind         string     `gorm:"not null" json:"kind"`
	Recipient    string     `json:"recipient"`
	Subject      string     `json:"subject"`
	Body         string     `gorm:"type:text" json:"body"`
	Status       string     `gorm:"not null;index" json:"status"`
	Attempts     int        `gorm:"default:0" json:"attempts"`
	SentAt       *time.Time `json:"sent_at"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// InAppNotification is an entry in the admin panel notification bell
type InAppNotification struct {
	BaseModel
	OrderID *uuid.UUID `gorm:"type:uuid;index;constraint:OnDelete:SET NULL" json:"order_id,omitempty"`
	Kind    string     `gorm:"not null" json:"kind"`
	Title   string     `gorm:"not null" json:"title"`
	Body    string     `gorm:"type:text" json:"body"`
	ReadAt  *time.Time `json:"read_at"`
}
