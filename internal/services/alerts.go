package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"kidshop/pkg/models"

	"github.com/rs/zerolog/log"
)

// ErrAlreadySentToday is returned when the daily report went out already
var ErrAlreadySentToday = errors.New("low stock alert already sent today")

// Mailer sends an HTML email
type Mailer interface {
	Configured() bool
	SendEmail(ctx context.Context, to []string, subject, body string) error
}

// LowStockSource lists products at or under their threshold
type LowStockSource interface {
	ListLowStock() ([]models.Product, error)
}

// AlertLog reads settings and writes the notification log for alerts
type AlertLog interface {
	GetSettings(ctx context.Context) (*models.NotificationSettings, error)
	CreateLog(ctx context.Context, log *models.NotificationLog) error
	IsSentSince(ctx context.Context, kind string, since time.Time) (bool, error)
}

// AlertService sends stock reports to the shop staff
type AlertService struct {
	productRepo      LowStockSource
	notificationRepo AlertLog
	mailer           Mailer
	now              func() time.Time
}

// NewAlertService creates a new alert service
func NewAlertService(productRepo LowStockSource, notificationRepo AlertLog, mailer Mailer) *AlertService {
	return &AlertService{
		productRepo:      productRepo,
		notificationRepo: notificationRepo,
		mailer:           mailer,
		now:              time.Now,
	}
}

// SendLowStockAlert emails the admin addresses a list of products at or under their
// threshold, at most once per day unless force is set. It returns the number of products listed.
func (s *AlertService) SendLowStockAlert(ctx context.Context, force bool) (int, error) {
	if s.mailer == nil || !s.mailer.Configured() {
		return 0, ErrEmailNotConfigured
	}

	if !force {
		now := s.now()
		year, month, day := now.Date()
		startOfDay := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
		sent, err := s.notificationRepo.IsSentSince(ctx, models.KindLowStock, startOfDay)
		if err != nil {
			return 0, err
		}
		if sent {
			return 0, ErrAlreadySentToday
		}
	}

	products, err := s.productRepo.ListLowStock()
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 0, nil
	}

	settings, err := s.notificationRepo.GetSettings(ctx)
	if err != nil {
		return 0, err
	}
	recipients := settings.AdminEmailList()
	if len(recipients) == 0 {
		return 0, fmt.Errorf("no admin emails configured")
	}

	subject := fmt.Sprintf("მარაგი იწურება: %d პროდუქტი", len(products))
	body, err := renderLowStockTemplate(products)
	if err != nil {
		return 0, fmt.Errorf("failed to render email template: %w", err)
	}

	sendErr := s.mailer.SendEmail(ctx, recipients, subject, body)
	for _, to := range recipients {
		entry := &models.NotificationLog{
			Channel:   models.ChannelAdminEmail,
			Kind:      models.KindLowStock,
			Recipient: to,
			Subject:   subject,
			Body:      body,
			Attempts:  1,
			Status:    models.NotificationSent,
		}
		if sendErr != nil {
			entry.Status = models.NotificationFailed
			entry.ErrorMessage = sendErr.Error()
		} else {
			sentAt := s.now()
			entry.SentAt = &sentAt
		}
		if err := s.notificationRepo.CreateLog(ctx, entry); err != nil {
			log.Error().Err(err).Msg("Failed to write notification log")
		}
	}
	if sendErr != nil {
		return 0, sendErr
	}
	return len(products), nil
}

var lowStockTemplate = template.Must(template.New("low_stock").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .header { background-color: #FF9800; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; }
        .product { background-color: #fff3cd; border: 1px solid #ffeaa7; padding: 10px; margin: 10px 0; border-radius: 5px; }
        .product-name { font-weight: bold; color: #e17055; }
        .stock-info { color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>მარაგი იწურება</h1>
        <p>{{.Date}}</p>
    </div>
    <div class="content">
        {{range .Products}}
        <div class="product">
            <div class="product-name">{{.Name}} ({{.SKU}})</div>
            <div class="stock-info">მარაგში: {{.Stock}} / ზღვარი: {{.Threshold}}</div>
        </div>
        {{end}}
    </div>
</body>
</html>
`))

func renderLowStockTemplate(products []models.Product) (string, error) {
	type row struct {
		Name      string
		SKU       string
		Stock     int
		Threshold int
	}
	rows := make([]row, 0, len(products))
	for _, p := range products {
		rows = append(rows, row{
			Name:      p.Name.Get(models.LangKa),
			SKU:       p.SKU,
			Stock:     p.StockQuantity,
			Threshold: p.LowStockThreshold,
		})
	}

	var buf bytes.Buffer
	err := lowStockTemplate.Execute(&buf, map[string]interface{}{
		"Date":     time.Now().Format("02.01.2006"),
		"Products": rows,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
