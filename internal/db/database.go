package db

import (
	"errors"
	"fmt"

	"kidshop/internal/config"
	"kidshop/pkg/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase creates a new database connection
func NewDatabase(cfg config.DBConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: false,
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// AutoMigrate runs database migrations using GORM
func AutoMigrate(db *gorm.DB) error {
	log.Info().Msg("Running GORM AutoMigrate...")

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Warn().Err(err).Msg("Could not create uuid-ossp extension")
	}

	if err := db.AutoMigrate(models.GetAllModels()...); err != nil {
		return fmt.Errorf("failed to run GORM AutoMigrate: %w", err)
	}

	createCustomIndexes(db)

	log.Info().Msg("GORM AutoMigrate completed successfully")
	return nil
}

// createCustomIndexes creates indexes GORM tags cannot express
func createCustomIndexes(db *gorm.DB) {
	indexes := []string{
		// Storefront search over every language of the product name
		`CREATE INDEX IF NOT EXISTS idx_products_name_trgm ON products USING gin ((lower(name::text)) gin_trgm_ops)`,

		// Pending notifications lookup for reconciliation sweeps
		`CREATE INDEX IF NOT EXISTS idx_orders_pending_notifications ON orders (created_at) WHERE admin_sms_sent = false OR customer_sms_sent = false OR customer_email_sent = false OR in_app_notified = false`,

		// Unread bell entries
		`CREATE INDEX IF NOT EXISTS idx_in_app_notifications_unread ON in_app_notifications (created_at) WHERE read_at IS NULL`,
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`).Error; err != nil {
		log.Warn().Err(err).Msg("Could not create pg_trgm extension")
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			log.Warn().Err(err).Str("sql", idx).Msg("Failed to create index")
		}
	}
}

// SeedInitialData creates the notification settings row and, when credentials are
// given, the first admin user
func SeedInitialData(db *gorm.DB, adminEmail, adminPassword string) error {
	log.Info().Msg("Seeding initial data...")

	var settings models.NotificationSettings
	err := db.First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.NotificationSettings{
			AdminSMSEnabled:      true,
			CustomerSMSEnabled:   true,
			CustomerEmailEnabled: true,
			InAppEnabled:         true,
			SenderName:           "KidShop",
		}
		if err := db.Create(&settings).Error; err != nil {
			return fmt.Errorf("failed to create notification settings: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check notification settings: %w", err)
	}

	if adminEmail == "" || adminPassword == "" {
		return nil
	}

	var userCount int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&userCount).Error; err != nil {
		return fmt.Errorf("failed to check existing users: %w", err)
	}
	if userCount > 0 {
		return nil
	}

	if _, err := CreateAdmin(db, adminEmail, adminPassword, "Administrator", models.RoleAdmin); err != nil {
		return err
	}
	log.Info().Str("email", adminEmail).Msg("Admin user created")
	return nil
}

// CreateAdmin creates an admin panel user with a bcrypt hashed password
func CreateAdmin(db *gorm.DB, email, password, name, role string) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hashed),
		Name:     name,
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// RunMigrations is the main migration function called from main.go
func RunMigrations(db *gorm.DB, cfg *config.Config) error {
	log.Info().Msg("Starting database migrations...")

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("AutoMigrate failed: %w", err)
	}

	if err := SeedInitialData(db, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPass); err != nil {
		return fmt.Errorf("initial data seeding failed: %w", err)
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
