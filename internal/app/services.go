package app

import (
	"kidshop/internal/ai"
	"kidshop/internal/auth"
	"kidshop/internal/config"
	"kidshop/internal/orderflow"
	"kidshop/internal/payment"
	"kidshop/internal/realtime"
	"kidshop/internal/repo"
	"kidshop/internal/services"
	"kidshop/internal/sms"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Services holds all application services
type Services struct {
	Config *config.Config
	DB     *gorm.DB

	UserRepo         *repo.UserRepository
	ProductRepo      *repo.ProductRepository
	CategoryRepo     *repo.CategoryRepository
	CartRepo         *repo.CartRepository
	OrderRepo        *repo.OrderRepository
	TranslationRepo  *repo.TranslationRepository
	ContentRepo      *repo.ContentRepository
	NotificationRepo *repo.NotificationRepository

	AuthService                 *auth.Service
	CategoryService             *services.CategoryService
	ProductService              *services.ProductService
	CartService                 *services.CartService
	OrderService                *services.OrderService
	TranslationService          *services.TranslationService
	ContentService              *services.ContentService
	NotificationSettingsService *services.NotificationSettingsService
	AlertService                *services.AlertService
	EmailService                *services.EmailService
	StorageService              *services.StorageService

	SMSClient     *sms.Client
	PaymentClient *payment.Client
	Hub           *realtime.Hub
	Pipeline      *orderflow.Pipeline
}

// NewServices creates a new services container. Optional integrations that are not
// configured are logged and left disabled.
func NewServices(db *gorm.DB, cfg *config.Config) *Services {
	userRepo := repo.NewUserRepository(db)
	productRepo := repo.NewProductRepository(db)
	categoryRepo := repo.NewCategoryRepository(db)
	cartRepo := repo.NewCartRepository(db)
	orderRepo := repo.NewOrderRepository(db)
	translationRepo := repo.NewTranslationRepository(db)
	contentRepo := repo.NewContentRepository(db)
	notificationRepo := repo.NewNotificationRepository(db)

	authService := auth.NewService(userRepo, cfg.JWTSecret, cfg.JWTAccessDuration, cfg.JWTRefreshDuration)
	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET not set, admin tokens are signed with an empty key")
	}

	emailService, err := services.NewEmailService(cfg.Email)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize email service")
	}
	if emailService != nil && !emailService.Configured() {
		log.Warn().Msg("Email service not configured, email notifications will be skipped")
	}

	storageService, err := services.NewStorageService(cfg.Storage)
	if err != nil {
		log.Warn().Err(err).Msg("Storage service disabled, product image uploads are unavailable")
		storageService = nil
	}

	smsClient := sms.NewClient(cfg.SMS)
	if !smsClient.Configured() {
		log.Warn().Msg("SMS gateway not configured, SMS notifications will be skipped")
	}

	paymentClient := payment.NewClient(cfg.Payment, cfg.CallbackURL())
	if !paymentClient.Configured() {
		log.Warn().Msg("Payment gateway not configured, card checkout is disabled")
	}

	hub := realtime.NewHub(cfg.CORSOrigins)

	deps := orderflow.Deps{
		Orders:        orderRepo,
		Notifications: notificationRepo,
		SMS:           smsClient,
		Hub:           hub,
		Gateway:       paymentClient,
		ShopName:      cfg.ShopName,
	}
	if emailService != nil {
		deps.Email = emailService
	}
	pipeline := orderflow.New(deps)

	var suggester services.Suggester
	if translator := ai.NewTranslator(cfg.OpenAIAPIKey, cfg.OpenAIModel); translator != nil {
		suggester = translator
	} else {
		log.Info().Msg("OPENAI_API_KEY not set, translation suggestions disabled")
	}

	pricing := services.Pricing{
		ShippingFlatRate:      cfg.ShippingFlatRate,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
	}

	categoryService := services.NewCategoryService(categoryRepo)

	var mailer services.Mailer
	if emailService != nil {
		mailer = emailService
	}

	return &Services{
		Config: cfg,
		DB:     db,

		UserRepo:         userRepo,
		ProductRepo:      productRepo,
		CategoryRepo:     categoryRepo,
		CartRepo:         cartRepo,
		OrderRepo:        orderRepo,
		TranslationRepo:  translationRepo,
		ContentRepo:      contentRepo,
		NotificationRepo: notificationRepo,

		AuthService:                 authService,
		CategoryService:             categoryService,
		ProductService:              services.NewProductService(productRepo, categoryService, storageService),
		CartService:                 services.NewCartService(cartRepo, productRepo, pricing),
		OrderService:                services.NewOrderService(orderRepo, productRepo, cartRepo, pricing, paymentClient, pipeline, cfg.PaymentReturnURL()),
		TranslationService:          services.NewTranslationService(translationRepo, suggester),
		ContentService:              services.NewContentService(contentRepo),
		NotificationSettingsService: services.NewNotificationSettingsService(notificationRepo),
		AlertService:                services.NewAlertService(productRepo, notificationRepo, mailer),
		EmailService:                emailService,
		StorageService:              storageService,

		SMSClient:     smsClient,
		PaymentClient: paymentClient,
		Hub:           hub,
		Pipeline:      pipeline,
	}
}
