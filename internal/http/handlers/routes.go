package handlers

import (
	"kidshop/internal/app"
	"kidshop/internal/http/middleware"

	"github.com/labstack/echo/v4"
)

// SetupRoutes sets up all API routes
func SetupRoutes(api *echo.Group, services *app.Services) {
	categoryHandler := NewCategoryHandler(services.CategoryService)
	productHandler := NewProductHandler(services.ProductService)
	cartHandler := NewCartHandler(services.CartService)
	orderHandler := NewOrderHandler(services.OrderService)
	translationHandler := NewTranslationHandler(services.TranslationService)
	contentHandler := NewContentHandler(services.ContentService)
	paymentHandler := NewPaymentHandler(
		services.Pipeline,
		services.PaymentClient,
		services.OrderService,
		services.Config.Payment.WebhookSecret,
		services.Config.FrontendURL,
	)

	// Storefront routes (no authentication, language aware)
	public := api.Group("")
	public.Use(middleware.Language())
	categoryHandler.RegisterPublicRoutes(public)
	productHandler.RegisterPublicRoutes(public)
	contentHandler.RegisterPublicRoutes(public)
	cartHandler.RegisterRoutes(public)
	orderHandler.RegisterRoutes(public)
	public.GET("/translations", translationHandler.Lookup)

	// Gateway callbacks are verified by signature, not by token
	paymentHandler.RegisterRoutes(api)

	// Auth routes
	authHandler := NewAuthHandler(services.AuthService)
	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.RefreshToken)

	jwt := middleware.JWTAuth(services.AuthService)
	auth.GET("/me", authHandler.Me, jwt)
	auth.PUT("/change-password", authHandler.ChangePassword, jwt)

	// Admin panel routes (staff and above)
	admin := api.Group("/admin")
	admin.Use(jwt)
	admin.Use(middleware.StaffOnly())

	categoryHandler.RegisterRoutes(admin)
	productHandler.RegisterRoutes(admin)
	translationHandler.RegisterRoutes(admin)
	contentHandler.RegisterRoutes(admin)

	adminOrderHandler := NewAdminOrderHandler(services.OrderService, services.Pipeline, services.Pipeline)
	adminOrderHandler.RegisterRoutes(admin)

	notificationHandler := NewNotificationHandler(services.NotificationSettingsService, services.NotificationRepo, services.AlertService)
	notificationHandler.RegisterRoutes(admin, middleware.AdminOnly())

	// Live updates for the admin panel
	wsHandler := NewWebSocketHandler(services.Hub)
	admin.GET("/ws", wsHandler.HandleWebSocket)
	admin.GET("/ws/clients", wsHandler.ConnectedClients)
}
