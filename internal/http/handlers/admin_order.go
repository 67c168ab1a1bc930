package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"kidshop/internal/http/middleware"
	"kidshop/internal/orderflow"
	"kidshop/internal/payment"
	"kidshop/internal/repo"
	"kidshop/internal/services"
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// NotificationResender re-runs one notification channel for an order
type NotificationResender interface {
	Resend(ctx context.Context, orderID uuid.UUID, channel string) (*orderflow.ChannelResult, error)
}

// AdminOrderHandler serves order management for the admin panel
type AdminOrderHandler struct {
	orderService *services.OrderService
	confirmer    PaymentConfirmer
	resender     NotificationResender
}

// NewAdminOrderHandler creates a new admin order handler
func NewAdminOrderHandler(orderService *services.OrderService, confirmer PaymentConfirmer, resender NotificationResender) *AdminOrderHandler {
	return &AdminOrderHandler{
		orderService: orderService,
		confirmer:    confirmer,
		resender:     resender,
	}
}

// ResendRequest names the channel to resend
type ResendRequest struct {
	Channel string `json:"channel" validate:"required,oneof=admin_sms customer_sms customer_email in_app"`
}

// List godoc
// @Summary List orders
// @Tags admin-orders
// @Produce json
// @Param status query string false "Order status"
// @Param payment_status query string false "Payment status"
// @Param search query string false "Order number, customer name or phone"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param per_page query int false "Items per page"
// @Success 200 {object} models.PaginationResult[models.Order]
// @Router /admin/orders [get]
// @Security BearerAuth
func (h *AdminOrderHandler) List(c echo.Context) error {
	page, perPage := pagination(c)
	filters := repo.OrderFilters{
		Status:        c.QueryParam("status"),
		PaymentStatus: c.QueryParam("payment_status"),
		Search:        strings.TrimSpace(c.QueryParam("search")),
	}
	if from, err := time.Parse("2006-01-02", c.QueryParam("from")); err == nil {
		filters.From = &from
	}
	if to, err := time.Parse("2006-01-02", c.QueryParam("to")); err == nil {
		end := to.Add(24*time.Hour - time.Nanosecond)
		filters.To = &end
	}

	result, err := h.orderService.List(c.Request().Context(), filters, page, perPage)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Get godoc
// @Summary Get order
// @Tags admin-orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} models.Order
// @Failure 404 {object} map[string]string
// @Router /admin/orders/{id} [get]
// @Security BearerAuth
func (h *AdminOrderHandler) Get(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid order ID")
	}
	order, err := h.orderService.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// History godoc
// @Summary Order status history
// @Tags admin-orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {array} models.OrderStatusHistory
// @Router /admin/orders/{id}/history [get]
// @Security BearerAuth
func (h *AdminOrderHandler) History(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid order ID")
	}
	history, err := h.orderService.History(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

// UpdateStatus godoc
// @Summary Update order status
// @Description Records history. Cancelling returns taken stock.
// @Tags admin-orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body models.UpdateOrderStatusRequest true "New status"
// @Success 200 {object} models.Order
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /admin/orders/{id}/status [put]
// @Security BearerAuth
func (h *AdminOrderHandler) UpdateStatus(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid order ID")
	}
	var req models.UpdateOrderStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	order, err := h.orderService.UpdateStatus(c.Request().Context(), id, &req, middleware.UserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// Resend godoc
// @Summary Resend one notification channel
// @Tags admin-orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body ResendRequest true "Channel"
// @Success 200 {object} orderflow.ChannelResult
// @Failure 400 {object} map[string]string
// @Router /admin/orders/{id}/notifications/resend [post]
// @Security BearerAuth
func (h *AdminOrderHandler) Resend(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid order ID")
	}
	var req ResendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	result, err := h.resender.Resend(c.Request().Context(), id, req.Channel)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Reconcile godoc
// @Summary Reconcile payment with the gateway
// @Tags admin-orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} orderflow.Report
// @Failure 400 {object} map[string]string
// @Router /admin/orders/{id}/reconcile [post]
// @Security BearerAuth
func (h *AdminOrderHandler) Reconcile(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid order ID")
	}
	report, err := h.confirmer.Reconcile(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// MarkPaid godoc
// @Summary Mark a bank transfer order as paid
// @Description Confirms payment received outside the card gateway
// @Tags admin-orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} orderflow.Report
// @Failure 409 {object} map[string]string
// @Router /admin/orders/{id}/mark-paid [post]
// @Security BearerAuth
func (h *AdminOrderHandler) MarkPaid(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid order ID")
	}
	order, err := h.orderService.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	if order.PaymentMethod == models.PaymentMethodCard || order.Status == models.OrderStatusCancelled {
		return serviceError(c, services.ErrInvalidOrderState)
	}

	externalID := "manual-" + order.OrderNumber
	if userID := middleware.UserID(c); userID != nil {
		externalID += "-" + userID.String()[:8]
	}
	report, err := h.confirmer.ConfirmPayment(c.Request().Context(), &payment.Result{
		OrderID:     order.ID,
		ExternalID:  externalID,
		OrderNumber: order.OrderNumber,
		Status:      models.PaymentStatusPaid,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
		Provider:    "manual",
	}, "admin")
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// RegisterRoutes registers admin order routes
func (h *AdminOrderHandler) RegisterRoutes(g *echo.Group) {
	orders := g.Group("/orders")
	orders.GET("", h.List)
	orders.GET("/:id", h.Get)
	orders.GET("/:id/history", h.History)
	orders.PUT("/:id/status", h.UpdateStatus)
	orders.POST("/:id/notifications/resend", h.Resend)
	orders.POST("/:id/reconcile", h.Reconcile)
	orders.POST("/:id/mark-paid", h.MarkPaid)
}
