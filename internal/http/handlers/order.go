package handlers

import (
	"net/http"
	"strings"

	"kidshop/internal/http/middleware"
	"kidshop/internal/services"
	"kidshop/pkg/models"

	"github.com/labstack/echo/v4"
)

// OrderHandler serves storefront checkout and order lookup
type OrderHandler struct {
	orderService *services.OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// RetryPaymentRequest identifies the customer's order
type RetryPaymentRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// Place godoc
// @Summary Place order
// @Description Creates an order from a cart token or an item list. Card orders return a payment_url.
// @Tags orders
// @Accept json
// @Produce json
// @Param order body models.PlaceOrderRequest true "Checkout data"
// @Success 201 {object} services.PlaceOrderResult
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /orders [post]
func (h *OrderHandler) Place(c echo.Context) error {
	var req models.PlaceOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.CartToken) == "" && len(req.Items) == 0 {
		return errorJSON(c, http.StatusBadRequest, "cart_token or items is required")
	}
	if req.Language == "" {
		req.Language = string(middleware.Lang(c))
	}

	result, err := h.orderService.PlaceOrder(c.Request().Context(), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

// Lookup godoc
// @Summary Look up an order
// @Description The phone must match the one used at checkout
// @Tags orders
// @Produce json
// @Param number path string true "Order number"
// @Param phone query string true "Customer phone"
// @Success 200 {object} models.Order
// @Failure 404 {object} map[string]string
// @Router /orders/{number} [get]
func (h *OrderHandler) Lookup(c echo.Context) error {
	order, err := h.orderService.Lookup(c.Request().Context(), c.Param("number"), c.QueryParam("phone"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// RetryPayment godoc
// @Summary Retry card payment
// @Description Opens a new payment session for an unpaid card order
// @Tags orders
// @Accept json
// @Produce json
// @Param number path string true "Order number"
// @Param request body RetryPaymentRequest true "Customer phone"
// @Success 200 {object} services.PlaceOrderResult
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{number}/payment [post]
func (h *OrderHandler) RetryPayment(c echo.Context) error {
	var req RetryPaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	result, err := h.orderService.RetryPayment(c.Request().Context(), c.Param("number"), req.Phone)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// RegisterRoutes registers storefront order routes
func (h *OrderHandler) RegisterRoutes(g *echo.Group) {
	orders := g.Group("/orders")
	orders.POST("", h.Place)
	orders.GET("/:number", h.Lookup)
	orders.POST("/:number/payment", h.RetryPayment)
}
