package handlers

import (
	"net/http"

	"kidshop/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CartHandler serves anonymous carts
type CartHandler struct {
	cartService *services.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *services.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

// AddCartItemRequest adds a product to a cart
type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// UpdateCartItemRequest sets a line quantity
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// Create godoc
// @Summary Create cart
// @Tags carts
// @Produce json
// @Success 201 {object} services.CartView
// @Router /carts [post]
func (h *CartHandler) Create(c echo.Context) error {
	cart, err := h.cartService.Create()
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, cart)
}

// Get godoc
// @Summary Get cart
// @Tags carts
// @Produce json
// @Param token path string true "Cart token"
// @Success 200 {object} services.CartView
// @Failure 404 {object} map[string]string
// @Router /carts/{token} [get]
func (h *CartHandler) Get(c echo.Context) error {
	cart, err := h.cartService.Get(c.Param("token"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// AddItem godoc
// @Summary Add item to cart
// @Description Adding a product already in the cart increases its quantity
// @Tags carts
// @Accept json
// @Produce json
// @Param token path string true "Cart token"
// @Param item body AddCartItemRequest true "Item"
// @Success 200 {object} services.CartView
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /carts/{token}/items [post]
func (h *CartHandler) AddItem(c echo.Context) error {
	var req AddCartItemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cart, err := h.cartService.AddItem(c.Param("token"), req.ProductID, req.Quantity)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// UpdateItem godoc
// @Summary Set cart item quantity
// @Tags carts
// @Accept json
// @Produce json
// @Param token path string true "Cart token"
// @Param id path string true "Cart item ID"
// @Param item body UpdateCartItemRequest true "Quantity"
// @Success 200 {object} services.CartView
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /carts/{token}/items/{id} [put]
func (h *CartHandler) UpdateItem(c echo.Context) error {
	itemID, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid item ID")
	}
	var req UpdateCartItemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cart, err := h.cartService.UpdateItem(c.Param("token"), itemID, req.Quantity)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// RemoveItem godoc
// @Summary Remove cart item
// @Tags carts
// @Produce json
// @Param token path string true "Cart token"
// @Param id path string true "Cart item ID"
// @Success 200 {object} services.CartView
// @Failure 404 {object} map[string]string
// @Router /carts/{token}/items/{id} [delete]
func (h *CartHandler) RemoveItem(c echo.Context) error {
	itemID, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid item ID")
	}
	cart, err := h.cartService.RemoveItem(c.Param("token"), itemID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// RegisterRoutes registers cart routes
func (h *CartHandler) RegisterRoutes(g *echo.Group) {
	carts := g.Group("/carts")
	carts.POST("", h.Create)
	carts.GET("/:token", h.Get)
	carts.POST("/:token/items", h.AddItem)
	carts.PUT("/:token/items/:id", h.UpdateItem)
	carts.DELETE("/:token/items/:id", h.RemoveItem)
}
