package handlers

import (
	"net/http"
	"strings"

	"kidshop/internal/repo"
	"kidshop/internal/services"
	"kidshop/pkg/models"

	"github.com/labstack/echo/v4"
)

const maxImageSize = 10 << 20

// ProductHandler serves the catalog
type ProductHandler struct {
	productService *services.ProductService
}

// NewProductHandler creates a new product handler
func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// ListPublic godoc
// @Summary List products
// @Description Active products. category includes subcategories.
// @Tags products
// @Produce json
// @Param category query string false "Category slug"
// @Param min_price query int false "Minimum price in tetri"
// @Param max_price query int false "Maximum price in tetri"
// @Param search query string false "Search text"
// @Param featured query bool false "Featured only"
// @Param in_stock query bool false "In stock only"
// @Param on_sale query bool false "On sale only"
// @Param sort query string false "price_asc, price_desc, newest"
// @Param page query int false "Page"
// @Param per_page query int false "Items per page"
// @Success 200 {object} models.PaginationResult[models.Product]
// @Router /products [get]
func (h *ProductHandler) ListPublic(c echo.Context) error {
	page, perPage := pagination(c)
	result, err := h.productService.ListPublic(services.ProductQuery{
		CategorySlug: c.QueryParam("category"),
		MinPrice:     queryInt64(c, "min_price"),
		MaxPrice:     queryInt64(c, "max_price"),
		Search:       strings.TrimSpace(c.QueryParam("search")),
		Featured:     queryBool(c, "featured"),
		InStock:      queryBool(c, "in_stock"),
		OnSale:       queryBool(c, "on_sale"),
		Sort:         c.QueryParam("sort"),
		Page:         page,
		PerPage:      perPage,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetBySlug godoc
// @Summary Get product by slug
// @Tags products
// @Produce json
// @Param slug path string true "Product slug"
// @Success 200 {object} models.Product
// @Failure 404 {object} map[string]string
// @Router /products/{slug} [get]
func (h *ProductHandler) GetBySlug(c echo.Context) error {
	product, err := h.productService.GetBySlug(c.Param("slug"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// List godoc
// @Summary List products (admin)
// @Tags products
// @Produce json
// @Param search query string false "Search text"
// @Param page query int false "Page"
// @Param per_page query int false "Items per page"
// @Success 200 {object} models.PaginationResult[models.Product]
// @Router /admin/products [get]
// @Security BearerAuth
func (h *ProductHandler) List(c echo.Context) error {
	page, perPage := pagination(c)
	filters := repo.ProductFilters{
		Search:   strings.TrimSpace(c.QueryParam("search")),
		Featured: queryBool(c, "featured"),
		InStock:  queryBool(c, "in_stock"),
		Sort:     c.QueryParam("sort"),
	}
	result, err := h.productService.ListAdmin(filters, page, perPage)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// LowStock godoc
// @Summary Products at or under their low stock threshold
// @Tags products
// @Produce json
// @Success 200 {array} models.Product
// @Router /admin/products/low-stock [get]
// @Security BearerAuth
func (h *ProductHandler) LowStock(c echo.Context) error {
	products, err := h.productService.ListLowStock()
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, products)
}

// GetByID godoc
// @Summary Get product (admin)
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.Product
// @Failure 404 {object} map[string]string
// @Router /admin/products/{id} [get]
// @Security BearerAuth
func (h *ProductHandler) GetByID(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid product ID")
	}
	product, err := h.productService.GetByID(id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// Create godoc
// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Param product body models.ProductRequest true "Product data"
// @Success 201 {object} models.Product
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /admin/products [post]
// @Security BearerAuth
func (h *ProductHandler) Create(c echo.Context) error {
	var req models.ProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	product, err := h.productService.Create(&req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, product)
}

// Update godoc
// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param product body models.ProductRequest true "Product data"
// @Success 200 {object} models.Product
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/products/{id} [put]
// @Security BearerAuth
func (h *ProductHandler) Update(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid product ID")
	}
	var req models.ProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	product, err := h.productService.Update(id, &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// Delete godoc
// @Summary Delete product
// @Tags products
// @Param id path string true "Product ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /admin/products/{id} [delete]
// @Security BearerAuth
func (h *ProductHandler) Delete(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid product ID")
	}
	if err := h.productService.Delete(id); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadImage godoc
// @Summary Upload product image
// @Description Stores the image in object storage and appends its URL
// @Tags products
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Product ID"
// @Param image formData file true "Image file (jpg, png, webp, gif)"
// @Success 200 {object} models.Product
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /admin/products/{id}/images [post]
// @Security BearerAuth
func (h *ProductHandler) UploadImage(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid product ID")
	}

	file, err := c.FormFile("image")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "image file is required")
	}
	if file.Size > maxImageSize {
		return errorJSON(c, http.StatusBadRequest, "image is larger than 10MB")
	}
	if _, ok := services.ImageContentType(file.Filename); !ok {
		return errorJSON(c, http.StatusBadRequest, "unsupported image type")
	}

	src, err := file.Open()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "failed to read image")
	}
	defer src.Close()

	product, err := h.productService.UploadImage(c.Request().Context(), id, file.Filename, src)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// RegisterPublicRoutes registers storefront product routes
func (h *ProductHandler) RegisterPublicRoutes(g *echo.Group) {
	g.GET("/products", h.ListPublic)
	g.GET("/products/:slug", h.GetBySlug)
}

// RegisterRoutes registers admin product routes
func (h *ProductHandler) RegisterRoutes(g *echo.Group) {
	products := g.Group("/products")
	products.GET("", h.List)
	products.GET("/low-stock", h.LowStock)
	products.GET("/:id", h.GetByID)
	products.POST("", h.Create)
	products.PUT("/:id", h.Update)
	products.DELETE("/:id", h.Delete)
	products.POST("/:id/images", h.UploadImage)
}
