package handlers

import (
	"net/http"

	"kidshop/internal/services"
	"kidshop/pkg/models"

	"github.com/labstack/echo/v4"
)

type CategoryHandler struct {
	categoryService *services.CategoryService
}

func NewCategoryHandler(categoryService *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
	}
}

// ListPublic godoc
// @Summary List categories
// @Description Active categories ordered by sort_order
// @Tags categories
// @Produce json
// @Param lang query string false "Language (ka, en, ru)"
// @Success 200 {array} models.Category
// @Failure 500 {object} map[string]string
// @Router /categories [get]
func (h *CategoryHandler) ListPublic(c echo.Context) error {
	categories, err := h.categoryService.ListCategories(false)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, categories)
}

// GetBySlug godoc
// @Summary Get category by slug
// @Tags categories
// @Produce json
// @Param slug path string true "Category slug"
// @Success 200 {object} models.Category
// @Failure 404 {object} map[string]string
// @Router /categories/{slug} [get]
func (h *CategoryHandler) GetBySlug(c echo.Context) error {
	category, err := h.categoryService.GetCategoryBySlug(c.Param("slug"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, category)
}

// List godoc
// @Summary List categories (admin)
// @Description All categories including inactive ones
// @Tags categories
// @Produce json
// @Success 200 {array} models.Category
// @Router /admin/categories [get]
// @Security BearerAuth
func (h *CategoryHandler) List(c echo.Context) error {
	categories, err := h.categoryService.ListCategories(true)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, categories)
}

// GetByID godoc
// @Summary Get category by ID
// @Tags categories
// @Produce json
// @Param id path string true "Category ID"
// @Success 200 {object} models.Category
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/categories/{id} [get]
// @Security BearerAuth
func (h *CategoryHandler) GetByID(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid category ID")
	}

	category, err := h.categoryService.GetCategoryByID(id)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, category)
}

// GetByParent godoc
// @Summary List subcategories
// @Tags categories
// @Produce json
// @Param parent_id path string true "Parent category ID"
// @Success 200 {array} models.Category
// @Router /admin/categories/parent/{parent_id} [get]
// @Security BearerAuth
func (h *CategoryHandler) GetByParent(c echo.Context) error {
	parentID, ok := paramUUID(c, "parent_id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid parent ID")
	}
	categories, err := h.categoryService.GetCategoriesByParent(parentID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, categories)
}

// Create godoc
// @Summary Create category
// @Tags categories
// @Accept json
// @Produce json
// @Param category body models.CreateCategoryRequest true "Category data"
// @Success 201 {object} models.Category
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /admin/categories [post]
// @Security BearerAuth
func (h *CategoryHandler) Create(c echo.Context) error {
	var req models.CreateCategoryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	category, err := h.categoryService.CreateCategory(&req)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusCreated, category)
}

// Update godoc
// @Summary Update category
// @Tags categories
// @Accept json
// @Produce json
// @Param id path string true "Category ID"
// @Param category body models.UpdateCategoryRequest true "Category data"
// @Success 200 {object} models.Category
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/categories/{id} [put]
// @Security BearerAuth
func (h *CategoryHandler) Update(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid category ID")
	}

	var req models.UpdateCategoryRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	category, err := h.categoryService.UpdateCategory(id, &req)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, category)
}

// Delete godoc
// @Summary Delete category
// @Description Fails while products or subcategories still reference it
// @Tags categories
// @Param id path string true "Category ID"
// @Success 204
// @Failure 409 {object} map[string]string
// @Router /admin/categories/{id} [delete]
// @Security BearerAuth
func (h *CategoryHandler) Delete(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid category ID")
	}

	if err := h.categoryService.DeleteCategory(id); err != nil {
		return serviceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// RegisterPublicRoutes registers storefront category routes
func (h *CategoryHandler) RegisterPublicRoutes(g *echo.Group) {
	g.GET("/categories", h.ListPublic)
	g.GET("/categories/:slug", h.GetBySlug)
}

// RegisterRoutes registers admin category routes
func (h *CategoryHandler) RegisterRoutes(g *echo.Group) {
	categoryGroup := g.Group("/categories")

	categoryGroup.GET("", h.List)
	categoryGroup.GET("/:id", h.GetByID)
	categoryGroup.GET("/parent/:parent_id", h.GetByParent)
	categoryGroup.POST("", h.Create)
	categoryGroup.PUT("/:id", h.Update)
	categoryGroup.DELETE("/:id", h.Delete)
}
