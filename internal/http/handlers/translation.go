package handlers

import (
	"net/http"

	"kidshop/internal/http/middleware"
	"kidshop/internal/services"

	"github.com/labstack/echo/v4"
)

// TranslationHandler serves UI strings
type TranslationHandler struct {
	translationService *services.TranslationService
}

// NewTranslationHandler creates a new translation handler
func NewTranslationHandler(translationService *services.TranslationService) *TranslationHandler {
	return &TranslationHandler{translationService: translationService}
}

// Lookup godoc
// @Summary UI strings for a language
// @Description Returns key to text for the resolved language, falling back through ka, en, ru
// @Tags translations
// @Produce json
// @Param namespace query string false "Namespace" default(common)
// @Param lang query string false "Language (ka, en, ru)"
// @Success 200 {object} map[string]string
// @Router /translations [get]
func (h *TranslationHandler) Lookup(c echo.Context) error {
	lang := middleware.Lang(c)
	strings, err := h.translationService.Lookup(c.QueryParam("namespace"), lang)
	if err != nil {
		return serviceError(c, err)
	}
	c.Response().Header().Set("Content-Language", string(lang))
	return c.JSON(http.StatusOK, strings)
}

// List godoc
// @Summary List translations (admin)
// @Tags translations
// @Produce json
// @Param namespace query string false "Namespace"
// @Param search query string false "Key or text"
// @Param missing query bool false "Only entries with a missing language"
// @Success 200 {array} models.Translation
// @Router /admin/translations [get]
// @Security BearerAuth
func (h *TranslationHandler) List(c echo.Context) error {
	missing := queryBool(c, "missing")
	list, err := h.translationService.List(c.QueryParam("namespace"), c.QueryParam("search"), missing != nil && *missing)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Create godoc
// @Summary Create translation
// @Tags translations
// @Accept json
// @Produce json
// @Param translation body services.TranslationRequest true "Translation"
// @Success 201 {object} models.Translation
// @Failure 409 {object} map[string]string
// @Router /admin/translations [post]
// @Security BearerAuth
func (h *TranslationHandler) Create(c echo.Context) error {
	var req services.TranslationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	t, err := h.translationService.Create(&req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// Update godoc
// @Summary Update translation
// @Tags translations
// @Accept json
// @Produce json
// @Param id path string true "Translation ID"
// @Param translation body services.TranslationRequest true "Translation"
// @Success 200 {object} models.Translation
// @Failure 404 {object} map[string]string
// @Router /admin/translations/{id} [put]
// @Security BearerAuth
func (h *TranslationHandler) Update(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid translation ID")
	}
	var req services.TranslationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	t, err := h.translationService.Update(id, &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Delete godoc
// @Summary Delete translation
// @Tags translations
// @Param id path string true "Translation ID"
// @Success 204
// @Router /admin/translations/{id} [delete]
// @Security BearerAuth
func (h *TranslationHandler) Delete(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid translation ID")
	}
	if err := h.translationService.Delete(id); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Suggest godoc
// @Summary Suggest missing languages
// @Description Fills empty languages with machine suggestions. The result is not saved.
// @Tags translations
// @Produce json
// @Param id path string true "Translation ID"
// @Success 200 {object} models.Translation
// @Failure 503 {object} map[string]string
// @Router /admin/translations/{id}/suggest [post]
// @Security BearerAuth
func (h *TranslationHandler) Suggest(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid translation ID")
	}
	t, err := h.translationService.Suggest(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// RegisterRoutes registers admin translation routes
func (h *TranslationHandler) RegisterRoutes(g *echo.Group) {
	translations := g.Group("/translations")
	translations.GET("", h.List)
	translations.POST("", h.Create)
	translations.PUT("/:id", h.Update)
	translations.DELETE("/:id", h.Delete)
	translations.POST("/:id/suggest", h.Suggest)
}
