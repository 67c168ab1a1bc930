package handlers

import (
	"net/http"

	"kidshop/internal/services"
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ContentHandler serves the homepage and footer blocks
type ContentHandler struct {
	contentService *services.ContentService
}

// NewContentHandler creates a new content handler
func NewContentHandler(contentService *services.ContentService) *ContentHandler {
	return &ContentHandler{contentService: contentService}
}

// Homepage godoc
// @Summary Homepage sections
// @Tags content
// @Produce json
// @Success 200 {array} models.HomepageSection
// @Router /homepage [get]
func (h *ContentHandler) Homepage(c echo.Context) error {
	sections, err := h.contentService.Sections(false)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, sections)
}

// Footer godoc
// @Summary Footer blocks
// @Tags content
// @Produce json
// @Success 200 {array} models.FooterContent
// @Router /footer [get]
func (h *ContentHandler) Footer(c echo.Context) error {
	blocks, err := h.contentService.Footer(false)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, blocks)
}

// ListSections godoc
// @Summary Homepage sections (admin)
// @Tags content
// @Produce json
// @Success 200 {array} models.HomepageSection
// @Router /admin/homepage [get]
// @Security BearerAuth
func (h *ContentHandler) ListSections(c echo.Context) error {
	sections, err := h.contentService.Sections(true)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, sections)
}

// SaveSection godoc
// @Summary Create or replace a homepage section
// @Tags content
// @Accept json
// @Produce json
// @Param id path string false "Section ID (omit to create)"
// @Param section body models.HomepageSection true "Section"
// @Success 200 {object} models.HomepageSection
// @Router /admin/homepage/{id} [put]
// @Security BearerAuth
func (h *ContentHandler) SaveSection(c echo.Context) error {
	id, status, err := optionalID(c)
	if err != nil {
		return err
	}
	var in models.HomepageSection
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	section, err := h.contentService.SaveSection(id, &in)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(status, section)
}

// DeleteSection godoc
// @Summary Delete a homepage section
// @Tags content
// @Param id path string true "Section ID"
// @Success 204
// @Router /admin/homepage/{id} [delete]
// @Security BearerAuth
func (h *ContentHandler) DeleteSection(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid section ID")
	}
	if err := h.contentService.DeleteSection(id); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ReorderSections godoc
// @Summary Reorder homepage sections
// @Tags content
// @Accept json
// @Param request body models.ReorderRequest true "Section IDs in display order"
// @Success 204
// @Router /admin/homepage/reorder [post]
// @Security BearerAuth
func (h *ContentHandler) ReorderSections(c echo.Context) error {
	var req models.ReorderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.contentService.ReorderSections(req.IDs); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListFooter godoc
// @Summary Footer blocks (admin)
// @Tags content
// @Produce json
// @Success 200 {array} models.FooterContent
// @Router /admin/footer [get]
// @Security BearerAuth
func (h *ContentHandler) ListFooter(c echo.Context) error {
	blocks, err := h.contentService.Footer(true)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, blocks)
}

// SaveFooter godoc
// @Summary Create or replace a footer block
// @Tags content
// @Accept json
// @Produce json
// @Param id path string false "Block ID (omit to create)"
// @Param block body models.FooterContent true "Footer block"
// @Success 200 {object} models.FooterContent
// @Router /admin/footer/{id} [put]
// @Security BearerAuth
func (h *ContentHandler) SaveFooter(c echo.Context) error {
	id, status, err := optionalID(c)
	if err != nil {
		return err
	}
	var in models.FooterContent
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	block, err := h.contentService.SaveFooter(id, &in)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(status, block)
}

// DeleteFooter godoc
// @Summary Delete a footer block
// @Tags content
// @Param id path string true "Block ID"
// @Success 204
// @Router /admin/footer/{id} [delete]
// @Security BearerAuth
func (h *ContentHandler) DeleteFooter(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid block ID")
	}
	if err := h.contentService.DeleteFooter(id); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ReorderFooter godoc
// @Summary Reorder footer blocks
// @Tags content
// @Accept json
// @Param request body models.ReorderRequest true "Block IDs in display order"
// @Success 204
// @Router /admin/footer/reorder [post]
// @Security BearerAuth
func (h *ContentHandler) ReorderFooter(c echo.Context) error {
	var req models.ReorderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.contentService.ReorderFooter(req.IDs); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// optionalID reads :id when the route has one. A missing id means create.
func optionalID(c echo.Context) (uuid.UUID, int, error) {
	raw := c.Param("id")
	if raw == "" {
		return uuid.Nil, http.StatusCreated, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid ID")
	}
	return id, http.StatusOK, nil
}

// RegisterPublicRoutes registers storefront content routes
func (h *ContentHandler) RegisterPublicRoutes(g *echo.Group) {
	g.GET("/homepage", h.Homepage)
	g.GET("/footer", h.Footer)
}

// RegisterRoutes registers admin content routes
func (h *ContentHandler) RegisterRoutes(g *echo.Group) {
	homepage := g.Group("/homepage")
	homepage.GET("", h.ListSections)
	homepage.POST("", h.SaveSection)
	homepage.POST("/reorder", h.ReorderSections)
	homepage.PUT("/:id", h.SaveSection)
	homepage.DELETE("/:id", h.DeleteSection)

	footer := g.Group("/footer")
	footer.GET("", h.ListFooter)
	footer.POST("", h.SaveFooter)
	footer.POST("/reorder", h.ReorderFooter)
	footer.PUT("/:id", h.SaveFooter)
	footer.DELETE("/:id", h.DeleteFooter)
}
