package handlers

import (
	"net/http"

	"kidshop/internal/realtime"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades admin panel connections onto the live hub
type WebSocketHandler struct {
	hub *realtime.Hub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *realtime.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket godoc
// @Summary Live admin notifications
// @Description WebSocket. Authenticate with ?token=<access token>.
// @Tags notifications
// @Param token query string true "Access token"
// @Success 101
// @Router /admin/ws [get]
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	userID, _ := c.Get("user_id").(uuid.UUID)
	if err := h.hub.Serve(c.Response(), c.Request(), userID.String()); err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return echo.NewHTTPError(http.StatusBadRequest, "websocket upgrade failed")
	}
	return nil
}

// ConnectedClients godoc
// @Summary Number of connected admin panels
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]int
// @Router /admin/ws/clients [get]
// @Security BearerAuth
func (h *WebSocketHandler) ConnectedClients(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{"clients": h.hub.ConnectedClients()})
}
