package handlers

import (
	"errors"
	"net/http"
	"time"

	"kidshop/internal/repo"
	"kidshop/internal/services"
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// NotificationHandler serves notification settings, the delivery log and the admin bell
type NotificationHandler struct {
	settings      *services.NotificationSettingsService
	notifications *repo.NotificationRepository
	alerts        *services.AlertService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(settings *services.NotificationSettingsService, notifications *repo.NotificationRepository, alerts *services.AlertService) *NotificationHandler {
	return &NotificationHandler{
		settings:      settings,
		notifications: notifications,
		alerts:        alerts,
	}
}

// GetSettings godoc
// @Summary Notification settings
// @Tags notifications
// @Produce json
// @Success 200 {object} models.NotificationSettings
// @Router /admin/notifications/settings [get]
// @Security BearerAuth
func (h *NotificationHandler) GetSettings(c echo.Context) error {
	settings, err := h.settings.Get(c.Request().Context())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

// UpdateSettings godoc
// @Summary Update notification settings
// @Description Only the fields present are changed
// @Tags notifications
// @Accept json
// @Produce json
// @Param settings body models.UpdateNotificationSettingsRequest true "Settings"
// @Success 200 {object} models.NotificationSettings
// @Failure 400 {object} map[string]string
// @Router /admin/notifications/settings [put]
// @Security BearerAuth
func (h *NotificationHandler) UpdateSettings(c echo.Context) error {
	var req models.UpdateNotificationSettingsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	settings, err := h.settings.Update(c.Request().Context(), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

// ListLogs godoc
// @Summary Notification delivery log
// @Tags notifications
// @Produce json
// @Param order_id query string false "Order ID"
// @Param channel query string false "Channel"
// @Param status query string false "sent, failed or skipped"
// @Param page query int false "Page"
// @Param per_page query int false "Items per page"
// @Success 200 {object} models.PaginationResult[models.NotificationLog]
// @Router /admin/notifications/logs [get]
// @Security BearerAuth
func (h *NotificationHandler) ListLogs(c echo.Context) error {
	page, perPage := pagination(c)
	filters := repo.NotificationLogFilters{
		Channel: c.QueryParam("channel"),
		Status:  c.QueryParam("status"),
	}
	if raw := c.QueryParam("order_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid order ID")
		}
		filters.OrderID = &id
	}
	logs, err := h.notifications.ListLogs(c.Request().Context(), filters, page, perPage)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, logs)
}

// Stats godoc
// @Summary Delivery counts per channel
// @Tags notifications
// @Produce json
// @Param days query int false "Look back this many days" default(30)
// @Success 200 {array} repo.ChannelStats
// @Router /admin/notifications/stats [get]
// @Security BearerAuth
func (h *NotificationHandler) Stats(c echo.Context) error {
	days := 30
	if v := queryInt64(c, "days"); v != nil && *v > 0 && *v <= 365 {
		days = int(*v)
	}
	stats, err := h.notifications.Stats(c.Request().Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// ListInApp godoc
// @Summary Admin panel notifications
// @Tags notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Param page query int false "Page"
// @Param per_page query int false "Items per page"
// @Success 200 {object} models.PaginationResult[models.InAppNotification]
// @Router /admin/notifications [get]
// @Security BearerAuth
func (h *NotificationHandler) ListInApp(c echo.Context) error {
	page, perPage := pagination(c)
	unread := queryBool(c, "unread")
	list, err := h.notifications.ListInApp(c.Request().Context(), unread != nil && *unread, page, perPage)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// UnreadCount godoc
// @Summary Unread admin notifications
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]int64
// @Router /admin/notifications/unread-count [get]
// @Security BearerAuth
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	count, err := h.notifications.UnreadCount(c.Request().Context())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"count": count})
}

// MarkRead godoc
// @Summary Mark a notification read
// @Tags notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /admin/notifications/{id}/read [put]
// @Security BearerAuth
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid notification ID")
	}
	if err := h.notifications.MarkRead(c.Request().Context(), id); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead godoc
// @Summary Mark all notifications read
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]int64
// @Router /admin/notifications/read-all [put]
// @Security BearerAuth
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	n, err := h.notifications.MarkAllRead(c.Request().Context())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"updated": n})
}

// SendLowStockAlert godoc
// @Summary Email the low stock report to admin addresses
// @Tags notifications
// @Produce json
// @Param force query bool false "Send even if already sent today"
// @Success 200 {object} map[string]int
// @Failure 409 {object} map[string]string
// @Router /admin/notifications/low-stock [post]
// @Security BearerAuth
func (h *NotificationHandler) SendLowStockAlert(c echo.Context) error {
	force := queryBool(c, "force")
	n, err := h.alerts.SendLowStockAlert(c.Request().Context(), force != nil && *force)
	if err != nil {
		if errors.Is(err, services.ErrAlreadySentToday) {
			return errorJSON(c, http.StatusConflict, err.Error())
		}
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"products": n})
}

// RegisterRoutes registers admin notification routes
func (h *NotificationHandler) RegisterRoutes(g *echo.Group, adminOnly echo.MiddlewareFunc) {
	notifications := g.Group("/notifications")
	notifications.GET("", h.ListInApp)
	notifications.GET("/unread-count", h.UnreadCount)
	notifications.PUT("/read-all", h.MarkAllRead)
	notifications.PUT("/:id/read", h.MarkRead)
	notifications.GET("/logs", h.ListLogs)
	notifications.GET("/stats", h.Stats)
	notifications.GET("/settings", h.GetSettings)
	notifications.PUT("/settings", h.UpdateSettings, adminOnly)
	notifications.POST("/low-stock", h.SendLowStockAlert, adminOnly)
}
