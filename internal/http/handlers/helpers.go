package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"kidshop/internal/orderflow"
	"kidshop/internal/payment"
	"kidshop/internal/repo"
	"kidshop/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// serviceError maps domain errors to status codes. Unknown errors are logged and
// reported as 500 without their text.
func serviceError(c echo.Context, err error) error {
	var stockErr *repo.InsufficientStockError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, orderflow.ErrOrderNotFound):
		return errorJSON(c, http.StatusNotFound, "not found")
	case errors.As(err, &stockErr):
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":      "insufficient stock",
			"product_id": stockErr.ProductID,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		})
	case errors.Is(err, services.ErrSlugTaken),
		errors.Is(err, services.ErrCategoryInUse),
		errors.Is(err, services.ErrCartClosed),
		errors.Is(err, services.ErrCartExpired),
		errors.Is(err, services.ErrInvalidOrderState),
		errors.Is(err, orderflow.ErrOrderCancelled),
		errors.Is(err, orderflow.ErrAmountMismatch):
		return errorJSON(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrCategoryCycle),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrProductUnavailable),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, orderflow.ErrUnknownChannel),
		errors.Is(err, orderflow.ErrAwaitingPayment),
		errors.Is(err, orderflow.ErrNoPayment):
		return errorJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrPaymentDisabled),
		errors.Is(err, services.ErrStorageDisabled),
		errors.Is(err, services.ErrSuggestionsDisabled),
		errors.Is(err, payment.ErrNotConfigured),
		errors.Is(err, services.ErrEmailNotConfigured):
		return errorJSON(c, http.StatusServiceUnavailable, err.Error())
	}

	log.Ctx(c.Request().Context()).Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	return errorJSON(c, http.StatusInternalServerError, "internal server error")
}

// bindAndValidate binds the request body and runs the registered validator.
// The returned error is an *echo.HTTPError ready to be returned from the handler.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// ErrorHandler renders every echo error as {"error": message}
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	} else {
		log.Ctx(c.Request().Context()).Error().Err(err).Str("path", c.Path()).Msg("Unhandled error")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = errorJSON(c, status, msg)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to write error response")
	}
}

func paramUUID(c echo.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	return id, err == nil
}

func pagination(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func queryBool(c echo.Context, name string) *bool {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

func queryInt64(c echo.Context, name string) *int64 {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
