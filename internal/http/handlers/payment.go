package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"kidshop/internal/orderflow"
	"kidshop/internal/payment"
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const maxCallbackBody = 1 << 20

// PaymentConfirmer applies payment results to orders
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, res *payment.Result, source string) (*orderflow.Report, error)
	AcceptPayment(ctx context.Context, res *payment.Result, source string) (*orderflow.Report, error)
	Reconcile(ctx context.Context, orderID uuid.UUID) (*orderflow.Report, error)
}

// CallbackParser decodes gateway callbacks
type CallbackParser interface {
	ParseCallback(body []byte) (*payment.Result, error)
}

// OrderFinder finds an order by its public number
type OrderFinder interface {
	GetByNumber(ctx context.Context, number string) (*models.Order, error)
}

// PaymentHandler receives gateway callbacks and customer return redirects
type PaymentHandler struct {
	confirmer     PaymentConfirmer
	parser        CallbackParser
	orders        OrderFinder
	webhookSecret string
	frontendURL   string
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(confirmer PaymentConfirmer, parser CallbackParser, orders OrderFinder, webhookSecret, frontendURL string) *PaymentHandler {
	return &PaymentHandler{
		confirmer:     confirmer,
		parser:        parser,
		orders:        orders,
		webhookSecret: webhookSecret,
		frontendURL:   frontendURL,
	}
}

// Callback godoc
// @Summary Payment gateway callback
// @Description Server to server notification. The raw body must be signed with HMAC-SHA256 in X-Signature.
// @Description The order is updated and notified in the background after the reply.
// @Tags payments
// @Accept json
// @Produce json
// @Param X-Signature header string true "Hex HMAC-SHA256 of the body"
// @Success 200 {object} orderflow.Report
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /payments/callback [post]
func (h *PaymentHandler) Callback(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBody))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "failed to read body")
	}

	if !payment.VerifyCallback(body, c.Request().Header.Get(payment.SignatureHeader), h.webhookSecret) {
		log.Warn().Str("remote_ip", c.RealIP()).Msg("Payment callback with invalid signature")
		return errorJSON(c, http.StatusUnauthorized, "invalid signature")
	}

	res, err := h.parser.ParseCallback(body)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid callback payload")
	}

	report, err := h.confirmer.AcceptPayment(c.Request().Context(), res, "callback")
	if err != nil {
		if errors.Is(err, orderflow.ErrAmountMismatch) {
			// Acknowledge so the gateway stops retrying; the order stays unconfirmed
			return c.JSON(http.StatusOK, map[string]string{"status": "rejected", "reason": err.Error()})
		}
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// Return godoc
// @Summary Customer return from the payment page
// @Description Queries the gateway for the real status, then redirects to the storefront
// @Tags payments
// @Param order query string true "Order number"
// @Success 302
// @Router /payments/return [get]
func (h *PaymentHandler) Return(c echo.Context) error {
	number := c.QueryParam("order")
	status := "unknown"

	if order, err := h.orders.GetByNumber(c.Request().Context(), number); err == nil {
		status = order.PaymentStatus
		report, err := h.confirmer.Reconcile(c.Request().Context(), order.ID)
		if err != nil {
			log.Warn().Err(err).Str("order", number).Msg("Reconcile on return failed")
		} else if report != nil {
			status = report.PaymentStatus
		}
	} else {
		log.Warn().Err(err).Str("order", number).Msg("Payment return for unknown order")
	}

	return c.Redirect(http.StatusFound, h.redirectURL(number, status))
}

func (h *PaymentHandler) redirectURL(number, status string) string {
	q := url.Values{}
	q.Set("order", number)
	q.Set("status", status)
	return h.frontendURL + "/checkout/result?" + q.Encode()
}

// RegisterRoutes registers payment routes
func (h *PaymentHandler) RegisterRoutes(g *echo.Group) {
	payments := g.Group("/payments")
	payments.POST("/callback", h.Callback)
	payments.GET("/return", h.Return)
}
