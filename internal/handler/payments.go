package handler

import (
	"net/http"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/dukerupert/skald/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type createIntentRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
}

type verifyPaymentRequest struct {
	OrderID          string `json:"order_id" validate:"required,uuid"`
	GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

type refundRequest struct {
	Note string `json:"note"`
}

type createIntentResponse struct {
	PaymentID      uuid.UUID `json:"payment_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
}

// CreateIntent handles POST /payments/create-intent.
func (h *Handler) CreateIntent(c echo.Context) error {
	var req createIntentRequest
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, domain.Invalid("payment.create_intent", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return h.writeError(c, domain.Invalid("payment.create_intent", "invalid order ID"))
	}

	pmt, intent, err := h.payments.CreateIntent(c.Request().Context(), orderID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, createIntentResponse{
		PaymentID:      pmt.ID,
		GatewayOrderID: intent.GatewayOrderID,
		AmountCents:    intent.AmountCents,
		Currency:       intent.Currency,
	})
}

// VerifyPayment handles POST /payments/verify.
func (h *Handler) VerifyPayment(c echo.Context) error {
	var req verifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, domain.Invalid("payment.verify", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return h.writeError(c, domain.Invalid("payment.verify", "invalid order ID"))
	}

	pmt, err := h.payments.VerifyPayment(c.Request().Context(), service.VerifyPaymentParams{
		OrderID:          orderID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, pmt)
}

// RefundPayment handles POST /payments/admin/:id/refund, where :id is the
// order ID.
func (h *Handler) RefundPayment(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.writeError(c, domain.Invalid("payment.refund", "invalid order ID"))
	}

	var req refundRequest
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, domain.Invalid("payment.refund", "invalid request body"))
	}

	pmt, err := h.payments.RefundPayment(c.Request().Context(), orderID, req.Note)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, pmt)
}
