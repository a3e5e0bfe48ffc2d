// Package handler exposes the JSON HTTP API.
package handler

import (
	"net/http"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/dukerupert/skald/internal/invoice"
	"github.com/dukerupert/skald/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Handler holds the services behind the HTTP API.
type Handler struct {
	orders   service.OrderService
	payments service.PaymentService
	invoices invoice.Renderer
	logger   zerolog.Logger
}

// New creates the API handler.
func New(orders service.OrderService, payments service.PaymentService, invoices invoice.Renderer, logger zerolog.Logger) *Handler {
	return &Handler{
		orders:   orders,
		payments: payments,
		invoices: invoices,
		logger:   logger.With().Str("component", "http").Logger(),
	}
}

// Validator adapts go-playground/validator to echo's Validator hook.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the request body validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFromCode maps domain error codes to HTTP statuses.
func statusFromCode(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EUNAVAILABLE:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a domain error as JSON. Internal details are logged and
// masked; everything else surfaces its user-facing message.
func (h *Handler) writeError(c echo.Context, err error) error {
	code := domain.ErrorCode(err)
	status := statusFromCode(code)

	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).
			Str("op", domain.ErrorOp(err)).
			Str("path", c.Path()).
			Msg("request failed")
	}

	return c.JSON(status, errorResponse{
		Error: domain.ErrorMessage(err),
		Code:  code,
	})
}
