package handler

import (
	"fmt"
	"net/http"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/dukerupert/skald/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type orderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int32  `json:"quantity" validate:"required,gt=0"`
}

type shippingAddressRequest struct {
	FullName   string `json:"full_name" validate:"required"`
	Phone      string `json:"phone"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
	IsDefault  bool   `json:"is_default"`
}

type createOrderRequest struct {
	Items           []orderItemRequest     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress shippingAddressRequest `json:"shipping_address" validate:"required"`
	PaymentMethod   string                 `json:"payment_method" validate:"required,oneof=cash_on_delivery gateway"`
	TotalCents      *int64                 `json:"total_cents"`
}

type updateStatusRequest struct {
	Status          string `json:"status" validate:"required"`
	Note            string `json:"note"`
	TrackingID      string `json:"tracking_id"`
	TrackingCourier string `json:"tracking_courier"`
	Version         *int32 `json:"version"`
}

type reconcileRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
}

// CreateOrder handles POST /orders.
func (h *Handler) CreateOrder(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, domain.Invalid("order.create", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	items := make([]domain.OrderItem, len(req.Items))
	for i, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return h.writeError(c, domain.Invalid("order.create", fmt.Sprintf("invalid product ID: %s", item.ProductID)))
		}
		items[i] = domain.OrderItem{ProductID: productID, Quantity: item.Quantity}
	}

	order, err := h.orders.CreateOrder(c.Request().Context(), service.CreateOrderParams{
		Items: items,
		ShippingAddress: domain.ShippingAddress{
			FullName:   req.ShippingAddress.FullName,
			Phone:      req.ShippingAddress.Phone,
			Street:     req.ShippingAddress.Street,
			City:       req.ShippingAddress.City,
			State:      req.ShippingAddress.State,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
			IsDefault:  req.ShippingAddress.IsDefault,
		},
		PaymentMethod:    domain.PaymentMethod(req.PaymentMethod),
		ClientTotalCents: req.TotalCents,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, order)
}

// GetOrder handles GET /orders/:id.
func (h *Handler) GetOrder(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.writeError(c, domain.Invalid("order.get", "invalid order ID"))
	}

	order, err := h.orders.GetOrder(c.Request().Context(), orderID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// ListOrders handles GET /orders (own orders) and GET /orders/admin/all.
func (h *Handler) ListOrders(c echo.Context) error {
	var filter domain.ListOrdersFilter
	if status := c.QueryParam("status"); status != "" {
		s := domain.OrderStatus(status)
		if !s.Valid() {
			return h.writeError(c, domain.ErrUnknownStatus)
		}
		filter.Status = &s
	}
	if userParam := c.QueryParam("user_id"); userParam != "" {
		userID, err := uuid.Parse(userParam)
		if err != nil {
			return h.writeError(c, domain.Invalid("order.list", "invalid user ID"))
		}
		filter.UserID = &userID
	}

	orders, err := h.orders.ListOrders(c.Request().Context(), filter)
	if err != nil {
		return h.writeError(c, err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return c.JSON(http.StatusOK, orders)
}

// UpdateOrderStatus handles PUT /orders/admin/:id.
func (h *Handler) UpdateOrderStatus(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.writeError(c, domain.Invalid("order.transition", "invalid order ID"))
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, domain.Invalid("order.transition", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	order, err := h.orders.TransitionStatus(c.Request().Context(), service.TransitionParams{
		OrderID:         orderID,
		Status:          domain.OrderStatus(req.Status),
		Note:            req.Note,
		TrackingID:      req.TrackingID,
		TrackingCourier: req.TrackingCourier,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

type reconcileResponse struct {
	Tracking        any    `json:"tracking"`
	Delivered       bool   `json:"delivered"`
	OrderUpdated    bool   `json:"order_updated"`
	AlreadyRecorded bool   `json:"already_recorded,omitempty"`
	UpdateWarning   string `json:"update_warning,omitempty"`
}

// ReconcileTracking handles POST /tracking.
func (h *Handler) ReconcileTracking(c echo.Context) error {
	var req reconcileRequest
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, domain.Invalid("order.reconcile", "invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return h.writeError(c, domain.Invalid("order.reconcile", "invalid order ID"))
	}

	result, err := h.orders.ReconcileTracking(c.Request().Context(), orderID)
	if err != nil {
		return h.writeError(c, err)
	}

	resp := reconcileResponse{
		Tracking:        result.Info,
		Delivered:       result.Delivered,
		OrderUpdated:    result.Updated,
		AlreadyRecorded: result.AlreadyRecorded,
	}
	// Tracking data is still useful when the order write failed; the
	// warning tells the client the status may lag.
	if result.UpdateErr != nil {
		resp.UpdateWarning = domain.ErrorMessage(result.UpdateErr)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetInvoice handles GET /orders/:id/invoice.
func (h *Handler) GetInvoice(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.writeError(c, domain.Invalid("invoice.render", "invalid order ID"))
	}

	pdf, err := h.invoices.Render(c.Request().Context(), orderID)
	if err != nil {
		return h.writeError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=invoice-%s.pdf", orderID))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}
