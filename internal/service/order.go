// Package service implements the business logic for the order lifecycle:
// creation, status transitions, tracking reconciliation, and payments.
package service

import (
	"context"
	"fmt"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/dukerupert/skald/internal/events"
	"github.com/dukerupert/skald/internal/tracking"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CreateOrderParams describes a checkout request.
type CreateOrderParams struct {
	Items           []domain.OrderItem
	ShippingAddress domain.ShippingAddress
	PaymentMethod   domain.PaymentMethod

	// ClientTotalCents is the total the client displayed at checkout.
	// When set, it must match the server-computed total exactly; a
	// mismatch means the client saw stale prices.
	ClientTotalCents *int64
}

// TransitionParams describes an admin status change.
type TransitionParams struct {
	OrderID         uuid.UUID
	Status          domain.OrderStatus
	Note            string
	TrackingID      string
	TrackingCourier string

	// ExpectedVersion guards against lost updates. When nil, the version
	// read inside the call is used, which still serializes concurrent
	// writers at the store.
	ExpectedVersion *int32
}

// ReconcileResult reports a tracking reconciliation. Info is always set when
// the provider responded, even if recording the delivery failed; UpdateErr
// carries that failure so callers can show tracking data with a warning.
type ReconcileResult struct {
	Info            *tracking.Info
	Delivered       bool
	Updated         bool
	AlreadyRecorded bool
	UpdateErr       error
}

// OrderService provides business logic for order operations.
type OrderService interface {
	// CreateOrder validates items against the catalog, computes the total
	// server-side, and persists the order with its seed history entry.
	CreateOrder(ctx context.Context, params CreateOrderParams) (*domain.Order, error)

	// GetOrder returns an order visible to the caller: owners see their
	// own orders, admins see all.
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)

	// ListOrders returns orders for the caller. Non-admins are always
	// scoped to their own orders regardless of the filter.
	ListOrders(ctx context.Context, filter domain.ListOrdersFilter) ([]domain.Order, error)

	// TransitionStatus applies an admin status change with full state
	// machine validation and audit logging.
	TransitionStatus(ctx context.Context, params TransitionParams) (*domain.Order, error)

	// ReconcileTracking fetches live tracking for a shipped order and,
	// when the courier reports delivery, records it exactly once.
	ReconcileTracking(ctx context.Context, orderID uuid.UUID) (*ReconcileResult, error)
}

type orderService struct {
	orders    domain.OrderStore
	products  domain.ProductStore
	tracker   tracking.Provider
	publisher events.Publisher
	policy    domain.TransitionPolicy
	logger    zerolog.Logger
}

// NewOrderService creates a new OrderService instance.
func NewOrderService(
	orders domain.OrderStore,
	products domain.ProductStore,
	tracker tracking.Provider,
	publisher events.Publisher,
	policy domain.TransitionPolicy,
	logger zerolog.Logger,
) (OrderService, error) {
	if orders == nil || products == nil {
		return nil, fmt.Errorf("order and product stores are required")
	}
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}

	return &orderService{
		orders:    orders,
		products:  products,
		tracker:   tracker,
		publisher: publisher,
		policy:    policy,
		logger:    logger.With().Str("component", "order_service").Logger(),
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, params CreateOrderParams) (*domain.Order, error) {
	user := domain.UserFromContext(ctx)
	if user == nil {
		return nil, domain.Unauthorized("order.create", "authentication required")
	}

	if len(params.Items) == 0 {
		return nil, domain.ErrEmptyOrder
	}
	for _, item := range params.Items {
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
	}
	if !params.PaymentMethod.Valid() {
		return nil, domain.Invalid("order.create", "unknown payment method")
	}

	ids := make([]uuid.UUID, len(params.Items))
	for i, item := range params.Items {
		ids[i] = item.ProductID
	}
	catalog, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, item := range params.Items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, domain.Invalid("order.create", fmt.Sprintf("product %s does not exist", item.ProductID))
		}
		if !product.Active {
			return nil, domain.Invalid("order.create", fmt.Sprintf("product %q is no longer available", product.Name))
		}
		total += product.PriceCents * int64(item.Quantity)
	}

	if params.ClientTotalCents != nil && *params.ClientTotalCents != total {
		return nil, domain.ErrTotalMismatch
	}

	order := &domain.Order{
		UserID:          user.ID,
		CustomerEmail:   user.Email,
		Items:           params.Items,
		ShippingAddress: params.ShippingAddress,
		PaymentMethod:   params.PaymentMethod,
		Status:          domain.StatusPending,
		TotalCents:      total,
		StatusHistory: []domain.StatusHistoryEntry{{
			Status:         domain.StatusPending,
			ChangedBy:      user.ID,
			ChangedByEmail: user.Email,
			Note:           "order placed",
		}},
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.publish(ctx, events.SubjectOrderCreated, events.OrderCreated{
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalCents: order.TotalCents,
		CreatedAt:  order.CreatedAt,
	})

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("user_id", user.ID.String()).
		Int64("total_cents", total).
		Msg("order created")
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOrderAccess(ctx, order, "order.get"); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter domain.ListOrdersFilter) ([]domain.Order, error) {
	user := domain.UserFromContext(ctx)
	if user == nil {
		return nil, domain.Unauthorized("order.list", "authentication required")
	}
	if !user.Admin {
		filter.UserID = &user.ID
	}
	return s.orders.ListOrders(ctx, filter)
}

func (s *orderService) TransitionStatus(ctx context.Context, params TransitionParams) (*domain.Order, error) {
	user := domain.UserFromContext(ctx)
	if user == nil {
		return nil, domain.Unauthorized("order.transition", "authentication required")
	}
	if !user.Admin {
		return nil, domain.Forbidden("order.transition", "only admins can change order status")
	}

	entry := domain.StatusHistoryEntry{
		Status:         params.Status,
		ChangedBy:      user.ID,
		ChangedByEmail: user.Email,
		Note:           params.Note,
	}
	return s.transition(ctx, params, entry)
}

// transition is the shared core of admin transitions and system-initiated
// ones (payment capture, tracking reconciliation). The caller supplies the
// history entry so the audit trail names the real actor.
func (s *orderService) transition(ctx context.Context, params TransitionParams, entry domain.StatusHistoryEntry) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, params.OrderID)
	if err != nil {
		return nil, err
	}

	if err := domain.CanTransition(order.Status, params.Status, s.policy); err != nil {
		return nil, err
	}

	trackingID := order.TrackingID
	trackingCourier := order.TrackingCourier
	if params.TrackingID != "" {
		trackingID = params.TrackingID
	}
	if params.TrackingCourier != "" {
		trackingCourier = params.TrackingCourier
	}

	// Shipped orders must be traceable before the status flips, otherwise
	// reconciliation has nothing to poll.
	if params.Status == domain.StatusShipped && (trackingID == "" || trackingCourier == "") {
		return nil, domain.ErrMissingTracking
	}

	if params.Status == domain.StatusShipped {
		entry.TrackingID = trackingID
		entry.TrackingCourier = trackingCourier
	}

	expectedVersion := order.Version
	if params.ExpectedVersion != nil {
		expectedVersion = *params.ExpectedVersion
	}

	updated, err := s.orders.UpdateOrderStatus(ctx, domain.UpdateOrderStatusParams{
		OrderID:         params.OrderID,
		ExpectedVersion: expectedVersion,
		Status:          params.Status,
		TrackingID:      trackingID,
		TrackingCourier: trackingCourier,
		History:         entry,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.SubjectOrderStatusChanged, events.OrderStatusChanged{
		OrderID:   updated.ID,
		From:      order.Status,
		To:        updated.Status,
		ChangedBy: entry.ChangedBy,
		ChangedAt: updated.UpdatedAt,
	})

	s.logger.Info().
		Str("order_id", updated.ID.String()).
		Str("from", string(order.Status)).
		Str("to", string(updated.Status)).
		Str("changed_by", entry.ChangedByEmail).
		Msg("order status changed")
	return updated, nil
}

func (s *orderService) ReconcileTracking(ctx context.Context, orderID uuid.UUID) (*ReconcileResult, error) {
	if s.tracker == nil {
		return nil, domain.Errorf(domain.EUNAVAILABLE, "order.reconcile", "tracking provider is not configured")
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOrderAccess(ctx, order, "order.reconcile"); err != nil {
		return nil, err
	}
	if order.TrackingID == "" || order.TrackingCourier == "" {
		return nil, domain.Invalid("order.reconcile", "order has no tracking information")
	}

	info, err := s.tracker.GetTracking(ctx, order.TrackingID, order.TrackingCourier)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{Info: info, Delivered: info.Delivered()}
	if !result.Delivered {
		return result, nil
	}

	// Record the delivery exactly once: repeated polls after delivery must
	// not grow the audit trail.
	if order.HasDeliveredHistory() {
		result.AlreadyRecorded = true
		return result, nil
	}

	entry := domain.StatusHistoryEntry{
		Status:         domain.StatusDelivered,
		ChangedByEmail: "system",
		Note:           "delivered per tracking provider",
	}
	// Prefer the courier's delivery scan time over our clock.
	if at := info.DeliveredAt(); at != nil {
		entry.ChangedAt = *at
	}
	_, err = s.transition(ctx, TransitionParams{
		OrderID: orderID,
		Status:  domain.StatusDelivered,
	}, entry)
	switch {
	case err == nil:
		result.Updated = true
	case domain.IsCode(err, domain.ECONFLICT):
		// Lost the race to another reconciler or the order moved on.
		// The tracking data is still good; report the miss and move on.
		result.UpdateErr = err
		s.logger.Warn().Err(err).Str("order_id", orderID.String()).Msg("delivery reconciliation skipped")
	default:
		result.UpdateErr = err
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to record delivery")
	}
	return result, nil
}

func (s *orderService) publish(ctx context.Context, subject string, event any) {
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		s.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}

// authorizeOrderAccess allows the order's owner and admins.
func authorizeOrderAccess(ctx context.Context, order *domain.Order, op string) error {
	user := domain.UserFromContext(ctx)
	if user == nil {
		return domain.Unauthorized(op, "authentication required")
	}
	if user.Admin || user.ID == order.UserID {
		return nil
	}
	return domain.Forbidden(op, "you do not have access to this order")
}
