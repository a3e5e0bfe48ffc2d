package service

import (
	"context"
	"fmt"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/dukerupert/skald/internal/events"
	"github.com/dukerupert/skald/internal/payment"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// VerifyPaymentParams is the signed callback the client posts after paying at
// the gateway.
type VerifyPaymentParams struct {
	OrderID          uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// PaymentService provides business logic for gateway payments.
type PaymentService interface {
	// CreateIntent registers a gateway order for a pending order and
	// records the payment attempt.
	CreateIntent(ctx context.Context, orderID uuid.UUID) (*domain.Payment, *payment.Intent, error)

	// VerifyPayment checks the callback signature, marks the payment
	// completed, and moves the order to processing.
	VerifyPayment(ctx context.Context, params VerifyPaymentParams) (*domain.Payment, error)

	// RefundPayment reverses a completed payment at the gateway and moves
	// the order to refunded.
	RefundPayment(ctx context.Context, orderID uuid.UUID, note string) (*domain.Payment, error)
}

// transitionApplier is the system-actor transition hook. The order service
// implements it; payment flows use it to record transitions attributed to
// "system" rather than to an admin.
type transitionApplier interface {
	transition(ctx context.Context, params TransitionParams, entry domain.StatusHistoryEntry) (*domain.Order, error)
}

type paymentService struct {
	payments  domain.PaymentStore
	orders    domain.OrderStore
	gateway   payment.Gateway
	verifier  *payment.Verifier
	lifecycle OrderService
	applier   transitionApplier
	publisher events.Publisher
	logger    zerolog.Logger
}

// NewPaymentService creates a new PaymentService instance. The order service
// handles the status side effects so both flows share one state machine.
func NewPaymentService(
	payments domain.PaymentStore,
	orders domain.OrderStore,
	gateway payment.Gateway,
	verifier *payment.Verifier,
	lifecycle OrderService,
	publisher events.Publisher,
	logger zerolog.Logger,
) (PaymentService, error) {
	if payments == nil || orders == nil {
		return nil, fmt.Errorf("payment and order stores are required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("signature verifier is required")
	}
	if lifecycle == nil {
		return nil, fmt.Errorf("order service is required")
	}
	applier, ok := lifecycle.(transitionApplier)
	if !ok {
		return nil, fmt.Errorf("order service does not support system transitions")
	}
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}

	return &paymentService{
		payments:  payments,
		orders:    orders,
		gateway:   gateway,
		verifier:  verifier,
		lifecycle: lifecycle,
		applier:   applier,
		publisher: publisher,
		logger:    logger.With().Str("component", "payment_service").Logger(),
	}, nil
}

func (s *paymentService) CreateIntent(ctx context.Context, orderID uuid.UUID) (*domain.Payment, *payment.Intent, error) {
	if s.gateway == nil {
		return nil, nil, domain.Errorf(domain.EUNAVAILABLE, "payment.create_intent", "payment gateway is not configured")
	}

	user := domain.UserFromContext(ctx)
	if user == nil {
		return nil, nil, domain.Unauthorized("payment.create_intent", "authentication required")
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if err := authorizeOrderAccess(ctx, order, "payment.create_intent"); err != nil {
		return nil, nil, err
	}
	if order.PaymentMethod != domain.PaymentGateway {
		return nil, nil, domain.Invalid("payment.create_intent", "order is not a gateway payment order")
	}
	if order.Status != domain.StatusPending {
		return nil, nil, domain.Conflict("payment.create_intent", "order is no longer awaiting payment")
	}

	intent, err := s.gateway.CreateIntent(ctx, order.ID, order.TotalCents, "INR")
	if err != nil {
		return nil, nil, err
	}

	pmt := &domain.Payment{
		OrderID:        order.ID,
		UserID:         order.UserID,
		Method:         domain.PaymentGateway,
		AmountCents:    order.TotalCents,
		Status:         domain.PaymentPending,
		GatewayOrderID: intent.GatewayOrderID,
	}
	if err := s.payments.CreatePayment(ctx, pmt); err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("gateway_order_id", intent.GatewayOrderID).
		Int64("amount_cents", order.TotalCents).
		Msg("payment intent created")
	return pmt, intent, nil
}

func (s *paymentService) VerifyPayment(ctx context.Context, params VerifyPaymentParams) (*domain.Payment, error) {
	user := domain.UserFromContext(ctx)
	if user == nil {
		return nil, domain.Unauthorized("payment.verify", "authentication required")
	}

	// The signature check runs before any state is touched, so a forged
	// callback cannot even reveal whether the payment record exists.
	if err := s.verifier.Verify(params.GatewayOrderID, params.GatewayPaymentID, params.Signature); err != nil {
		s.logger.Warn().
			Str("order_id", params.OrderID.String()).
			Str("gateway_order_id", params.GatewayOrderID).
			Str("code", domain.ErrorCode(err)).
			Msg("payment verification rejected")
		return nil, err
	}

	pmt, err := s.payments.GetPaymentByOrder(ctx, params.OrderID)
	if err != nil {
		return nil, err
	}
	if pmt.GatewayOrderID != params.GatewayOrderID {
		return nil, domain.ErrInvalidSignature
	}
	if pmt.Status == domain.PaymentCompleted {
		// Verification callbacks can be retried by the client; a repeat
		// of the same completed payment is not an error.
		if pmt.GatewayPaymentID == params.GatewayPaymentID {
			return pmt, nil
		}
		return nil, domain.Conflict("payment.verify", "payment already completed")
	}

	pmt, err = s.payments.MarkPaymentCompleted(ctx, pmt.ID, params.GatewayPaymentID, params.Signature)
	if err != nil {
		return nil, err
	}

	// Paid orders move to processing under the system actor. A conflict
	// here means an admin touched the order mid-payment; the payment
	// itself stays completed.
	_, err = s.applier.transition(ctx, TransitionParams{
		OrderID: params.OrderID,
		Status:  domain.StatusProcessing,
	}, domain.StatusHistoryEntry{
		Status:         domain.StatusProcessing,
		ChangedByEmail: "system",
		Note:           "payment verified",
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", params.OrderID.String()).Msg("order transition after payment failed")
	}

	s.publish(ctx, events.SubjectPaymentCompleted, events.PaymentCompleted{
		PaymentID:   pmt.ID,
		OrderID:     pmt.OrderID,
		AmountCents: pmt.AmountCents,
		CompletedAt: pmt.UpdatedAt,
	})

	s.logger.Info().
		Str("order_id", pmt.OrderID.String()).
		Str("gateway_payment_id", params.GatewayPaymentID).
		Msg("payment verified")
	return pmt, nil
}

func (s *paymentService) RefundPayment(ctx context.Context, orderID uuid.UUID, note string) (*domain.Payment, error) {
	user := domain.UserFromContext(ctx)
	if user == nil {
		return nil, domain.Unauthorized("payment.refund", "authentication required")
	}
	if !user.Admin {
		return nil, domain.Forbidden("payment.refund", "only admins can refund payments")
	}

	pmt, err := s.payments.GetPaymentByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch pmt.Status {
	case domain.PaymentRefunded:
		return nil, domain.ErrAlreadyRefunded
	case domain.PaymentCompleted:
	default:
		return nil, domain.ErrPaymentNotCompleted
	}

	if s.gateway == nil {
		return nil, domain.Errorf(domain.EUNAVAILABLE, "payment.refund", "payment gateway is not configured")
	}
	if err := s.gateway.Refund(ctx, pmt.GatewayPaymentID, pmt.AmountCents); err != nil {
		return nil, err
	}

	pmt, err = s.payments.MarkPaymentRefunded(ctx, pmt.ID)
	if err != nil {
		// The gateway refund went through; surface the store failure so
		// the admin retries and the record catches up.
		return nil, err
	}

	if note == "" {
		note = "payment refunded"
	}
	_, err = s.lifecycle.TransitionStatus(ctx, TransitionParams{
		OrderID: orderID,
		Status:  domain.StatusRefunded,
		Note:    note,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", orderID.String()).Msg("order transition after refund failed")
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("refunded_by", user.Email).
		Msg("payment refunded")
	return pmt, nil
}

func (s *paymentService) publish(ctx context.Context, subject string, event any) {
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		s.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}
