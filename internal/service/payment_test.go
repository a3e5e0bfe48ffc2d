package service

import (
	"context"
	"testing"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/dukerupert/skald/internal/events"
	"github.com/dukerupert/skald/internal/payment"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGatewaySecret = "test_gateway_secret"

type paymentFixture struct {
	*orderFixture
	svc      PaymentService
	payments *memPaymentStore
	gateway  *payment.MockGateway
	verifier *payment.Verifier
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	of := newOrderFixture(t, domain.TransitionPolicy{})
	verifier, err := payment.NewVerifier(testGatewaySecret)
	require.NoError(t, err)

	f := &paymentFixture{
		orderFixture: of,
		payments:     newMemPaymentStore(),
		gateway:      &payment.MockGateway{},
		verifier:     verifier,
	}

	svc, err := NewPaymentService(f.payments, f.orders, f.gateway, verifier, of.svc, of.publisher, zerolog.Nop())
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *paymentFixture) placeGatewayOrder(t *testing.T) *domain.Order {
	t.Helper()
	coffee := f.products.add("coffee", 1250)
	order, err := f.orderFixture.svc.CreateOrder(f.customerCtx(), CreateOrderParams{
		Items:         []domain.OrderItem{{ProductID: coffee, Quantity: 2}},
		PaymentMethod: domain.PaymentGateway,
	})
	require.NoError(t, err)
	return order
}

func TestCreateIntentFlow(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.placeGatewayOrder(t)

	pmt, intent, err := f.svc.CreateIntent(f.customerCtx(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.TotalCents, pmt.AmountCents)
	assert.Equal(t, domain.PaymentPending, pmt.Status)
	assert.Equal(t, intent.GatewayOrderID, pmt.GatewayOrderID)
	assert.Equal(t, 1, f.gateway.CreateIntentCalls)
}

func TestCreateIntentRejectsCashOrders(t *testing.T) {
	f := newPaymentFixture(t)
	coffee := f.products.add("coffee", 1250)
	order, err := f.orderFixture.svc.CreateOrder(f.customerCtx(), CreateOrderParams{
		Items:         []domain.OrderItem{{ProductID: coffee, Quantity: 1}},
		PaymentMethod: domain.PaymentCashOnDelivery,
	})
	require.NoError(t, err)

	_, _, err = f.svc.CreateIntent(f.customerCtx(), order.ID)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestCreateIntentRejectsStrangers(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.placeGatewayOrder(t)

	stranger := domain.NewContextWithUser(context.Background(), &domain.User{ID: uuid.New(), Email: "eve@example.com"})
	_, _, err := f.svc.CreateIntent(stranger, order.ID)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
}

func TestVerifyPayment(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.placeGatewayOrder(t)

	pmt, intent, err := f.svc.CreateIntent(f.customerCtx(), order.ID)
	require.NoError(t, err)

	sig := f.verifier.Sign(intent.GatewayOrderID, "pay_001")
	verified, err := f.svc.VerifyPayment(f.customerCtx(), VerifyPaymentParams{
		OrderID:          order.ID,
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_001",
		Signature:        sig,
	})
	require.NoError(t, err)
	assert.Equal(t, pmt.ID, verified.ID)
	assert.Equal(t, domain.PaymentCompleted, verified.Status)
	assert.Equal(t, "pay_001", verified.GatewayPaymentID)

	// Payment capture moves the order to processing under the system actor.
	current, err := f.orderFixture.svc.GetOrder(f.customerCtx(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, current.Status)
	last := current.StatusHistory[len(current.StatusHistory)-1]
	assert.Equal(t, "system", last.ChangedByEmail)

	var subjects []string
	for _, published := range f.publisher.Published {
		subjects = append(subjects, published.Subject)
	}
	assert.Contains(t, subjects, events.SubjectPaymentCompleted)
}

func TestVerifyPaymentIdempotentRetry(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.placeGatewayOrder(t)

	_, intent, err := f.svc.CreateIntent(f.customerCtx(), order.ID)
	require.NoError(t, err)

	params := VerifyPaymentParams{
		OrderID:          order.ID,
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_001",
		Signature:        f.verifier.Sign(intent.GatewayOrderID, "pay_001"),
	}

	_, err = f.svc.VerifyPayment(f.customerCtx(), params)
	require.NoError(t, err)

	// The client retrying the same callback gets the completed payment
	// back instead of an error.
	again, err := f.svc.VerifyPayment(f.customerCtx(), params)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, again.Status)
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.placeGatewayOrder(t)

	_, intent, err := f.svc.CreateIntent(f.customerCtx(), order.ID)
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(f.customerCtx(), VerifyPaymentParams{
		OrderID:          order.ID,
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_001",
		Signature:        "deadbeef",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	// A rejected callback leaves both the payment and the order untouched.
	pmt, err := f.payments.GetPaymentByOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, pmt.Status)

	current, err := f.orderFixture.svc.GetOrder(f.customerCtx(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, current.Status)
}

func TestVerifyPaymentMismatchedGatewayOrder(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.placeGatewayOrder(t)

	_, _, err := f.svc.CreateIntent(f.customerCtx(), order.ID)
	require.NoError(t, err)

	// A signature valid for a different gateway order must not complete
	// this payment.
	_, err = f.svc.VerifyPayment(f.customerCtx(), VerifyPaymentParams{
		OrderID:          order.ID,
		GatewayOrderID:   "order_someone_elses",
		GatewayPaymentID: "pay_001",
		Signature:        f.verifier.Sign("order_someone_elses", "pay_001"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestRefundPayment(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.placeGatewayOrder(t)

	_, intent, err := f.svc.CreateIntent(f.customerCtx(), order.ID)
	require.NoError(t, err)
	_, err = f.svc.VerifyPayment(f.customerCtx(), VerifyPaymentParams{
		OrderID:          order.ID,
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_001",
		Signature:        f.verifier.Sign(intent.GatewayOrderID, "pay_001"),
	})
	require.NoError(t, err)

	refunded, err := f.svc.RefundPayment(f.adminCtx(), order.ID, "damaged in transit")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundDate)
	assert.Equal(t, 1, f.gateway.RefundCalls)

	current, err := f.orderFixture.svc.GetOrder(f.adminCtx(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, current.Status)
	last := current.StatusHistory[len(current.StatusHistory)-1]
	assert.Equal(t, "damaged in transit", last.Note)

	// Refunding twice conflicts.
	_, err = f.svc.RefundPayment(f.adminCtx(), order.ID, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyRefunded)
}

func TestRefundPaymentRequiresAdmin(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.placeGatewayOrder(t)

	_, err := f.svc.RefundPayment(f.customerCtx(), order.ID, "")
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
}

func TestRefundPaymentRequiresCompletedPayment(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.placeGatewayOrder(t)

	_, _, err := f.svc.CreateIntent(f.customerCtx(), order.ID)
	require.NoError(t, err)

	_, err = f.svc.RefundPayment(f.adminCtx(), order.ID, "")
	assert.ErrorIs(t, err, domain.ErrPaymentNotCompleted)
	assert.Equal(t, 0, f.gateway.RefundCalls)
}

func TestRefundDeliveredOrder(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.placeGatewayOrder(t)

	_, intent, err := f.svc.CreateIntent(f.customerCtx(), order.ID)
	require.NoError(t, err)
	_, err = f.svc.VerifyPayment(f.customerCtx(), VerifyPaymentParams{
		OrderID:          order.ID,
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_001",
		Signature:        f.verifier.Sign(intent.GatewayOrderID, "pay_001"),
	})
	require.NoError(t, err)

	shipOrder(t, f.orderFixture, order)
	_, err = f.orderFixture.svc.TransitionStatus(f.adminCtx(), TransitionParams{
		OrderID: order.ID,
		Status:  domain.StatusDelivered,
	})
	require.NoError(t, err)

	// Delivered is terminal for fulfillment but refunds remain possible.
	refunded, err := f.svc.RefundPayment(f.adminCtx(), order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, refunded.Status)

	current, err := f.orderFixture.svc.GetOrder(f.adminCtx(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, current.Status)
}
