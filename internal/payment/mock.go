package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MockGateway is a test double for the payment gateway.
type MockGateway struct {
	CreateIntentFunc func(ctx context.Context, orderID uuid.UUID, amountCents int64, currency string) (*Intent, error)
	RefundFunc       func(ctx context.Context, gatewayPaymentID string, amountCents int64) error

	CreateIntentCalls int
	RefundCalls       int
}

var _ Gateway = (*MockGateway)(nil)

func (m *MockGateway) CreateIntent(ctx context.Context, orderID uuid.UUID, amountCents int64, currency string) (*Intent, error) {
	m.CreateIntentCalls++
	if m.CreateIntentFunc != nil {
		return m.CreateIntentFunc(ctx, orderID, amountCents, currency)
	}
	return &Intent{
		GatewayOrderID: fmt.Sprintf("order_mock_%s", orderID.String()[:8]),
		AmountCents:    amountCents,
		Currency:       currency,
	}, nil
}

func (m *MockGateway) Refund(ctx context.Context, gatewayPaymentID string, amountCents int64) error {
	m.RefundCalls++
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, gatewayPaymentID, amountCents)
	}
	return nil
}
