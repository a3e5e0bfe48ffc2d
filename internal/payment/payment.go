// Package payment integrates the payment gateway: creating gateway orders,
// verifying callback signatures, and issuing refunds.
package payment

import (
	"context"

	"github.com/google/uuid"
)

// Intent is a gateway-side order created ahead of checkout. The client
// completes payment against GatewayOrderID and returns a signed callback.
type Intent struct {
	GatewayOrderID string `json:"gateway_order_id"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
}

// Gateway is the payment provider client.
type Gateway interface {
	// CreateIntent registers an order with the gateway and returns the
	// gateway order ID the client pays against.
	CreateIntent(ctx context.Context, orderID uuid.UUID, amountCents int64, currency string) (*Intent, error)

	// Refund reverses a captured payment.
	Refund(ctx context.Context, gatewayPaymentID string, amountCents int64) error
}
