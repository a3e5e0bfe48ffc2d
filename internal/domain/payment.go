package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment-related domain errors.
var (
	ErrPaymentNotFound     = &Error{Code: ENOTFOUND, Message: "Payment not found"}
	ErrInvalidSignature    = &Error{Code: EPAYMENT, Message: "Payment signature verification failed"}
	ErrPaymentNotCompleted = &Error{Code: ECONFLICT, Message: "Only completed payments can be refunded"}
	ErrAlreadyRefunded     = &Error{Code: ECONFLICT, Message: "Payment already refunded"}
)

// PaymentStatus is the settlement state of a payment. Transitions are
// monotonic except refunded, which is only reachable from completed.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment is one gateway settlement attempt, tied 1:1 to an order.
// Gateway fields are present only for gateway payments; they are used once
// for signature verification and retained for audit.
type Payment struct {
	ID               uuid.UUID     `json:"id"`
	OrderID          uuid.UUID     `json:"order_id"`
	UserID           uuid.UUID     `json:"user_id"`
	Method           PaymentMethod `json:"method"`
	AmountCents      int64         `json:"amount_cents"`
	Status           PaymentStatus `json:"status"`
	GatewayOrderID   string        `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string        `json:"gateway_payment_id,omitempty"`
	GatewaySignature string        `json:"gateway_signature,omitempty"`
	RefundDate       *time.Time    `json:"refund_date,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
