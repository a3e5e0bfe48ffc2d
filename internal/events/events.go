// Package events publishes order lifecycle events for downstream consumers
// (notifications, analytics). Publishing is best-effort: a broker outage must
// never fail the request that produced the event.
package events

import (
	"context"
	"time"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/google/uuid"
)

// Subjects for published events.
const (
	SubjectOrderCreated       = "orders.created"
	SubjectOrderStatusChanged = "orders.status_changed"
	SubjectPaymentCompleted   = "payments.completed"
)

// OrderCreated is emitted after an order is persisted.
type OrderCreated struct {
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	TotalCents int64     `json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

// OrderStatusChanged is emitted after every successful status transition,
// including transitions applied by tracking reconciliation.
type OrderStatusChanged struct {
	OrderID   uuid.UUID          `json:"order_id"`
	From      domain.OrderStatus `json:"from"`
	To        domain.OrderStatus `json:"to"`
	ChangedBy uuid.UUID          `json:"changed_by"`
	ChangedAt time.Time          `json:"changed_at"`
}

// PaymentCompleted is emitted after a gateway payment passes verification.
type PaymentCompleted struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	OrderID     uuid.UUID `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	CompletedAt time.Time `json:"completed_at"`
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
	Close()
}
