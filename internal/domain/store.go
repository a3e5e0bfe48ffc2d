package domain

import (
	"context"

	"github.com/google/uuid"
)

// ListOrdersFilter narrows ListOrders. Nil fields are ignored.
type ListOrdersFilter struct {
	UserID *uuid.UUID
	Status *OrderStatus
	Limit  int32
	Offset int32
}

// UpdateOrderStatusParams describes one status change. ExpectedVersion is the
// version the caller read; the store rejects the write if the row has moved on.
type UpdateOrderStatusParams struct {
	OrderID         uuid.UUID
	ExpectedVersion int32
	Status          OrderStatus
	TrackingID      string
	TrackingCourier string
	History         StatusHistoryEntry
}

// OrderStore persists orders and their append-only status history.
type OrderStore interface {
	// CreateOrder inserts the order, its items, and the initial history
	// entry in one transaction. The order's ID, Version, and timestamps
	// are filled in on return.
	CreateOrder(ctx context.Context, order *Order) error

	// GetOrder loads an order with items and full status history.
	// Returns ErrOrderNotFound if no such order exists.
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)

	// ListOrders returns orders matching the filter, newest first,
	// without items or history.
	ListOrders(ctx context.Context, filter ListOrdersFilter) ([]Order, error)

	// UpdateOrderStatus applies a status change and appends the history
	// entry atomically. Returns ErrConcurrentUpdate when the version check
	// fails and ErrOrderNotFound when the order does not exist.
	UpdateOrderStatus(ctx context.Context, params UpdateOrderStatusParams) (*Order, error)
}

// PaymentStore persists gateway settlement records.
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error)

	// MarkPaymentCompleted records the verified gateway payment ID and
	// signature and flips status to completed.
	MarkPaymentCompleted(ctx context.Context, id uuid.UUID, gatewayPaymentID, gatewaySignature string) (*Payment, error)

	// MarkPaymentRefunded flips status to refunded and sets the refund date.
	MarkPaymentRefunded(ctx context.Context, id uuid.UUID) (*Payment, error)
}

// ProductStore reads catalog records referenced by order items.
type ProductStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)

	// GetProducts fetches a batch of products by ID. Missing products are
	// simply absent from the result; callers decide how to handle holes.
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error)

	CreateProduct(ctx context.Context, product *Product) error
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)
}
