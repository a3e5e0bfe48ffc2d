package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order-related domain errors.
var (
	ErrOrderNotFound      = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrEmptyOrder         = &Error{Code: EINVALID, Message: "Order must contain at least one item"}
	ErrMissingTracking    = &Error{Code: EINVALID, Message: "Tracking ID and courier are required to mark an order shipped"}
	ErrConcurrentUpdate   = &Error{Code: ECONFLICT, Message: "Order was modified concurrently, please retry"}
	ErrInvalidTransition  = &Error{Code: ECONFLICT, Message: "Order status transition not allowed"}
	ErrStatusUnchanged    = &Error{Code: ECONFLICT, Message: "Order already has the requested status"}
	ErrUnknownStatus      = &Error{Code: EINVALID, Message: "Unknown order status"}
	ErrTotalMismatch      = &Error{Code: EINVALID, Message: "Payment amount does not match order total"}
	ErrInvalidQuantity    = &Error{Code: EINVALID, Message: "Item quantity must be a positive integer"}
	ErrMissingGatewayInfo = &Error{Code: EINVALID, Message: "Gateway order ID is required for gateway payments"}
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
)

// statusRank orders the forward fulfillment chain. Cancelled and refunded sit
// outside the chain and are handled explicitly in CanTransition.
var statusRank = map[OrderStatus]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusDelivered:  3,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// IsTerminal reports whether s ends the order lifecycle.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// TransitionPolicy controls which status transitions the state machine accepts.
// The default (strict) policy rejects backward moves and moves out of terminal
// states. Permissive mode accepts any change between known statuses, matching
// deployments that relied on admins re-opening orders.
type TransitionPolicy struct {
	// AllowBackward permits backward and out-of-terminal transitions
	// (e.g. delivered -> pending).
	AllowBackward bool
}

// CanTransition validates a status change under the given policy.
// A nil return means the transition is allowed. Refunds are reachable from any
// state (including delivered) in both modes, since refunding a delivered order
// is a legitimate admin action.
func CanTransition(from, to OrderStatus, policy TransitionPolicy) error {
	if !to.Valid() {
		return ErrUnknownStatus
	}
	if from == to {
		return ErrStatusUnchanged
	}
	if policy.AllowBackward {
		return nil
	}

	if to == StatusRefunded {
		return nil
	}
	if to == StatusCancelled {
		if from.IsTerminal() {
			return ErrInvalidTransition
		}
		return nil
	}
	if from.IsTerminal() {
		return ErrInvalidTransition
	}

	// Forward-only along the fulfillment chain; skipping intermediate
	// states (pending -> shipped) is allowed.
	if statusRank[to] < statusRank[from] {
		return ErrInvalidTransition
	}
	return nil
}

// PaymentMethod is how an order is settled.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentGateway        PaymentMethod = "gateway"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCashOnDelivery || m == PaymentGateway
}

// ShippingAddress is a value snapshot copied onto the order at creation time.
// Later edits to the customer's address book never alter past orders.
type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}

// OrderItem is one line of an order. ProductID is a weak reference: the
// product record is looked up at read time and may have been deleted.
type OrderItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
}

// StatusHistoryEntry is one element of an order's append-only audit trail.
// Entries are never deleted or reordered. ChangedBy is a weak reference to
// the acting user; ChangedByEmail is denormalized so the trail survives
// account deletion.
type StatusHistoryEntry struct {
	Status          OrderStatus `json:"status"`
	ChangedAt       time.Time   `json:"changed_at"`
	ChangedBy       uuid.UUID   `json:"changed_by"`
	ChangedByEmail  string      `json:"changed_by_email"`
	Note            string      `json:"note"`
	TrackingID      string      `json:"tracking_id,omitempty"`
	TrackingCourier string      `json:"tracking_courier,omitempty"`
}

// Order is one checkout transaction. Items and TotalCents are immutable after
// creation; only Status, tracking fields, and the history log change.
type Order struct {
	ID              uuid.UUID            `json:"id"`
	UserID          uuid.UUID            `json:"user_id"`
	CustomerEmail   string               `json:"customer_email"`
	Items           []OrderItem          `json:"items"`
	ShippingAddress ShippingAddress      `json:"shipping_address"`
	PaymentMethod   PaymentMethod        `json:"payment_method"`
	Status          OrderStatus          `json:"status"`
	TrackingID      string               `json:"tracking_id,omitempty"`
	TrackingCourier string               `json:"tracking_courier,omitempty"`
	TotalCents      int64                `json:"total_cents"`
	Version         int32                `json:"version"`
	StatusHistory   []StatusHistoryEntry `json:"status_history"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// HasDeliveredHistory reports whether a delivered entry already exists in the
// audit trail. Used to keep tracking reconciliation idempotent.
func (o *Order) HasDeliveredHistory() bool {
	for _, e := range o.StatusHistory {
		if e.Status == StatusDelivered {
			return true
		}
	}
	return false
}
