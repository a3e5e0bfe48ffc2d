package domain

import (
	"time"

	"github.com/google/uuid"
)

// ErrProductNotFound is returned when a referenced product no longer exists.
var ErrProductNotFound = &Error{Code: ENOTFOUND, Message: "Product not found"}

// Product is the catalog record referenced by order items. Orders hold only
// the product ID; name and price are looked up at read time, so a product may
// disappear or change price after an order references it.
type Product struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	SKU        string    `json:"sku"`
	PriceCents int64     `json:"price_cents"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
