// Package invoice renders order invoices as PDF documents.
package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Company is the seller identity printed in the invoice header.
type Company struct {
	Name    string
	Address string
	Email   string
	TaxID   string
}

// Line is one priced invoice row. Unavailable marks items whose product
// record has since been deleted; they render as placeholders with zero price.
type Line struct {
	Name        string
	SKU         string
	Quantity    int32
	UnitCents   int64
	AmountCents int64
	Unavailable bool
}

// Document is the fully resolved invoice view of an order.
type Document struct {
	Number   string
	IssuedAt time.Time
	Order    *domain.Order
	Lines    []Line

	SubtotalCents   int64
	ShippingCents   int64
	TaxCents        int64
	GrandTotalCents int64
}

// Renderer produces invoice PDFs for orders.
type Renderer interface {
	// Render builds and renders the invoice for an order. Owners and
	// admins only.
	Render(ctx context.Context, orderID uuid.UUID) ([]byte, error)
}

type renderer struct {
	orders   domain.OrderStore
	products domain.ProductStore
	company  Company
	logger   zerolog.Logger
}

// NewRenderer creates a new invoice renderer.
func NewRenderer(orders domain.OrderStore, products domain.ProductStore, company Company, logger zerolog.Logger) (Renderer, error) {
	if orders == nil || products == nil {
		return nil, fmt.Errorf("order and product stores are required")
	}
	if company.Name == "" {
		return nil, fmt.Errorf("company name is required")
	}

	return &renderer{
		orders:   orders,
		products: products,
		company:  company,
		logger:   logger.With().Str("component", "invoice").Logger(),
	}, nil
}

func (r *renderer) Render(ctx context.Context, orderID uuid.UUID) ([]byte, error) {
	order, err := r.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	user := domain.UserFromContext(ctx)
	if user == nil {
		return nil, domain.Unauthorized("invoice.render", "authentication required")
	}
	if !user.Admin && user.ID != order.UserID {
		return nil, domain.Forbidden("invoice.render", "you do not have access to this invoice")
	}

	doc, err := r.build(ctx, order)
	if err != nil {
		return nil, err
	}

	pdf := r.renderPDF(doc)
	data, err := pdfBytes(pdf)
	if err != nil {
		return nil, domain.Internal(err, "invoice.render", "failed to render invoice PDF")
	}

	r.logger.Info().
		Str("order_id", order.ID.String()).
		Str("invoice_number", doc.Number).
		Int("bytes", len(data)).
		Msg("invoice rendered")
	return data, nil
}

// build resolves line items against the current catalog. Prices are read
// live, so an invoice rendered after a price change reflects the new price;
// deleted products keep their quantity but render unpriced.
func (r *renderer) build(ctx context.Context, order *domain.Order) (*Document, error) {
	ids := make([]uuid.UUID, len(order.Items))
	for i, item := range order.Items {
		ids[i] = item.ProductID
	}
	catalog, err := r.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Number:   invoiceNumber(order),
		IssuedAt: time.Now().UTC(),
		Order:    order,
	}

	for _, item := range order.Items {
		product, ok := catalog[item.ProductID]
		if !ok {
			doc.Lines = append(doc.Lines, Line{
				Name:        "(product unavailable)",
				Quantity:    item.Quantity,
				Unavailable: true,
			})
			continue
		}
		amount := product.PriceCents * int64(item.Quantity)
		doc.Lines = append(doc.Lines, Line{
			Name:        product.Name,
			SKU:         product.SKU,
			Quantity:    item.Quantity,
			UnitCents:   product.PriceCents,
			AmountCents: amount,
		})
		doc.SubtotalCents += amount
	}

	doc.GrandTotalCents = doc.SubtotalCents + doc.ShippingCents + doc.TaxCents
	return doc, nil
}

// invoiceNumber derives a stable human-readable number from the order.
func invoiceNumber(order *domain.Order) string {
	return fmt.Sprintf("INV-%s-%s", order.CreatedAt.Format("20060102"), order.ID.String()[:8])
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
