package postgres

import (
	"context"
	"errors"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentStore implements domain.PaymentStore using PostgreSQL.
type PaymentStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that PaymentStore implements domain.PaymentStore.
var _ domain.PaymentStore = (*PaymentStore)(nil)

// NewPaymentStore creates a new PostgreSQL-backed payment store.
func NewPaymentStore(pool *pgxpool.Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

const paymentColumns = `
	id, order_id, user_id, method, amount_cents, status,
	gateway_order_id, gateway_payment_id, gateway_signature,
	refund_date, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var method, status string
	err := row.Scan(
		&p.ID, &p.OrderID, &p.UserID, &method, &p.AmountCents, &status,
		&p.GatewayOrderID, &p.GatewayPaymentID, &p.GatewaySignature,
		&p.RefundDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Method = domain.PaymentMethod(method)
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}

// CreatePayment inserts a payment record and fills ID and timestamps.
func (s *PaymentStore) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO payments (
			order_id, user_id, method, amount_cents, status,
			gateway_order_id, gateway_payment_id, gateway_signature
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		payment.OrderID, payment.UserID, string(payment.Method),
		payment.AmountCents, string(payment.Status),
		payment.GatewayOrderID, payment.GatewayPaymentID, payment.GatewaySignature,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return domain.Internal(err, "payment.create", "failed to insert payment")
	}
	return nil
}

// GetPayment loads a payment by ID.
func (s *PaymentStore) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx,
		`SELECT`+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, domain.Internal(err, "payment.get", "failed to get payment")
	}
	return p, nil
}

// GetPaymentByOrder loads the most recent payment for an order.
func (s *PaymentStore) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx,
		`SELECT`+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, domain.Internal(err, "payment.get_by_order", "failed to get payment")
	}
	return p, nil
}

// MarkPaymentCompleted records the verified gateway identifiers and flips the
// payment to completed.
func (s *PaymentStore) MarkPaymentCompleted(ctx context.Context, id uuid.UUID, gatewayPaymentID, gatewaySignature string) (*domain.Payment, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx, `
		UPDATE payments
		SET status = 'completed',
		    gateway_payment_id = $2,
		    gateway_signature = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING`+paymentColumns,
		id, gatewayPaymentID, gatewaySignature))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, domain.Internal(err, "payment.complete", "failed to update payment")
	}
	return p, nil
}

// MarkPaymentRefunded flips the payment to refunded and stamps the refund date.
func (s *PaymentStore) MarkPaymentRefunded(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx, `
		UPDATE payments
		SET status = 'refunded',
		    refund_date = now(),
		    updated_at = now()
		WHERE id = $1
		RETURNING`+paymentColumns,
		id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, domain.Internal(err, "payment.refund", "failed to update payment")
	}
	return p, nil
}
