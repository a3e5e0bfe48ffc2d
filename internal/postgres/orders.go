package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the same
// query helpers work inside and outside transactions.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that OrderStore implements domain.OrderStore.
var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a new PostgreSQL-backed order store.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// CreateOrder inserts the order, its items, and the seed history entries in
// one transaction. The caller provides Status and StatusHistory; the store
// fills ID, Version, and timestamps.
func (s *OrderStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			user_id, customer_email, payment_method, status, total_cents,
			ship_full_name, ship_phone, ship_street, ship_city, ship_state,
			ship_postal_code, ship_country, ship_is_default
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, version, created_at, updated_at`,
		order.UserID,
		order.CustomerEmail,
		string(order.PaymentMethod),
		string(order.Status),
		order.TotalCents,
		order.ShippingAddress.FullName,
		order.ShippingAddress.Phone,
		order.ShippingAddress.Street,
		order.ShippingAddress.City,
		order.ShippingAddress.State,
		order.ShippingAddress.PostalCode,
		order.ShippingAddress.Country,
		order.ShippingAddress.IsDefault,
	).Scan(&order.ID, &order.Version, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to insert order")
	}

	for i, item := range order.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, position)
			VALUES ($1, $2, $3, $4)`,
			order.ID, item.ProductID, item.Quantity, i,
		)
		if err != nil {
			return domain.Internal(err, "order.create", "failed to insert order item")
		}
	}

	for i := range order.StatusHistory {
		entry := &order.StatusHistory[i]
		err = insertHistoryEntry(ctx, tx, order.ID, entry)
		if err != nil {
			return domain.Internal(err, "order.create", "failed to insert status history")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "order.create", "failed to commit transaction")
	}
	return nil
}

// GetOrder loads an order with items and full status history.
func (s *OrderStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return getOrder(ctx, s.pool, id)
}

func getOrder(ctx context.Context, q dbtx, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	var method, status string

	err := q.QueryRow(ctx, `
		SELECT id, user_id, customer_email, payment_method, status,
		       tracking_id, tracking_courier, total_cents, version,
		       ship_full_name, ship_phone, ship_street, ship_city, ship_state,
		       ship_postal_code, ship_country, ship_is_default,
		       created_at, updated_at
		FROM orders
		WHERE id = $1`,
		id,
	).Scan(
		&order.ID, &order.UserID, &order.CustomerEmail, &method, &status,
		&order.TrackingID, &order.TrackingCourier, &order.TotalCents, &order.Version,
		&order.ShippingAddress.FullName, &order.ShippingAddress.Phone,
		&order.ShippingAddress.Street, &order.ShippingAddress.City,
		&order.ShippingAddress.State, &order.ShippingAddress.PostalCode,
		&order.ShippingAddress.Country, &order.ShippingAddress.IsDefault,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, "order.get", "failed to get order")
	}
	order.PaymentMethod = domain.PaymentMethod(method)
	order.Status = domain.OrderStatus(status)

	order.Items, err = getOrderItems(ctx, q, id)
	if err != nil {
		return nil, err
	}

	order.StatusHistory, err = getStatusHistory(ctx, q, id)
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func getOrderItems(ctx context.Context, q dbtx, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY position`,
		orderID,
	)
	if err != nil {
		return nil, domain.Internal(err, "order.get", "failed to get order items")
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, domain.Internal(err, "order.get", "failed to scan order item")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.get", "failed to read order items")
	}
	return items, nil
}

func getStatusHistory(ctx context.Context, q dbtx, orderID uuid.UUID) ([]domain.StatusHistoryEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT status, changed_at, changed_by, changed_by_email, note,
		       tracking_id, tracking_courier
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY changed_at, id`,
		orderID,
	)
	if err != nil {
		return nil, domain.Internal(err, "order.get", "failed to get status history")
	}
	defer rows.Close()

	var history []domain.StatusHistoryEntry
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		var status string
		var changedBy *uuid.UUID
		if err := rows.Scan(
			&status, &entry.ChangedAt, &changedBy, &entry.ChangedByEmail,
			&entry.Note, &entry.TrackingID, &entry.TrackingCourier,
		); err != nil {
			return nil, domain.Internal(err, "order.get", "failed to scan status history")
		}
		entry.Status = domain.OrderStatus(status)
		if changedBy != nil {
			entry.ChangedBy = *changedBy
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.get", "failed to read status history")
	}
	return history, nil
}

func insertHistoryEntry(ctx context.Context, q dbtx, orderID uuid.UUID, entry *domain.StatusHistoryEntry) error {
	var changedBy *uuid.UUID
	if entry.ChangedBy != uuid.Nil {
		changedBy = &entry.ChangedBy
	}
	// ChangedAt may carry an external timestamp (courier delivery scans);
	// otherwise the database clock stamps the entry.
	var changedAt *time.Time
	if !entry.ChangedAt.IsZero() {
		changedAt = &entry.ChangedAt
	}
	return q.QueryRow(ctx, `
		INSERT INTO order_status_history (
			order_id, status, changed_by, changed_by_email, note,
			tracking_id, tracking_courier, changed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
		RETURNING changed_at`,
		orderID, string(entry.Status), changedBy, entry.ChangedByEmail,
		entry.Note, entry.TrackingID, entry.TrackingCourier, changedAt,
	).Scan(&entry.ChangedAt)
}

// ListOrders returns orders matching the filter, newest first, without items
// or history.
func (s *OrderStore) ListOrders(ctx context.Context, filter domain.ListOrdersFilter) ([]domain.Order, error) {
	query := `
		SELECT id, user_id, customer_email, payment_method, status,
		       tracking_id, tracking_courier, total_cents, version,
		       created_at, updated_at
		FROM orders`
	var args []any

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += fmt.Sprintf(" WHERE user_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		if len(args) == 1 {
			query += fmt.Sprintf(" WHERE status = $%d", len(args))
		} else {
			query += fmt.Sprintf(" AND status = $%d", len(args))
		}
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Internal(err, "order.list", "failed to list orders")
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		var method, status string
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.CustomerEmail, &method, &status,
			&order.TrackingID, &order.TrackingCourier, &order.TotalCents,
			&order.Version, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, domain.Internal(err, "order.list", "failed to scan order")
		}
		order.PaymentMethod = domain.PaymentMethod(method)
		order.Status = domain.OrderStatus(status)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.list", "failed to read orders")
	}
	return orders, nil
}

// UpdateOrderStatus applies a status change guarded by the version column and
// appends the history entry in the same transaction. The version check turns
// two admins racing on the same order into one winner and one conflict error
// instead of a silently lost update.
func (s *OrderStore) UpdateOrderStatus(ctx context.Context, params domain.UpdateOrderStatusParams) (*domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.Internal(err, "order.update_status", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    tracking_id = $2,
		    tracking_courier = $3,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $4 AND version = $5`,
		string(params.Status), params.TrackingID, params.TrackingCourier,
		params.OrderID, params.ExpectedVersion,
	)
	if err != nil {
		return nil, domain.Internal(err, "order.update_status", "failed to update order")
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing order from a stale version.
		var exists bool
		err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, params.OrderID).Scan(&exists)
		if err != nil {
			return nil, domain.Internal(err, "order.update_status", "failed to check order existence")
		}
		if !exists {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.ErrConcurrentUpdate
	}

	entry := params.History
	if err := insertHistoryEntry(ctx, tx, params.OrderID, &entry); err != nil {
		return nil, domain.Internal(err, "order.update_status", "failed to insert status history")
	}

	order, err := getOrder(ctx, tx, params.OrderID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, "order.update_status", "failed to commit transaction")
	}
	return order, nil
}
