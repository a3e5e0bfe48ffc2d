package postgres

import (
	"context"
	"errors"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProductStore implements domain.ProductStore using PostgreSQL.
type ProductStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that ProductStore implements domain.ProductStore.
var _ domain.ProductStore = (*ProductStore)(nil)

// NewProductStore creates a new PostgreSQL-backed product store.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// GetProduct loads a product by ID.
func (s *ProductStore) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, sku, price_cents, active, created_at, updated_at
		FROM products
		WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.SKU, &p.PriceCents, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.Internal(err, "product.get", "failed to get product")
	}
	return &p, nil
}

// GetProducts fetches a batch of products by ID. Missing products are absent
// from the result map.
func (s *ProductStore) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Product, error) {
	products := make(map[uuid.UUID]domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, sku, price_cents, active, created_at, updated_at
		FROM products
		WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, domain.Internal(err, "product.get_batch", "failed to get products")
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.PriceCents, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, domain.Internal(err, "product.get_batch", "failed to scan product")
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "product.get_batch", "failed to read products")
	}
	return products, nil
}

// CreateProduct inserts a catalog record and fills ID and timestamps.
func (s *ProductStore) CreateProduct(ctx context.Context, product *domain.Product) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (name, sku, price_cents, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		product.Name, product.SKU, product.PriceCents, product.Active,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return domain.Internal(err, "product.create", "failed to insert product")
	}
	return nil
}

// ListProducts returns catalog records, optionally restricted to active ones.
func (s *ProductStore) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	query := `
		SELECT id, name, sku, price_cents, active, created_at, updated_at
		FROM products`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, domain.Internal(err, "product.list", "failed to list products")
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.PriceCents, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, domain.Internal(err, "product.list", "failed to scan product")
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "product.list", "failed to read products")
	}
	return products, nil
}
