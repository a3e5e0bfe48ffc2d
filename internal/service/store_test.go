package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/google/uuid"
)

// memOrderStore is an in-memory domain.OrderStore with the same version
// semantics as the PostgreSQL implementation.
type memOrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order

	// failUpdates forces UpdateOrderStatus to fail, for persistence
	// failure scenarios.
	failUpdates error
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[uuid.UUID]*domain.Order)}
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	c.StatusHistory = append([]domain.StatusHistoryEntry(nil), o.StatusHistory...)
	return &c
}

func (s *memOrderStore) CreateOrder(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order.ID = uuid.New()
	order.Version = 1
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt
	for i := range order.StatusHistory {
		order.StatusHistory[i].ChangedAt = order.CreatedAt
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *memOrderStore) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (s *memOrderStore) ListOrders(_ context.Context, filter domain.ListOrdersFilter) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Order
	for _, order := range s.orders {
		if filter.UserID != nil && order.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		out = append(out, *cloneOrder(order))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memOrderStore) UpdateOrderStatus(_ context.Context, params domain.UpdateOrderStatusParams) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUpdates != nil {
		return nil, s.failUpdates
	}

	order, ok := s.orders[params.OrderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if order.Version != params.ExpectedVersion {
		return nil, domain.ErrConcurrentUpdate
	}

	order.Status = params.Status
	order.TrackingID = params.TrackingID
	order.TrackingCourier = params.TrackingCourier
	order.Version++
	order.UpdatedAt = time.Now().UTC()

	entry := params.History
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = order.UpdatedAt
	}
	order.StatusHistory = append(order.StatusHistory, entry)
	return cloneOrder(order), nil
}

// memPaymentStore is an in-memory domain.PaymentStore.
type memPaymentStore struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*domain.Payment
}

func newMemPaymentStore() *memPaymentStore {
	return &memPaymentStore{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (s *memPaymentStore) CreatePayment(_ context.Context, payment *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment.ID = uuid.New()
	payment.CreatedAt = time.Now().UTC()
	payment.UpdatedAt = payment.CreatedAt
	clone := *payment
	s.payments[payment.ID] = &clone
	return nil
}

func (s *memPaymentStore) GetPayment(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	clone := *payment
	return &clone, nil
}

func (s *memPaymentStore) GetPaymentByOrder(_ context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *domain.Payment
	for _, payment := range s.payments {
		if payment.OrderID != orderID {
			continue
		}
		if latest == nil || payment.CreatedAt.After(latest.CreatedAt) {
			latest = payment
		}
	}
	if latest == nil {
		return nil, domain.ErrPaymentNotFound
	}
	clone := *latest
	return &clone, nil
}

func (s *memPaymentStore) MarkPaymentCompleted(_ context.Context, id uuid.UUID, gatewayPaymentID, gatewaySignature string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	payment.Status = domain.PaymentCompleted
	payment.GatewayPaymentID = gatewayPaymentID
	payment.GatewaySignature = gatewaySignature
	payment.UpdatedAt = time.Now().UTC()
	clone := *payment
	return &clone, nil
}

func (s *memPaymentStore) MarkPaymentRefunded(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	now := time.Now().UTC()
	payment.Status = domain.PaymentRefunded
	payment.RefundDate = &now
	payment.UpdatedAt = now
	clone := *payment
	return &clone, nil
}

// memProductStore is an in-memory domain.ProductStore.
type memProductStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]domain.Product
}

func newMemProductStore() *memProductStore {
	return &memProductStore{products: make(map[uuid.UUID]domain.Product)}
}

func (s *memProductStore) add(name string, priceCents int64) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.products[id] = domain.Product{
		ID:         id,
		Name:       name,
		SKU:        name,
		PriceCents: priceCents,
		Active:     true,
	}
	return id
}

func (s *memProductStore) GetProduct(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &product, nil
}

func (s *memProductStore) GetProducts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[uuid.UUID]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			out[id] = product
		}
	}
	return out, nil
}

func (s *memProductStore) CreateProduct(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.ID = uuid.New()
	s.products[product.ID] = *product
	return nil
}

func (s *memProductStore) ListProducts(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Product
	for _, product := range s.products {
		if activeOnly && !product.Active {
			continue
		}
		out = append(out, product)
	}
	return out, nil
}
