package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront-service/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps orders in process memory. Used for tests and local runs
// with DATABASE_DRIVER=memory.
type MemoryStore struct {
	mu              sync.Mutex
	orders          map[string]*models.Order
	byProviderOrder map[string]string
	nowFunc         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:          make(map[string]*models.Order),
		byProviderOrder: make(map[string]string),
		nowFunc:         time.Now,
	}
}

func (m *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byProviderOrder[order.ProviderOrderID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProviderOrder, order.ProviderOrderID)
	}

	now := m.nowFunc().UTC()
	order.ID = uuid.NewString()
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	stored := *order
	m.orders[order.ID] = &stored
	m.byProviderOrder[order.ProviderOrderID] = order.ID
	return nil
}

func (m *MemoryStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return copyOrder(order), nil
}

func (m *MemoryStore) GetOrderByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byProviderOrder[providerOrderID]
	if !ok {
		return nil, fmt.Errorf("%w: provider order %s", ErrOrderNotFound, providerOrderID)
	}
	return copyOrder(m.orders[id]), nil
}

func (m *MemoryStore) CompletePayment(ctx context.Context, providerOrderID, providerPaymentID string) (*models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byProviderOrder[providerOrderID]
	if !ok {
		return nil, false, fmt.Errorf("%w: provider order %s", ErrOrderNotFound, providerOrderID)
	}

	order := m.orders[id]
	if order.Status != models.OrderStatusPending {
		return copyOrder(order), false, nil
	}

	paymentID := providerPaymentID
	order.Status = models.OrderStatusCompleted
	order.ProviderPaymentID = &paymentID
	order.UpdatedAt = m.nowFunc().UTC()
	return copyOrder(order), true, nil
}

// Count returns the number of stored orders
func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func copyOrder(o *models.Order) *models.Order {
	c := *o
	if o.ProviderPaymentID != nil {
		id := *o.ProviderPaymentID
		c.ProviderPaymentID = &id
	}
	return &c
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
