package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-service/internal/models"

	"github.com/lib/pq"
)

const orderColumns = `id, title, price, image, category, status,
	provider_order_id, provider_payment_id, created_at, updated_at`

const uniqueViolation = "23505"

// CreateOrder inserts a new order; id, status and timestamps are filled from the database
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}

	query := `
		INSERT INTO orders (title, price, image, category, status, provider_order_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, status, created_at, updated_at`

	err := s.db.GetContext(ctx, order, query,
		order.Title, order.Price, order.Image, order.Category, order.Status, order.ProviderOrderID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateProviderOrder, order.ProviderOrderID)
		}
		return err
	}
	return nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByProviderOrderID retrieves an order by the payment provider's order id
func (s *Store) GetOrderByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE provider_order_id = $1", providerOrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: provider order %s", ErrOrderNotFound, providerOrderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CompletePayment moves a pending order to completed in a single conditional
// update keyed by provider_order_id. applied is false when the order exists
// but was no longer pending; the current row is returned in that case.
func (s *Store) CompletePayment(ctx context.Context, providerOrderID, providerPaymentID string) (*models.Order, bool, error) {
	query := `
		UPDATE orders
		SET status = $1, provider_payment_id = $2, updated_at = NOW()
		WHERE provider_order_id = $3 AND status = $4
		RETURNING ` + orderColumns

	var order models.Order
	err := s.db.GetContext(ctx, &order, query,
		models.OrderStatusCompleted, providerPaymentID, providerOrderID, models.OrderStatusPending)
	if err == nil {
		return &order, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	current, err := s.GetOrderByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}
