package worker

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

const statusCacheTTL = 24 * time.Hour

// StatusCache stores the latest known order status
type StatusCache interface {
	SetOrderStatus(ctx context.Context, orderID, status string, ttl time.Duration) error
}

// OrderStatusWorker keeps the order status cache in line with order events
type OrderStatusWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	cache        StatusCache
	logger       *zap.Logger
}

// NewOrderStatusWorker creates a new order status worker
func NewOrderStatusWorker(consumer *broker.Consumer, cache StatusCache) *OrderStatusWorker {
	w := &OrderStatusWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		cache:        cache,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnOrderCreated(w.HandleOrderCreated)
	w.eventHandler.OnOrderCompleted(w.HandleOrderCompleted)

	return w
}

// Start starts the worker
func (w *OrderStatusWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order status worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderStatusWorker) Stop() error {
	w.logger.Info("Stopping order status worker")
	return w.consumer.Close()
}

// HandleOrderCreated caches the pending status of a new order
func (w *OrderStatusWorker) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return w.setStatus(ctx, event.OrderID, models.OrderStatusPending)
}

// HandleOrderCompleted caches the completed status of an order
func (w *OrderStatusWorker) HandleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return w.setStatus(ctx, event.OrderID, models.OrderStatusCompleted)
}

func (w *OrderStatusWorker) setStatus(ctx context.Context, orderID, status string) error {
	if orderID == "" {
		w.logger.Warn("Order event without order id, skipping", zap.String("status", status))
		return nil
	}

	if err := w.cache.SetOrderStatus(ctx, orderID, status, statusCacheTTL); err != nil {
		return fmt.Errorf("failed to cache order status: %w", err)
	}

	w.logger.Debug("Order status cached",
		zap.String("order_id", orderID),
		zap.String("status", status))
	return nil
}
