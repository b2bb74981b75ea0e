package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderRepository persists orders
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	CompletePayment(ctx context.Context, providerOrderID, providerPaymentID string) (*models.Order, bool, error)
}

// EventPublisher publishes order domain events
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
}

// StatusCache reads cached order statuses
type StatusCache interface {
	GetOrderStatus(ctx context.Context, orderID string) (string, bool, error)
}

// OrderService creates payment intents and the pending orders that track them
type OrderService struct {
	repo          OrderRepository
	provider      payment.Provider
	publisher     EventPublisher
	statusCache   StatusCache
	currency      string
	receiptPrefix string
	nowFunc       func() time.Time
	logger        *zap.Logger
}

// OrderServiceConfig holds the payment settings of an OrderService
type OrderServiceConfig struct {
	Currency      string
	ReceiptPrefix string
	StatusCache   StatusCache
}

// NewOrderService creates a new order service
func NewOrderService(
	repo OrderRepository,
	provider payment.Provider,
	publisher EventPublisher,
	cfg OrderServiceConfig,
) *OrderService {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.ReceiptPrefix == "" {
		cfg.ReceiptPrefix = "receipt_"
	}

	return &OrderService{
		repo:          repo,
		provider:      provider,
		publisher:     publisher,
		statusCache:   cfg.StatusCache,
		currency:      cfg.Currency,
		receiptPrefix: cfg.ReceiptPrefix,
		nowFunc:       time.Now,
		logger:        util.GetLogger(),
	}
}

// CreateOrderRequest is a shopper's purchase request for a single product
type CreateOrderRequest struct {
	Title    string  `json:"title" validate:"required"`
	Price    float64 `json:"price" validate:"required,gt=0"`
	Image    string  `json:"image" validate:"required,imageurl"`
	Category string  `json:"category" validate:"required"`
}

// CreateOrderResponse carries what the client needs to open the checkout widget
type CreateOrderResponse struct {
	Order           *payment.Intent `json:"order"`
	OrderID         string          `json:"orderId"`
	ProviderOrderID string          `json:"providerOrderId"`
}

// CreateOrder validates the request, opens a payment intent for the request
// price and persists a pending order referencing it
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := validateOrderRequest(req); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		}
		return nil, err
	}

	amount, err := payment.ToMinorUnits(req.Price)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, &ValidationError{Err: ErrInvalidPrice}
	}

	intent, err := s.createIntent(ctx, req, amount)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("provider_error").Inc()
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	order := &models.Order{
		Title:           req.Title,
		Price:           req.Price,
		Image:           req.Image,
		Category:        req.Category,
		Status:          models.OrderStatusPending,
		ProviderOrderID: intent.ID,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		s.logger.Error("Payment intent created but order not persisted",
			zap.String("provider_order_id", intent.ID),
			zap.Int64("amount", amount),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("provider_order_id", order.ProviderOrderID),
		zap.Int64("amount", amount))

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: s.nowFunc(),
		},
		OrderID:         order.ID,
		ProviderOrderID: order.ProviderOrderID,
		Amount:          amount,
		Currency:        s.currency,
	}

	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return &CreateOrderResponse{
		Order:           intent,
		OrderID:         order.ID,
		ProviderOrderID: intent.ID,
	}, nil
}

func (s *OrderService) createIntent(ctx context.Context, req *CreateOrderRequest, amount int64) (*payment.Intent, error) {
	start := time.Now()
	defer func() {
		util.PaymentIntentLatency.Observe(time.Since(start).Seconds())
	}()

	intent, err := s.provider.CreateIntent(ctx, payment.IntentRequest{
		Amount:   amount,
		Currency: s.currency,
		Receipt:  fmt.Sprintf("%s%d", s.receiptPrefix, s.nowFunc().UnixMilli()),
		Notes: map[string]string{
			"title":    req.Title,
			"price":    strconv.FormatFloat(req.Price, 'f', -1, 64),
			"image":    req.Image,
			"category": req.Category,
		},
	})
	if err != nil {
		util.PaymentIntentFailedTotal.Inc()
		return nil, err
	}
	if intent == nil || intent.ID == "" {
		util.PaymentIntentFailedTotal.Inc()
		return nil, errors.New("provider returned an intent without id")
	}

	return intent, nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	return s.repo.GetOrderByID(ctx, orderID)
}

// GetOrderStatus returns the order status. Only the terminal completed status
// is served from the cache; anything else is read from the store.
func (s *OrderService) GetOrderStatus(ctx context.Context, orderID string) (string, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrderStatus")
	defer span.End()

	if s.statusCache != nil {
		status, found, err := s.statusCache.GetOrderStatus(ctx, orderID)
		if err != nil {
			s.logger.Warn("Order status cache read failed", zap.String("order_id", orderID), zap.Error(err))
		}
		if found && status == models.OrderStatusCompleted {
			return status, nil
		}
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	return order.Status, nil
}
