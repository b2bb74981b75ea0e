package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reconciliation outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeReplayed  = "replayed"
	OutcomeUnmatched = "unmatched"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
)

var ErrMalformedEvent = errors.New("malformed webhook event")

const completedStatusTTL = 24 * time.Hour

// EventDeduper remembers processed notification ids
type EventDeduper interface {
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StatusWriter records the latest order status for the status endpoint
type StatusWriter interface {
	SetOrderStatus(ctx context.Context, orderID, status string, ttl time.Duration) error
}

// Notification is a raw webhook delivery from the payment provider
type Notification struct {
	Body      []byte
	Signature string
	EventID   string
}

// ReconcileResult describes what a verified notification did
type ReconcileResult struct {
	Event   string
	Outcome string
	OrderID string
}

// ReconciliationService applies verified provider notifications to orders
type ReconciliationService struct {
	repo      OrderRepository
	publisher EventPublisher
	deduper   EventDeduper
	statuses  StatusWriter
	secret    string
	dedupeTTL time.Duration
	nowFunc   func() time.Time
	logger    *zap.Logger
}

// NewReconciliationService creates a reconciliation service. deduper and
// statuses may be nil.
func NewReconciliationService(
	repo OrderRepository,
	publisher EventPublisher,
	deduper EventDeduper,
	statuses StatusWriter,
	webhookSecret string,
	dedupeTTL time.Duration,
) *ReconciliationService {
	return &ReconciliationService{
		repo:      repo,
		publisher: publisher,
		deduper:   deduper,
		statuses:  statuses,
		secret:    webhookSecret,
		dedupeTTL: dedupeTTL,
		nowFunc:   time.Now,
		logger:    util.GetLogger(),
	}
}

// HandleWebhook verifies and applies a notification. Signature failures
// return payment.ErrMissingSignature or payment.ErrInvalidSignature and
// never touch the store.
func (s *ReconciliationService) HandleWebhook(ctx context.Context, n Notification) (*ReconcileResult, error) {
	ctx, span := util.StartSpan(ctx, "ReconciliationService.HandleWebhook")
	defer span.End()

	if err := payment.VerifySignature(s.secret, n.Body, n.Signature); err != nil {
		reason := "invalid"
		if errors.Is(err, payment.ErrMissingSignature) {
			reason = "missing"
		}
		util.WebhookSignatureFailuresTotal.WithLabelValues(reason).Inc()
		s.logger.Warn("Webhook signature rejected",
			zap.String("reason", reason),
			zap.String("event_id", n.EventID),
			zap.Int("body_size", len(n.Body)))
		return nil, err
	}

	event, err := payment.ParseWebhookEvent(n.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	util.WebhooksReceivedTotal.WithLabelValues(event.Event).Inc()

	if s.alreadyProcessed(ctx, n.EventID) {
		s.logger.Info("Duplicate webhook delivery",
			zap.String("event_id", n.EventID),
			zap.String("event", event.Event))
		return &ReconcileResult{Event: event.Event, Outcome: OutcomeDuplicate}, nil
	}

	var result *ReconcileResult
	switch event.Event {
	case payment.EventPaymentCaptured:
		result, err = s.handlePaymentCaptured(ctx, event, n.EventID)
		if err != nil {
			return nil, err
		}
	default:
		s.logger.Info("Webhook event acknowledged without action", zap.String("event", event.Event))
		result = &ReconcileResult{Event: event.Event, Outcome: OutcomeIgnored}
	}

	s.markProcessed(ctx, n.EventID, result.Outcome)
	return result, nil
}

func (s *ReconciliationService) handlePaymentCaptured(ctx context.Context, event *payment.WebhookEvent, eventID string) (*ReconcileResult, error) {
	entity := event.Payment()
	if entity == nil || entity.OrderID == "" || entity.ID == "" {
		util.ReconcileAnomaliesTotal.WithLabelValues("missing_payment").Inc()
		s.logger.Error("payment.captured without payment entity", zap.String("event_id", eventID))
		return &ReconcileResult{Event: event.Event, Outcome: OutcomeUnmatched}, nil
	}

	order, applied, err := s.repo.CompletePayment(ctx, entity.OrderID, entity.ID)
	if errors.Is(err, store.ErrOrderNotFound) {
		util.ReconcileAnomaliesTotal.WithLabelValues("unknown_order").Inc()
		s.logger.Error("Captured payment matches no order",
			zap.String("event_id", eventID),
			zap.String("provider_order_id", entity.OrderID),
			zap.String("provider_payment_id", entity.ID))
		return &ReconcileResult{Event: event.Event, Outcome: OutcomeUnmatched}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete order: %w", err)
	}

	if !applied {
		if order.ProviderPaymentID == nil || *order.ProviderPaymentID != entity.ID {
			util.ReconcileAnomaliesTotal.WithLabelValues("conflicting_payment").Inc()
		}
		if order.Status == models.OrderStatusCompleted {
			s.cacheCompleted(ctx, order.ID)
		}
		s.logger.Info("Order already settled, notification replayed",
			zap.String("event_id", eventID),
			zap.String("order_id", order.ID),
			zap.String("status", order.Status),
			zap.String("provider_payment_id", entity.ID))
		return &ReconcileResult{Event: event.Event, Outcome: OutcomeReplayed, OrderID: order.ID}, nil
	}

	util.OrdersCompletedTotal.Inc()
	s.cacheCompleted(ctx, order.ID)
	s.logger.Info("Payment captured for order",
		zap.String("order_id", order.ID),
		zap.String("provider_order_id", entity.OrderID),
		zap.String("provider_payment_id", entity.ID))

	completed := &models.OrderCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCompleted,
			Timestamp: s.nowFunc(),
		},
		OrderID:           order.ID,
		ProviderOrderID:   entity.OrderID,
		ProviderPaymentID: entity.ID,
	}
	if err := s.publisher.PublishOrderCompleted(ctx, completed); err != nil {
		s.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}

	return &ReconcileResult{Event: event.Event, Outcome: OutcomeCompleted, OrderID: order.ID}, nil
}

func (s *ReconciliationService) cacheCompleted(ctx context.Context, orderID string) {
	if s.statuses == nil {
		return
	}

	if err := s.statuses.SetOrderStatus(ctx, orderID, models.OrderStatusCompleted, completedStatusTTL); err != nil {
		s.logger.Warn("Failed to cache order status", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *ReconciliationService) alreadyProcessed(ctx context.Context, eventID string) bool {
	if s.deduper == nil || eventID == "" {
		return false
	}

	seen, err := s.deduper.CheckIdempotencyKey(ctx, webhookKey(eventID))
	if err != nil {
		s.logger.Warn("Webhook dedupe check failed", zap.String("event_id", eventID), zap.Error(err))
		return false
	}
	return seen
}

func (s *ReconciliationService) markProcessed(ctx context.Context, eventID, outcome string) {
	if s.deduper == nil || eventID == "" {
		return
	}

	if err := s.deduper.SetIdempotencyKey(ctx, webhookKey(eventID), outcome, s.dedupeTTL); err != nil {
		s.logger.Warn("Failed to record webhook event", zap.String("event_id", eventID), zap.Error(err))
	}
}

func webhookKey(eventID string) string {
	return "webhook:" + eventID
}
