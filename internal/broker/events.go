package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderCompleted publishes OrderCompleted event
func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

func orderKey(orderID string) string {
	return fmt.Sprintf("order-%s", orderID)
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(context.Context, *models.OrderCreatedEvent) error {
	return nil
}

func (NopPublisher) PublishOrderCompleted(context.Context, *models.OrderCompletedEvent) error {
	return nil
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderCreated   func(context.Context, *models.OrderCreatedEvent) error
	onOrderCompleted func(context.Context, *models.OrderCompletedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// OnOrderCompleted registers a handler for OrderCompleted events
func (eh *EventHandler) OnOrderCompleted(handler func(context.Context, *models.OrderCompletedEvent) error) {
	eh.onOrderCompleted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated:
		if eh.onOrderCreated != nil {
			var event models.OrderCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCreated event: %w", err)
			}
			return eh.onOrderCreated(ctx, &event)
		}

	case models.EventTypeOrderCompleted:
		if eh.onOrderCompleted != nil {
			var event models.OrderCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCompleted event: %w", err)
			}
			return eh.onOrderCompleted(ctx, &event)
		}

	default:
		eh.logger.Info("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
