package models

import "time"

// Event types
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderCompleted = "ORDER_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a pending order is persisted
type OrderCreatedEvent struct {
	BaseEvent
	OrderID         string `json:"order_id"`
	ProviderOrderID string `json:"provider_order_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// OrderCompletedEvent published when a captured payment completes an order
type OrderCompletedEvent struct {
	BaseEvent
	OrderID           string `json:"order_id"`
	ProviderOrderID   string `json:"provider_order_id"`
	ProviderPaymentID string `json:"provider_payment_id"`
}
