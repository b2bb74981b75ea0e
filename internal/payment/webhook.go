package payment

import (
	"encoding/json"
	"fmt"
)

// Webhook event types
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

// WebhookEvent is the envelope of a provider notification
type WebhookEvent struct {
	Entity    string         `json:"entity"`
	AccountID string         `json:"account_id,omitempty"`
	Event     string         `json:"event"`
	Contains  []string       `json:"contains,omitempty"`
	Payload   WebhookPayload `json:"payload"`
	CreatedAt int64          `json:"created_at,omitempty"`
}

type WebhookPayload struct {
	Payment *PaymentWrapper `json:"payment,omitempty"`
}

type PaymentWrapper struct {
	Entity PaymentEntity `json:"entity"`
}

// PaymentEntity is the payment object nested in a notification
type PaymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`
	Status   string `json:"status,omitempty"`
	Method   string `json:"method,omitempty"`
}

// ParseWebhookEvent decodes a verified notification body
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook event: %w", err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("failed to parse webhook event: missing event type")
	}
	return &event, nil
}

// Payment returns the nested payment entity, or nil when the event carries none
func (e *WebhookEvent) Payment() *PaymentEntity {
	if e.Payload.Payment == nil {
		return nil
	}
	return &e.Payload.Payment.Entity
}
