package models

import "time"

// Order represents a single purchase attempt
type Order struct {
	ID                string    `db:"id" json:"id"`
	Title             string    `db:"title" json:"title"`
	Price             float64   `db:"price" json:"price"`
	Image             string    `db:"image" json:"image"`
	Category          string    `db:"category" json:"category"`
	Status            string    `db:"status" json:"status"`
	ProviderOrderID   string    `db:"provider_order_id" json:"provider_order_id"`
	ProviderPaymentID *string   `db:"provider_payment_id" json:"provider_payment_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Product represents a catalog entry served by the upstream catalog API
type Product struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Rating      *Rating `json:"rating,omitempty"`
}

// Rating is the aggregated review score of a product
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
)
