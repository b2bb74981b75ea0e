package payment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// IntentRequest carries what the provider needs to open a payment intent
type IntentRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Intent is the provider-side payment order returned to the storefront client
type Intent struct {
	ID         string            `json:"id"`
	Entity     string            `json:"entity,omitempty"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	AmountDue  int64             `json:"amount_due"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt,omitempty"`
	Status     string            `json:"status,omitempty"`
	Attempts   int               `json:"attempts"`
	Notes      map[string]string `json:"notes,omitempty"`
	CreatedAt  int64             `json:"created_at,omitempty"`
}

// Provider abstracts the payment gateway
type Provider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

var ErrInvalidAmount = errors.New("amount must be a positive finite number within the chargeable range")

// MaxMinorUnits is the largest amount the orders table can hold, NUMERIC(12,2)
const MaxMinorUnits int64 = 999_999_999_999

var maxMinorUnits = decimal.NewFromInt(MaxMinorUnits)

// ToMinorUnits converts a base-currency amount to minor units, rounding half
// away from zero. The result is always in [1, MaxMinorUnits].
func ToMinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}

	minor := decimal.NewFromFloat(amount).Shift(2).Round(0)
	if minor.LessThan(decimal.NewFromInt(1)) || minor.GreaterThan(maxMinorUnits) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return minor.IntPart(), nil
}
