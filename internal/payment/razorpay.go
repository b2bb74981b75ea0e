package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

// orderAPI is the subset of the razorpay-go Orders resource we call
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayProvider creates payment intents as Razorpay orders
type RazorpayProvider struct {
	orders orderAPI
}

// NewRazorpayProvider creates a provider backed by the Razorpay API
func NewRazorpayProvider(keyID, keySecret string) *RazorpayProvider {
	client := razorpay.NewClient(keyID, keySecret)
	return &RazorpayProvider{orders: client.Order}
}

func newRazorpayProviderWithAPI(api orderAPI) *RazorpayProvider {
	return &RazorpayProvider{orders: api}
}

// CreateIntent creates a Razorpay order for the requested amount
func (p *RazorpayProvider) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}

	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}

	body, err := p.orders.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order create failed: %w", err)
	}

	intent, err := decodeIntent(body)
	if err != nil {
		return nil, err
	}
	if intent.ID == "" {
		return nil, errors.New("razorpay order create returned no id")
	}

	return intent, nil
}

// decodeIntent maps the loosely typed SDK response onto Intent. Note values
// may come back as numbers, so they are stringified individually.
func decodeIntent(body map[string]interface{}) (*Intent, error) {
	rawNotes := body["notes"]
	delete(body, "notes")

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode razorpay response: %w", err)
	}

	var intent Intent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode razorpay response: %w", err)
	}

	if notes, ok := rawNotes.(map[string]interface{}); ok {
		intent.Notes = make(map[string]string, len(notes))
		for k, v := range notes {
			intent.Notes[k] = fmt.Sprint(v)
		}
	}

	return &intent, nil
}
