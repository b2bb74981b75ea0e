package service

import (
	"errors"
	"regexp"

	"storefront-service/internal/payment"

	validatorv10 "github.com/go-playground/validator/v10"
)

var imageURLPattern = regexp.MustCompile(`^(https?|chrome)://[^\s$.?#].[^\s]*$`)

var (
	ErrMissingFields   = errors.New("missing required fields")
	ErrInvalidPrice    = errors.New("invalid price value")
	ErrInvalidImageURL = errors.New("invalid image URL")
)

// ValidationError reports a rejected purchase request. Err is one of
// ErrMissingFields, ErrInvalidPrice or ErrInvalidImageURL.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Message is the text shown to the shopper
func (e *ValidationError) Message() string {
	switch {
	case errors.Is(e.Err, ErrMissingFields):
		return "Missing required fields (title, price, image, category)"
	case errors.Is(e.Err, ErrInvalidPrice):
		return "Invalid price value"
	case errors.Is(e.Err, ErrInvalidImageURL):
		return "Invalid image URL"
	default:
		return e.Err.Error()
	}
}

func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	err := v.RegisterValidation("imageurl", func(fl validatorv10.FieldLevel) bool {
		return imageURLPattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic("service: register imageurl validation: " + err.Error())
	}
	return v
}

var requestValidator = newValidator()

// chargeable reports whether price converts to a storable, non-zero amount
func chargeable(price float64) bool {
	_, err := payment.ToMinorUnits(price)
	return err == nil
}

// validateOrderRequest checks presence first, then price, then image URL
func validateOrderRequest(req *CreateOrderRequest) error {
	err := requestValidator.Struct(req)
	if err == nil {
		if !chargeable(req.Price) {
			return &ValidationError{Err: ErrInvalidPrice}
		}
		return nil
	}

	var fieldErrs validatorv10.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Err: ErrMissingFields}
	}

	var badPrice, badImage bool
	for _, fe := range fieldErrs {
		switch {
		case fe.Tag() == "required":
			return &ValidationError{Err: ErrMissingFields}
		case fe.Field() == "Price":
			badPrice = true
		case fe.Field() == "Image":
			badImage = true
		}
	}

	if badPrice || !chargeable(req.Price) {
		return &ValidationError{Err: ErrInvalidPrice}
	}
	if badImage {
		return &ValidationError{Err: ErrInvalidImageURL}
	}
	return &ValidationError{Err: ErrMissingFields}
}
