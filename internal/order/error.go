package order

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrMissingOrderID       = errors.New("order id is missing")
	ErrInvalidOrderID       = errors.New("order id is invalid")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrOrderNumberExhausted = errors.New("could not allocate a unique order number, please retry")
)

type ErrorKind string

const (
	KindInvalidRequest ErrorKind = "invalid_request"
	KindDeliveryZone   ErrorKind = "delivery_zone"
	KindMinimumOrder   ErrorKind = "minimum_order"
	KindSecurityCheck  ErrorKind = "security_check"
)

// ValidationError is a business-policy rejection; nothing was written.
type ValidationError struct {
	Kind    ErrorKind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newValidationError(kind ErrorKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
