package payment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const ProviderStripe = "STRIPE"

// Event types the confirmation pipeline reacts to.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

const (
	checkoutPaymentStatusUnpaid = "unpaid"
	checkoutMetadataOrderID     = "orderId"
	checkoutMetadataOrderNumber = "orderNumber"
)

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrGatewayDisabled  = errors.New("payment gateway is not configured")
)

type LineItem struct {
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
}

type CheckoutRequest struct {
	OrderID       string
	OrderNumber   string
	CustomerEmail string
	Items         []LineItem
	SuccessURL    string
	CancelURL     string
}

type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// Event is a verified gateway notification reduced to what the order
// pipeline needs. Raw keeps the original body for the event ledger.
type Event struct {
	ID              string
	Type            string
	OrderID         string
	SessionID       string
	PaymentIntentID string
	PaymentStatus   string
	AmountTotal     int64
	Raw             json.RawMessage
}

// ConfirmsPayment reports whether the event means the customer has paid.
func (e *Event) ConfirmsPayment() bool {
	switch e.Type {
	case EventCheckoutCompleted:
		return e.PaymentStatus != checkoutPaymentStatusUnpaid
	case EventAsyncPaymentSucceeded:
		return true
	}
	return false
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// VerifyWebhook authenticates the raw body against the signature header.
	// Any failure is reported as ErrInvalidSignature.
	VerifyWebhook(payload []byte, signature string) (*Event, error)
}
