package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPaid      OrderStatus = "PAID"
	StatusCompleted OrderStatus = "COMPLETED"
	StatusDelivered OrderStatus = "DELIVERED"
)

// stage orders the lifecycle; COMPLETED and DELIVERED are both terminal.
var stage = map[OrderStatus]int{
	StatusPending:   0,
	StatusPaid:      1,
	StatusCompleted: 2,
	StatusDelivered: 2,
}

func (s OrderStatus) Valid() bool {
	_, ok := stage[s]
	return ok
}

// CanTransitionTo reports whether next is a forward move from s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	from, ok := stage[s]
	if !ok {
		return false
	}
	to, ok := stage[next]
	if !ok {
		return false
	}
	return to == from+1
}

var lifecycle = []OrderStatus{StatusPending, StatusPaid, StatusCompleted, StatusDelivered}

// sourcesOf lists the statuses that move to next in one step.
func sourcesOf(next OrderStatus) []string {
	var out []string
	for _, s := range lifecycle {
		if s.CanTransitionTo(next) {
			out = append(out, string(s))
		}
	}
	return out
}

type Order struct {
	ID          uuid.UUID
	OrderNumber string
	UserID      *uint

	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	ShippingStreet string
	ShippingCity   string
	ShippingZip    string
	DeliveryDate   *time.Time

	Total  decimal.Decimal
	Status OrderStatus

	StripeSessionID *string
	PaymentIntentID *string
	PaidAt          *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Items []OrderItem
}

// OrderItem snapshots the meal price at order time.
type OrderItem struct {
	ID        int64
	OrderID   uuid.UUID
	MealID    string
	MealName  string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (o *Order) TotalQuantity() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

func (o *Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

type ItemInput struct {
	MealID    string
	MealName  string
	Quantity  int
	UnitPrice decimal.Decimal
}

// CreateOrderInput is the validated shape of a checkout request.
type CreateOrderInput struct {
	UserID *uint

	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	ShippingStreet string
	ShippingCity   string
	ShippingZip    string
	DeliveryDate   *time.Time

	Items []ItemInput
	Total decimal.Decimal

	VerificationToken string
	RemoteIP          string
}

func (in CreateOrderInput) TotalQuantity() int {
	n := 0
	for _, it := range in.Items {
		n += it.Quantity
	}
	return n
}

// PaymentConfirmation is the business content of a checkout-completed event.
type PaymentConfirmation struct {
	OrderID         string
	SessionID       string
	PaymentIntentID string
	AmountTotal     int64
	EventID         string
}

// Outcome records how one best-effort side effect went.
type Outcome struct {
	Name     string
	Skipped  bool
	Err      error
	Duration time.Duration
}

func (o Outcome) OK() bool {
	return !o.Skipped && o.Err == nil
}

type ConfirmationResult struct {
	OrderID      uuid.UUID
	Transitioned bool

	Delivery     Outcome
	Notification Outcome
	Accounting   Outcome
}
