package order

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"lmp-be/internal/logger"
	"lmp-be/internal/metrics"
	"lmp-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMinOrderQuantity = 10
	maxOrderNumberAttempts  = 3
	// MaxItemQuantity caps a single line; larger values are rejected
	// before the quantities are summed.
	MaxItemQuantity = 1000
)

type ZoneChecker interface {
	IsServiceable(zip string) bool
}

type TokenVerifier interface {
	Enabled() bool
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

type DeliveryMaterializer interface {
	MaterializeForOrder(ctx context.Context, orderID uuid.UUID) (int, error)
}

type ConfirmationNotifier interface {
	SendOrderConfirmation(ctx context.Context, o *Order) error
}

type AccountingSyncer interface {
	SyncOrder(ctx context.Context, orderID uuid.UUID) error
}

// Dependencies wires the collaborators of the order service. Zones is
// required; the side-effect collaborators may be nil and are then skipped.
type Dependencies struct {
	Zones            ZoneChecker
	Verifier         TokenVerifier
	MinOrderQuantity int

	Deliveries DeliveryMaterializer
	Notifier   ConfirmationNotifier
	Accounting AccountingSyncer

	Metrics *metrics.Pipeline

	NewOrderNumber func() string
}

type Service interface {
	CreatePendingOrder(ctx context.Context, in CreateOrderInput) (*Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	ConfirmPayment(ctx context.Context, in PaymentConfirmation) (*ConfirmationResult, error)
}

type service struct {
	repo Repository
	deps Dependencies
}

func NewService(repo Repository, deps Dependencies) Service {
	if deps.MinOrderQuantity <= 0 {
		deps.MinOrderQuantity = DefaultMinOrderQuantity
	}
	if deps.NewOrderNumber == nil {
		deps.NewOrderNumber = utils.GenerateOrderNumber
	}
	return &service{repo: repo, deps: deps}
}

func (s *service) CreatePendingOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreatePendingOrder"),
		zap.Int("item_count", len(in.Items)),
		zap.String("zip", in.ShippingZip),
	)

	log.Info("create pending order started")

	if err := s.validate(ctx, in); err != nil {
		s.deps.Metrics.OrderRejected()
		if ve, ok := AsValidationError(err); ok {
			log.Info("order rejected", zap.String("kind", string(ve.Kind)), zap.String("reason", ve.Message))
		}
		return nil, err
	}

	o := newPendingOrder(in)
	if sum := o.ItemsTotal(); !sum.Equal(o.Total) {
		// Accepted as submitted; reconciled by accounting.
		log.Warn("order total differs from item subtotals",
			zap.String("total", o.Total.StringFixed(2)),
			zap.String("items_total", sum.StringFixed(2)),
		)
	}

	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		o.OrderNumber = s.deps.NewOrderNumber()

		err := s.repo.CreatePendingOrder(ctx, o)
		if err == nil {
			s.deps.Metrics.OrderCreated()
			log.Info("pending order created",
				zap.String("order_id", o.ID.String()),
				zap.String("order_number", o.OrderNumber),
				zap.Int("attempt", attempt),
			)
			return o, nil
		}

		if !errors.Is(err, ErrDuplicateOrderNumber) {
			log.Error("failed to persist pending order", zap.Error(err))
			return nil, err
		}

		s.deps.Metrics.OrderNumberCollision()
		log.Warn("order number collision, regenerating",
			zap.String("order_number", o.OrderNumber),
			zap.Int("attempt", attempt),
		)
	}

	return nil, ErrOrderNumberExhausted
}

// validate runs the shape checks and then the business policy in order:
// zone, minimum quantity, anti-automation token.
func (s *service) validate(ctx context.Context, in CreateOrderInput) error {
	if err := validateShape(in); err != nil {
		return err
	}

	if !s.deps.Zones.IsServiceable(in.ShippingZip) {
		return newValidationError(KindDeliveryZone, "we do not deliver to zip code %s yet", strings.TrimSpace(in.ShippingZip))
	}

	if qty := in.TotalQuantity(); qty < s.deps.MinOrderQuantity {
		return newValidationError(KindMinimumOrder, "minimum order is %d meals, got %d", s.deps.MinOrderQuantity, qty)
	}

	return s.checkToken(ctx, in)
}

func (s *service) checkToken(ctx context.Context, in CreateOrderInput) error {
	token := strings.TrimSpace(in.VerificationToken)
	if token == "" {
		return nil
	}

	if s.deps.Verifier == nil || !s.deps.Verifier.Enabled() {
		logger.FromCtx(ctx).Debug("verification token supplied but verifier is not configured")
		return nil
	}

	ok, err := s.deps.Verifier.Verify(ctx, token, in.RemoteIP)
	if err != nil {
		logger.FromCtx(ctx).Warn("verification service call failed", zap.Error(err))
		return newValidationError(KindSecurityCheck, "security check failed, please try again")
	}
	if !ok {
		return newValidationError(KindSecurityCheck, "security check failed, please try again")
	}
	return nil
}

func validateShape(in CreateOrderInput) error {
	switch {
	case strings.TrimSpace(in.CustomerName) == "":
		return newValidationError(KindInvalidRequest, "name is required")
	case strings.TrimSpace(in.CustomerEmail) == "":
		return newValidationError(KindInvalidRequest, "email is required")
	case strings.TrimSpace(in.ShippingStreet) == "":
		return newValidationError(KindInvalidRequest, "street address is required")
	case strings.TrimSpace(in.ShippingCity) == "":
		return newValidationError(KindInvalidRequest, "city is required")
	case len(in.Items) == 0:
		return newValidationError(KindInvalidRequest, "order has no items")
	case in.Total.IsNegative():
		return newValidationError(KindInvalidRequest, "total must not be negative")
	}

	if _, err := mail.ParseAddress(strings.TrimSpace(in.CustomerEmail)); err != nil {
		return newValidationError(KindInvalidRequest, "email is invalid")
	}

	for i, it := range in.Items {
		if strings.TrimSpace(it.MealID) == "" {
			return newValidationError(KindInvalidRequest, "item %d has no meal id", i)
		}
		if it.Quantity <= 0 {
			return newValidationError(KindInvalidRequest, "item %d quantity must be greater than zero", i)
		}
		if it.Quantity > MaxItemQuantity {
			return newValidationError(KindInvalidRequest, "item %d quantity must not exceed %d", i, MaxItemQuantity)
		}
		if it.UnitPrice.IsNegative() {
			return newValidationError(KindInvalidRequest, "item %d price must not be negative", i)
		}
	}
	return nil
}

func newPendingOrder(in CreateOrderInput) *Order {
	o := &Order{
		ID:             uuid.New(),
		UserID:         in.UserID,
		CustomerName:   strings.TrimSpace(in.CustomerName),
		CustomerEmail:  strings.TrimSpace(in.CustomerEmail),
		CustomerPhone:  strings.TrimSpace(in.CustomerPhone),
		ShippingStreet: strings.TrimSpace(in.ShippingStreet),
		ShippingCity:   strings.TrimSpace(in.ShippingCity),
		ShippingZip:    strings.TrimSpace(in.ShippingZip),
		DeliveryDate:   in.DeliveryDate,
		Total:          in.Total,
		Status:         StatusPending,
		Items:          make([]OrderItem, 0, len(in.Items)),
	}

	for _, it := range in.Items {
		o.Items = append(o.Items, OrderItem{
			MealID:    strings.TrimSpace(it.MealID),
			MealName:  strings.TrimSpace(it.MealName),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return o
}

func (s *service) GetOrder(ctx context.Context, id string) (*Order, error) {
	orderID, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.GetOrderByID(ctx, orderID)
}

func parseOrderID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, ErrMissingOrderID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidOrderID
	}
	return id, nil
}

// ConfirmPayment marks the order PAID and then runs the downstream effects.
// Only the status update can fail the call; effect failures are reported in
// the result.
func (s *service) ConfirmPayment(ctx context.Context, in PaymentConfirmation) (*ConfirmationResult, error) {
	orderID, err := parseOrderID(in.OrderID)
	if err != nil {
		logger.FromCtx(ctx).Warn("payment confirmation without usable order id",
			zap.String("raw_order_id", in.OrderID),
			zap.String("event_id", in.EventID),
		)
		return nil, err
	}

	ctx = logger.WithOrderID(ctx, orderID.String())
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ConfirmPayment"),
		zap.String("event_id", in.EventID),
		zap.String("session_id", in.SessionID),
	)

	transitioned, err := s.repo.MarkAsPaid(ctx, orderID, PaymentReference{
		SessionID:       in.SessionID,
		PaymentIntentID: in.PaymentIntentID,
	})
	if errors.Is(err, ErrOrderNotFound) {
		log.Error("payment confirmed for unknown order")
		return nil, err
	}
	if err != nil {
		log.Error("failed to mark order as paid", zap.Error(err))
		return nil, err
	}

	result := &ConfirmationResult{OrderID: orderID, Transitioned: transitioned}

	if transitioned {
		s.deps.Metrics.PaymentConfirmed()
		log.Info("order marked as PAID")
	} else {
		s.deps.Metrics.DuplicateConfirmation()
		log.Info("order already confirmed, skipping notification and accounting")
	}

	// The paid order is loaded once for the amount check and the
	// confirmation message; a failed load only affects the notification.
	var (
		paid    *Order
		loadErr error
	)
	if transitioned {
		paid, loadErr = s.repo.GetOrderByID(ctx, orderID)
		if loadErr != nil {
			log.Warn("failed to load paid order", zap.Error(loadErr))
		} else {
			checkPaidAmount(log, paid, in.AmountTotal)
		}
	}

	s.runSideEffects(ctx, orderID, paid, loadErr, result)

	log.Info("payment confirmation handled",
		zap.Bool("transitioned", transitioned),
		zap.Bool("delivery_ok", result.Delivery.OK()),
		zap.Bool("notification_ok", result.Notification.OK()),
		zap.Bool("accounting_ok", result.Accounting.OK()),
	)
	return result, nil
}

// runSideEffects runs the three effects concurrently. Each is isolated: an
// error or panic is captured in its Outcome and never reaches the caller.
// Delivery materialization is idempotent and runs on every confirmation;
// notification and accounting run only on the first transition.
func (s *service) runSideEffects(ctx context.Context, orderID uuid.UUID, paid *Order, loadErr error, result *ConfirmationResult) {
	var g errgroup.Group

	g.Go(func() error {
		result.Delivery = s.bestEffort(ctx, "delivery", s.deps.Deliveries == nil, func(ctx context.Context) error {
			n, err := s.deps.Deliveries.MaterializeForOrder(ctx, orderID)
			if err == nil {
				s.deps.Metrics.DeliveriesMaterialized(n)
			}
			return err
		})
		return nil
	})

	g.Go(func() error {
		result.Notification = s.bestEffort(ctx, "notification", !result.Transitioned || s.deps.Notifier == nil, func(ctx context.Context) error {
			if loadErr != nil {
				return fmt.Errorf("load order for notification: %w", loadErr)
			}
			return s.deps.Notifier.SendOrderConfirmation(ctx, paid)
		})
		return nil
	})

	g.Go(func() error {
		result.Accounting = s.bestEffort(ctx, "accounting", !result.Transitioned || s.deps.Accounting == nil, func(ctx context.Context) error {
			return s.deps.Accounting.SyncOrder(ctx, orderID)
		})
		return nil
	})

	_ = g.Wait()
}

// checkPaidAmount compares the amount the gateway charged, in cents, with
// the order total. A mismatch is logged and the payment still stands.
func checkPaidAmount(log *zap.Logger, o *Order, amountTotal int64) {
	if amountTotal <= 0 {
		return
	}
	expected := o.Total.Shift(2).Round(0).IntPart()
	if expected == amountTotal {
		return
	}
	log.Warn("paid amount differs from order total",
		zap.String("order_number", o.OrderNumber),
		zap.Int64("paid_cents", amountTotal),
		zap.Int64("total_cents", expected),
	)
}

func (s *service) bestEffort(ctx context.Context, name string, skip bool, fn func(context.Context) error) (out Outcome) {
	out.Name = name
	if skip {
		out.Skipped = true
		return out
	}

	log := logger.FromCtx(ctx).With(zap.String("effect", name))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("%s panicked: %v", name, r)
		}
		out.Duration = time.Since(start)
		if out.Err != nil {
			s.deps.Metrics.DownstreamFailure()
			log.Error("downstream effect failed", zap.Error(out.Err), zap.Duration("duration", out.Duration))
		}
	}()

	out.Err = fn(ctx)
	return out
}
