package notification

import (
	"context"

	"lmp-be/internal/logger"
	"lmp-be/internal/order"

	"go.uber.org/zap"
)

// Dispatcher sends the order confirmation after payment. It is called once
// per PAID transition and does not retry.
type Dispatcher struct {
	sender Sender
	from   string
}

func NewDispatcher(sender Sender, from string) *Dispatcher {
	if sender == nil {
		sender = LogSender{}
	}
	return &Dispatcher{sender: sender, from: from}
}

func (d *Dispatcher) SendOrderConfirmation(ctx context.Context, o *order.Order) error {
	msg, err := RenderConfirmation(o, d.from)
	if err != nil {
		return err
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("order confirmation queued",
		zap.String("order_number", msg.OrderNumber),
		zap.Int("item_count", len(o.Items)),
	)
	return nil
}
