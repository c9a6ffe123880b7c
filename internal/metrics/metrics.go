package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Pipeline counts what happens to orders between checkout and fulfilment.
// A nil *Pipeline is valid and records nothing.
type Pipeline struct {
	OrdersCreated          Counter
	OrdersRejected         Counter
	OrderNumberCollisions  Counter
	PaymentsConfirmed      Counter
	DuplicateConfirmations Counter
	DeliveriesCreated      Counter
	DownstreamFailures     Counter
	WebhooksRejected       Counter
}

func NewPipeline() *Pipeline {
	return &Pipeline{}
}

func (p *Pipeline) OrderCreated() {
	if p != nil {
		p.OrdersCreated.Inc()
	}
}

func (p *Pipeline) OrderRejected() {
	if p != nil {
		p.OrdersRejected.Inc()
	}
}

func (p *Pipeline) OrderNumberCollision() {
	if p != nil {
		p.OrderNumberCollisions.Inc()
	}
}

func (p *Pipeline) PaymentConfirmed() {
	if p != nil {
		p.PaymentsConfirmed.Inc()
	}
}

func (p *Pipeline) DuplicateConfirmation() {
	if p != nil {
		p.DuplicateConfirmations.Inc()
	}
}

func (p *Pipeline) DownstreamFailure() {
	if p != nil {
		p.DownstreamFailures.Inc()
	}
}

func (p *Pipeline) WebhookRejected() {
	if p != nil {
		p.WebhooksRejected.Inc()
	}
}

func (p *Pipeline) DeliveriesMaterialized(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.DeliveriesCreated.Add(uint64(n))
}

// Snapshot returns the current counter values keyed by name.
func (p *Pipeline) Snapshot() map[string]uint64 {
	if p == nil {
		return map[string]uint64{}
	}
	return map[string]uint64{
		"orders_created":          p.OrdersCreated.Load(),
		"orders_rejected":         p.OrdersRejected.Load(),
		"order_number_collisions": p.OrderNumberCollisions.Load(),
		"payments_confirmed":      p.PaymentsConfirmed.Load(),
		"duplicate_confirmations": p.DuplicateConfirmations.Load(),
		"deliveries_created":      p.DeliveriesCreated.Load(),
		"downstream_failures":     p.DownstreamFailures.Load(),
		"webhooks_rejected":       p.WebhooksRejected.Load(),
	}
}
