package accounting

import (
	"context"

	"lmp-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Trigger starts accounting reconciliation. Concurrent calls are not
// serialized; the accounting side is expected to tolerate overlap.
type Trigger struct {
	syncer Syncer
}

func NewTrigger(syncer Syncer) *Trigger {
	return &Trigger{syncer: syncer}
}

// SyncOrder runs after an order is paid.
func (t *Trigger) SyncOrder(ctx context.Context, orderID uuid.UUID) error {
	res, err := t.syncer.Sync(ctx, SyncRequest{Scope: ScopeOrder, OrderID: orderID.String()})
	if err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("accounting sync finished",
		zap.String("scope", ScopeOrder),
		zap.Int("synced", res.Synced),
	)
	return nil
}

// SyncAll is the manual, operator-initiated reconciliation.
func (t *Trigger) SyncAll(ctx context.Context) (*SyncResult, error) {
	log := logger.FromCtx(ctx).With(zap.String("scope", ScopeAll))

	res, err := t.syncer.Sync(ctx, SyncRequest{Scope: ScopeAll})
	if err != nil {
		log.Error("accounting sync failed", zap.Error(err))
		return nil, err
	}

	log.Info("accounting sync finished", zap.Int("synced", res.Synced), zap.Int("skipped", res.Skipped))
	return res, nil
}
