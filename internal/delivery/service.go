package delivery

import (
	"context"

	"lmp-be/internal/logger"
	"lmp-be/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service materializes deliveries for paid orders. Both entry points run the
// same idempotent statement, so repeating either never duplicates a row.
type Service interface {
	MaterializeForOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	Sweep(ctx context.Context) ([]Delivery, error)
	// ForOrder returns ErrDeliveryNotFound until the order is materialized.
	ForOrder(ctx context.Context, orderID uuid.UUID) (*Delivery, error)
}

type service struct {
	repo    Repository
	metrics *metrics.Pipeline
}

func NewService(repo Repository, m *metrics.Pipeline) Service {
	return &service{repo: repo, metrics: m}
}

func (s *service) MaterializeForOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	created, err := s.repo.CreateMissing(ctx, &orderID)
	if err != nil {
		return 0, err
	}

	if len(created) > 0 {
		logger.FromCtx(ctx).Info("delivery created",
			zap.String("delivery_id", created[0].ID.String()),
		)
	} else {
		logger.FromCtx(ctx).Debug("delivery already exists or order not paid")
	}
	return len(created), nil
}

func (s *service) Sweep(ctx context.Context) ([]Delivery, error) {
	log := logger.FromCtx(ctx).With(zap.String("method", "Sweep"))

	created, err := s.repo.CreateMissing(ctx, nil)
	if err != nil {
		log.Error("delivery sweep failed", zap.Error(err))
		return nil, err
	}

	s.metrics.DeliveriesMaterialized(len(created))
	log.Info("delivery sweep finished", zap.Int("created", len(created)))
	return created, nil
}

func (s *service) ForOrder(ctx context.Context, orderID uuid.UUID) (*Delivery, error) {
	return s.repo.GetByOrderID(ctx, orderID)
}
