package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"lmp-be/internal/logger"
	"lmp-be/internal/metrics"
	"lmp-be/internal/order"
	"lmp-be/internal/payment"
	"lmp-be/internal/utils"

	"go.uber.org/zap"
)

const (
	signatureHeader = "Stripe-Signature"
	maxPayloadBytes = 1 << 20
)

type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, in order.PaymentConfirmation) (*order.ConfirmationResult, error)
}

// Handler receives Stripe events and drives the order confirmation pipeline.
type Handler struct {
	Orders  PaymentConfirmer
	Gateway payment.Gateway
	Ledger  payment.Repository
	Metrics *metrics.Pipeline
}

func NewWebhookHandler(orders PaymentConfirmer, gateway payment.Gateway, ledger payment.Repository, m *metrics.Pipeline) *Handler {
	return &Handler{
		Orders:  orders,
		Gateway: gateway,
		Ledger:  ledger,
		Metrics: m,
	}
}

// StripeWebhookHandler handles POST /api/webhooks/stripe.
func (h *Handler) StripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("handler", "StripeWebhook"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		log.Warn("failed to read webhook body", zap.Error(err))
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// 1. Authenticity before anything else touches the payload.
	evt, err := h.Gateway.VerifyWebhook(body, r.Header.Get(signatureHeader))
	if err != nil {
		h.Metrics.WebhookRejected()
		log.Warn("webhook rejected: signature verification failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		utils.WriteJSONError(w, "invalid signature", http.StatusBadRequest)
		return
	}

	log = log.With(zap.String("event_id", evt.ID), zap.String("event_type", evt.Type))

	// 2. Ledger. A redelivery of an event we already handled is acknowledged.
	webhookID, processed, err := h.Ledger.SavePaymentWebhook(ctx, payment.ProviderStripe, evt.ID, evt.Type, evt.OrderID, evt.Raw)
	if err != nil {
		log.Error("failed to record webhook", zap.Error(err))
		utils.WriteJSONError(w, "failed to record webhook", http.StatusInternalServerError)
		return
	}
	if processed {
		log.Info("webhook already processed")
		utils.WriteJSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
		return
	}

	// 3. Only payment confirmations move the order.
	if !evt.ConfirmsPayment() {
		log.Debug("webhook ignored")
		h.markProcessed(ctx, log, webhookID)
		utils.WriteJSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	result, err := h.Orders.ConfirmPayment(ctx, order.PaymentConfirmation{
		OrderID:         evt.OrderID,
		SessionID:       evt.SessionID,
		PaymentIntentID: evt.PaymentIntentID,
		AmountTotal:     evt.AmountTotal,
		EventID:         evt.ID,
	})
	if err != nil {
		h.markFailed(ctx, log, webhookID, err)

		switch {
		case errors.Is(err, order.ErrMissingOrderID), errors.Is(err, order.ErrInvalidOrderID):
			utils.WriteJSONError(w, "missing or invalid order id in metadata", http.StatusBadRequest)
		case errors.Is(err, order.ErrOrderNotFound):
			utils.WriteJSONError(w, "order not found", http.StatusBadRequest)
		default:
			log.Error("payment confirmation failed", zap.Error(err))
			utils.WriteJSONError(w, "failed to confirm payment", http.StatusInternalServerError)
		}
		return
	}

	h.markProcessed(ctx, log, webhookID)

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"received":     true,
		"orderId":      result.OrderID.String(),
		"transitioned": result.Transitioned,
	})
}

func (h *Handler) markProcessed(ctx context.Context, log *zap.Logger, webhookID int64) {
	if err := h.Ledger.MarkWebhookProcessed(ctx, webhookID); err != nil {
		log.Error("failed to mark webhook processed", zap.Int64("webhook_id", webhookID), zap.Error(err))
	}
}

func (h *Handler) markFailed(ctx context.Context, log *zap.Logger, webhookID int64, cause error) {
	if err := h.Ledger.MarkWebhookFailed(ctx, webhookID, cause.Error()); err != nil {
		log.Error("failed to mark webhook failed", zap.Int64("webhook_id", webhookID), zap.Error(err))
	}
}
