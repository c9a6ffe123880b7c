package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"lmp-be/internal/logger"
	"lmp-be/internal/order"
	"lmp-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*order.Order, error)
}

type CheckoutHandler struct {
	orders     OrderReader
	gateway    Gateway
	successURL string
	cancelURL  string
}

func NewCheckoutHandler(orders OrderReader, gateway Gateway, successURL, cancelURL string) *CheckoutHandler {
	return &CheckoutHandler{
		orders:     orders,
		gateway:    gateway,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CreateCheckout handles POST /api/orders/{id}/checkout.
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	ctx = logger.WithOrderID(ctx, id)
	log := logger.FromCtx(ctx).With(zap.String("handler", "CreateCheckout"))

	o, err := h.orders.GetOrder(ctx, id)
	switch {
	case errors.Is(err, order.ErrMissingOrderID), errors.Is(err, order.ErrInvalidOrderID):
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, order.ErrOrderNotFound):
		utils.WriteJSONError(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		log.Error("failed to load order for checkout", zap.Error(err))
		utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	if o.Status != order.StatusPending {
		utils.WriteJSONError(w, "order is already "+strings.ToLower(string(o.Status)), http.StatusConflict)
		return
	}

	req := CheckoutRequest{
		OrderID:       o.ID.String(),
		OrderNumber:   o.OrderNumber,
		CustomerEmail: o.CustomerEmail,
		SuccessURL:    withOrderNumber(h.successURL, o.OrderNumber),
		CancelURL:     withOrderNumber(h.cancelURL, o.OrderNumber),
		Items:         make([]LineItem, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		name := it.MealName
		if name == "" {
			name = it.MealID
		}
		req.Items = append(req.Items, LineItem{
			Name:      name,
			Quantity:  int64(it.Quantity),
			UnitPrice: it.UnitPrice,
		})
	}

	session, err := h.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		log.Error("checkout session creation failed", zap.Error(err))
		utils.WriteJSONError(w, "payment provider unavailable, please try again", http.StatusBadGateway)
		return
	}

	log.Info("checkout session created", zap.String("session_id", session.ID))

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": session.ID,
		"url":       session.URL,
	})
}

// withOrderNumber fills the {ORDER_NUMBER} placeholder of a redirect URL.
func withOrderNumber(rawURL, orderNumber string) string {
	return strings.ReplaceAll(rawURL, "{ORDER_NUMBER}", orderNumber)
}
