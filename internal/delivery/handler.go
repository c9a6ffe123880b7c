package delivery

import (
	"net/http"

	"lmp-be/internal/utils"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Reconcile handles POST /api/admin/deliveries/reconcile.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	created, err := h.svc.Sweep(r.Context())
	if err != nil {
		utils.WriteJSONError(w, "delivery reconciliation failed", http.StatusInternalServerError)
		return
	}
	if created == nil {
		created = []Delivery{}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"created":    len(created),
		"deliveries": created,
	})
}
