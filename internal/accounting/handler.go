package accounting

import (
	"context"
	"errors"
	"net/http"

	"lmp-be/internal/utils"
)

type ManualSyncer interface {
	SyncAll(ctx context.Context) (*SyncResult, error)
}

type Handler struct {
	trigger ManualSyncer
}

func NewHandler(trigger ManualSyncer) *Handler {
	return &Handler{trigger: trigger}
}

// Sync handles POST /api/admin/accounting/sync.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.trigger.SyncAll(r.Context())
	if err != nil {
		msg := "accounting sync failed"
		if errors.Is(err, ErrNotConfigured) {
			msg = err.Error()
		}
		utils.WriteJSONError(w, msg, http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
}
