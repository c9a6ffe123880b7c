package utils

import (
	"encoding/json"
	"net/http"
	"time"
)

func FormatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("Monday, January 2, 2006")
}

func WriteJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteJSONError(w http.ResponseWriter, message string, code int) {
	WriteJSON(w, code, map[string]any{"success": false, "error": message})
}
