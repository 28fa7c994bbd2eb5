package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"swapgrid/internal/fleet"
	"swapgrid/internal/inventory"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeEngineError maps engine sentinels to HTTP statuses. Invalid
// transitions are conflicts the caller recovers from by re-querying state.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fleet.ErrUnknownStation):
		writeError(w, http.StatusNotFound, "unknown station")
	case errors.Is(err, inventory.ErrUnknownSlot):
		writeError(w, http.StatusNotFound, "unknown slot")
	case errors.Is(err, inventory.ErrNoAvailableSlot):
		writeError(w, http.StatusConflict, "no available slot")
	case errors.Is(err, inventory.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid transition")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
