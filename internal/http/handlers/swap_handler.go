package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"swapgrid/internal/fleet"
	"swapgrid/internal/models"
)

// SwapHandler holds the swap-cycle endpoints.
type SwapHandler struct {
	coordinator *fleet.Coordinator
	logger      *zap.Logger
}

// NewSwapHandler builds handler set.
func NewSwapHandler(coordinator *fleet.Coordinator, logger *zap.Logger) *SwapHandler {
	return &SwapHandler{
		coordinator: coordinator,
		logger:      logger,
	}
}

type reserveRequest struct {
	StationID string `json:"station_id"`
	Model     string `json:"model,omitempty"`
}

type slotRequest struct {
	SlotID string `json:"slot_id"`
}

// HandleReserve handles POST /swap/reserve.
func (h *SwapHandler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.StationID == "" {
		writeError(w, http.StatusBadRequest, "station_id is required")
		return
	}

	slotID, err := h.coordinator.Reserve(req.StationID, req.Model)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"slot_id": slotID})
}

// HandleConfirm handles POST /swap/confirm.
func (h *SwapHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	h.applySlotEvent(w, r, h.coordinator.ConfirmWithdrawal)
}

// HandleReturn handles POST /swap/return.
func (h *SwapHandler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	h.applySlotEvent(w, r, h.coordinator.ReturnBattery)
}

// HandleChargeComplete handles POST /swap/charge-complete.
func (h *SwapHandler) HandleChargeComplete(w http.ResponseWriter, r *http.Request) {
	h.applySlotEvent(w, r, h.coordinator.ChargeComplete)
}

// HandleCancel handles POST /swap/cancel.
func (h *SwapHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.applySlotEvent(w, r, h.coordinator.CancelReservation)
}

// HandleFlagMaintenance handles POST /maintenance/flag.
func (h *SwapHandler) HandleFlagMaintenance(w http.ResponseWriter, r *http.Request) {
	h.applySlotEvent(w, r, h.coordinator.FlagMaintenance)
}

// HandleCompleteMaintenance handles POST /maintenance/complete.
func (h *SwapHandler) HandleCompleteMaintenance(w http.ResponseWriter, r *http.Request) {
	h.applySlotEvent(w, r, h.coordinator.CompleteMaintenance)
}

func (h *SwapHandler) applySlotEvent(w http.ResponseWriter, r *http.Request, apply func(string) (models.InventorySnapshot, error)) {
	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SlotID == "" {
		writeError(w, http.StatusBadRequest, "slot_id is required")
		return
	}

	snap, err := apply(req.SlotID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
