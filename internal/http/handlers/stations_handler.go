package handlers

import (
	"net/http"
	"strconv"

	"swapgrid/internal/fleet"
)

// StationsHandler serves read-only station queries.
type StationsHandler struct {
	coordinator *fleet.Coordinator
}

// NewStationsHandler builds handler set.
func NewStationsHandler(coordinator *fleet.Coordinator) *StationsHandler {
	return &StationsHandler{coordinator: coordinator}
}

// HandleSnapshot handles GET /stations/snapshot?station_id=.
func (h *StationsHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	stationID := r.URL.Query().Get("station_id")
	if stationID == "" {
		writeError(w, http.StatusBadRequest, "station_id is required")
		return
	}
	snap, err := h.coordinator.GetSnapshot(stationID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleRollup handles GET /stations/rollup?station_id=.
func (h *StationsHandler) HandleRollup(w http.ResponseWriter, r *http.Request) {
	stationID := r.URL.Query().Get("station_id")
	if stationID == "" {
		writeError(w, http.StatusBadRequest, "station_id is required")
		return
	}
	rollup, err := h.coordinator.GetModelRollup(stationID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"station_id": stationID, "models": rollup})
}

// HandleActiveAlerts handles GET /stations/alerts?station_id=.
func (h *StationsHandler) HandleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	stationID := r.URL.Query().Get("station_id")
	if stationID == "" {
		writeError(w, http.StatusBadRequest, "station_id is required")
		return
	}
	alerts, err := h.coordinator.ActiveAlerts(stationID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"station_id": stationID, "alerts": alerts})
}

// HandleSearch handles GET /stations/search?lat=&lon=&limit=&min_available=.
func (h *StationsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lat is required")
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lon is required")
		return
	}

	limit := 10
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}
	minAvailable := 1
	if raw := q.Get("min_available"); raw != "" {
		minAvailable, err = strconv.Atoi(raw)
		if err != nil || minAvailable < 0 {
			writeError(w, http.StatusBadRequest, "min_available must be a non-negative integer")
			return
		}
	}

	results := h.coordinator.Search(lat, lon, limit, minAvailable)
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
