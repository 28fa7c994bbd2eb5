package models

import "time"

// ModelRollup aggregates slot counts for one battery model within a station.
type ModelRollup struct {
	Model       string `json:"model"`
	CapacityWh  int    `json:"capacity_wh"`
	Total       int    `json:"total"`
	Available   int    `json:"available"`
	Charging    int    `json:"charging"`
	Maintenance int    `json:"maintenance"`
}

// InventorySnapshot is a point-in-time view of one station's slot states.
// It is derived from the live slots on demand and never mutated.
type InventorySnapshot struct {
	StationID string            `json:"station_id"`
	TakenAt   time.Time         `json:"taken_at"`
	Capacity  int               `json:"capacity"`
	Counts    map[SlotState]int `json:"counts"`
	Models    []ModelRollup     `json:"models"`
}

// Count returns the number of slots in the given state.
func (s InventorySnapshot) Count(state SlotState) int {
	return s.Counts[state]
}
