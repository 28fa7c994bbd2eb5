package models

import "time"

// SlotState is the physical state of a battery slot.
type SlotState string

const (
	SlotAvailable   SlotState = "available"
	SlotReserved    SlotState = "reserved"
	SlotInUse       SlotState = "in_use"
	SlotCharging    SlotState = "charging"
	SlotMaintenance SlotState = "maintenance"
)

// AllSlotStates lists every state a slot can be in, in rollup order.
var AllSlotStates = []SlotState{SlotAvailable, SlotReserved, SlotInUse, SlotCharging, SlotMaintenance}

// Slot is a single battery-holding bay. Slots belong to exactly one station
// and are provisioned at station creation.
type Slot struct {
	ID             string    `db:"id" json:"id"`
	StationID      string    `db:"station_id" json:"station_id"`
	Model          string    `db:"model" json:"model"`
	CapacityWh     int       `db:"capacity_wh" json:"capacity_wh"`
	State          SlotState `db:"state" json:"state"`
	LastTransition time.Time `db:"last_transition" json:"last_transition"`
}
