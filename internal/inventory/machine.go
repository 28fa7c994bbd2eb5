package inventory

import (
	"context"
	"time"

	"github.com/looplab/fsm"

	"swapgrid/internal/models"
)

// Slot lifecycle events.
const (
	EventReserve         = "reserve"
	EventWithdraw        = "confirm_withdrawal"
	EventCancel          = "cancel_reservation"
	EventReturn          = "return_battery"
	EventChargeComplete  = "charge_complete"
	EventFlagMaintenance = "flag_maintenance"
	EventMaintenanceDone = "maintenance_done"
)

var timeNow = time.Now

// slotMachine binds one slot to its transition table. It is not safe for
// concurrent use on its own; the owning Station serializes access.
type slotMachine struct {
	slot models.Slot
	fsm  *fsm.FSM
}

func newSlotMachine(slot models.Slot) *slotMachine {
	if slot.State == "" {
		slot.State = models.SlotAvailable
	}
	if slot.LastTransition.IsZero() {
		slot.LastTransition = timeNow()
	}

	m := &slotMachine{slot: slot}
	m.fsm = fsm.NewFSM(
		string(slot.State),
		fsm.Events{
			{Name: EventReserve, Src: []string{string(models.SlotAvailable)}, Dst: string(models.SlotReserved)},
			{Name: EventWithdraw, Src: []string{string(models.SlotReserved)}, Dst: string(models.SlotInUse)},
			{Name: EventCancel, Src: []string{string(models.SlotReserved)}, Dst: string(models.SlotAvailable)},
			{Name: EventReturn, Src: []string{string(models.SlotInUse)}, Dst: string(models.SlotCharging)},
			{Name: EventChargeComplete, Src: []string{string(models.SlotCharging)}, Dst: string(models.SlotAvailable)},
			{Name: EventFlagMaintenance, Src: []string{
				string(models.SlotAvailable),
				string(models.SlotReserved),
				string(models.SlotInUse),
				string(models.SlotCharging),
			}, Dst: string(models.SlotMaintenance)},
			{Name: EventMaintenanceDone, Src: []string{string(models.SlotMaintenance)}, Dst: string(models.SlotAvailable)},
		},
		fsm.Callbacks{},
	)
	return m
}

// fire drives one event through the machine. Illegal events fail with
// ErrInvalidTransition and leave the slot untouched; legal ones update the
// state and the transition timestamp.
func (m *slotMachine) fire(event string) error {
	if err := m.fsm.Event(context.Background(), event); err != nil {
		return ErrInvalidTransition
	}
	m.slot.State = models.SlotState(m.fsm.Current())
	m.slot.LastTransition = timeNow()
	return nil
}

func (m *slotMachine) state() models.SlotState {
	return m.slot.State
}
