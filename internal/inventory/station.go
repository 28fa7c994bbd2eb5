package inventory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"swapgrid/internal/models"
)

// ChangeFunc receives the snapshot produced by a successful mutation. It runs
// with the station lock held and must not call back into the station.
type ChangeFunc func(models.InventorySnapshot)

// Station owns all slots of one station and linearizes every mutation to
// them. Reads copy current counts under the same lock, so they observe a
// state that existed at some real instant.
type Station struct {
	mu       sync.Mutex
	info     models.StationInfo
	slots    []*slotMachine
	byID     map[string]*slotMachine
	onChange ChangeFunc
}

// NewStation builds the inventory for one provisioned station. The slot set
// is fixed for the station's lifetime and must match its declared capacity.
func NewStation(rec models.StationRecord, onChange ChangeFunc) (*Station, error) {
	if len(rec.Slots) != rec.Capacity {
		return nil, fmt.Errorf("inventory: station %s declares capacity %d but has %d slots", rec.ID, rec.Capacity, len(rec.Slots))
	}

	s := &Station{
		info:     rec.StationInfo,
		byID:     make(map[string]*slotMachine, len(rec.Slots)),
		onChange: onChange,
	}
	for _, slot := range rec.Slots {
		if _, dup := s.byID[slot.ID]; dup {
			return nil, fmt.Errorf("inventory: station %s has duplicate slot %s", rec.ID, slot.ID)
		}
		slot.StationID = rec.ID
		m := newSlotMachine(slot)
		s.slots = append(s.slots, m)
		s.byID[slot.ID] = m
	}
	sort.Slice(s.slots, func(i, j int) bool { return s.slots[i].slot.ID < s.slots[j].slot.ID })
	return s, nil
}

// Info returns station metadata.
func (s *Station) Info() models.StationInfo {
	return s.info
}

// SlotIDs returns the ids of all owned slots.
func (s *Station) SlotIDs() []string {
	ids := make([]string, len(s.slots))
	for i, m := range s.slots {
		ids[i] = m.slot.ID
	}
	return ids
}

// Reserve picks the available slot with the lowest id, optionally restricted
// to one battery model, and holds it for the caller.
func (s *Station) Reserve(modelFilter string) (string, models.InventorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.slots {
		if m.state() != models.SlotAvailable {
			continue
		}
		if modelFilter != "" && m.slot.Model != modelFilter {
			continue
		}
		if err := m.fire(EventReserve); err != nil {
			return "", models.InventorySnapshot{}, err
		}
		snap := s.snapshotLocked()
		s.emitLocked(snap)
		return m.slot.ID, snap, nil
	}
	return "", models.InventorySnapshot{}, ErrNoAvailableSlot
}

// Apply drives one lifecycle event through a slot and returns the fresh
// snapshot. The snapshot is handed to the change hook before Apply returns.
func (s *Station) Apply(slotID, event string) (models.InventorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[slotID]
	if !ok {
		return models.InventorySnapshot{}, ErrUnknownSlot
	}
	if err := m.fire(event); err != nil {
		return models.InventorySnapshot{}, err
	}
	snap := s.snapshotLocked()
	s.emitLocked(snap)
	return snap, nil
}

// Cancel releases a reservation. Cancelling a slot that is already available
// is a no-op, not an error: the reservation may have been swept by the
// timeout already.
func (s *Station) Cancel(slotID string) (models.InventorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[slotID]
	if !ok {
		return models.InventorySnapshot{}, ErrUnknownSlot
	}
	if m.state() == models.SlotAvailable {
		return s.snapshotLocked(), nil
	}
	if err := m.fire(EventCancel); err != nil {
		return models.InventorySnapshot{}, err
	}
	snap := s.snapshotLocked()
	s.emitLocked(snap)
	return snap, nil
}

// ExpireReservations returns every slot reserved before the cutoff back to
// available. A late confirmation that already won the race simply leaves
// nothing for the sweep to expire.
func (s *Station) ExpireReservations(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for _, m := range s.slots {
		if m.state() != models.SlotReserved || !m.slot.LastTransition.Before(cutoff) {
			continue
		}
		if err := m.fire(EventCancel); err != nil {
			continue
		}
		expired++
	}
	if expired > 0 {
		s.emitLocked(s.snapshotLocked())
	}
	return expired
}

// Snapshot derives the current inventory view.
func (s *Station) Snapshot() models.InventorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// AvailableCount reports how many slots are available right now.
func (s *Station) AvailableCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range s.slots {
		if m.state() == models.SlotAvailable {
			n++
		}
	}
	return n
}

// ModelRollup returns per-model aggregate counts, ordered by model name.
func (s *Station) ModelRollup() []models.ModelRollup {
	return s.Snapshot().Models
}

func (s *Station) emitLocked(snap models.InventorySnapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

func (s *Station) snapshotLocked() models.InventorySnapshot {
	snap := models.InventorySnapshot{
		StationID: s.info.ID,
		TakenAt:   timeNow(),
		Capacity:  s.info.Capacity,
		Counts:    make(map[models.SlotState]int, len(models.AllSlotStates)),
	}
	for _, st := range models.AllSlotStates {
		snap.Counts[st] = 0
	}

	byModel := make(map[string]*models.ModelRollup)
	for _, m := range s.slots {
		snap.Counts[m.state()]++

		r, ok := byModel[m.slot.Model]
		if !ok {
			r = &models.ModelRollup{Model: m.slot.Model, CapacityWh: m.slot.CapacityWh}
			byModel[m.slot.Model] = r
		}
		r.Total++
		switch m.state() {
		case models.SlotAvailable:
			r.Available++
		case models.SlotCharging:
			r.Charging++
		case models.SlotMaintenance:
			r.Maintenance++
		}
	}

	snap.Models = make([]models.ModelRollup, 0, len(byModel))
	for _, r := range byModel {
		snap.Models = append(snap.Models, *r)
	}
	sort.Slice(snap.Models, func(i, j int) bool { return snap.Models[i].Model < snap.Models[j].Model })
	return snap
}
