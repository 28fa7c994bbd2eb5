package inventory

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"swapgrid/internal/models"
)

func testStationRecord(capacity int) models.StationRecord {
	rec := models.StationRecord{
		StationInfo: models.StationInfo{
			ID:       "st-1",
			Name:     "Central",
			Lat:      10.77,
			Lon:      106.70,
			Capacity: capacity,
		},
	}
	for i := 0; i < capacity; i++ {
		model := "BX-48"
		if i%2 == 1 {
			model = "BX-60"
		}
		rec.Slots = append(rec.Slots, models.Slot{
			ID:         fmt.Sprintf("st-1-%02d", i),
			Model:      model,
			CapacityWh: 2000,
			State:      models.SlotAvailable,
		})
	}
	return rec
}

func mustStation(t *testing.T, capacity int, onChange ChangeFunc) *Station {
	t.Helper()
	st, err := NewStation(testStationRecord(capacity), onChange)
	if err != nil {
		t.Fatalf("new station: %v", err)
	}
	return st
}

func TestNewStationRejectsCapacityMismatch(t *testing.T) {
	rec := testStationRecord(4)
	rec.Capacity = 5
	if _, err := NewStation(rec, nil); err == nil {
		t.Fatalf("expected capacity mismatch error")
	}
}

func TestReservePicksLowestSlotID(t *testing.T) {
	st := mustStation(t, 4, nil)
	slotID, _, err := st.Reserve("")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if slotID != "st-1-00" {
		t.Fatalf("reserved %s, want st-1-00", slotID)
	}
}

func TestReserveHonorsModelFilter(t *testing.T) {
	st := mustStation(t, 4, nil)
	slotID, _, err := st.Reserve("BX-60")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if slotID != "st-1-01" {
		t.Fatalf("reserved %s, want st-1-01 (first BX-60)", slotID)
	}

	if _, _, err := st.Reserve("BX-99"); !errors.Is(err, ErrNoAvailableSlot) {
		t.Fatalf("expected ErrNoAvailableSlot for unknown model, got %v", err)
	}
}

func TestConcurrentReservesNeverDoubleBook(t *testing.T) {
	const capacity = 5
	const callers = 20
	st := mustStation(t, capacity, nil)

	var wg sync.WaitGroup
	results := make(chan string, callers)
	failures := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slotID, _, err := st.Reserve("")
			if err != nil {
				failures <- err
				return
			}
			results <- slotID
		}()
	}
	wg.Wait()
	close(results)
	close(failures)

	seen := make(map[string]bool)
	for slotID := range results {
		if seen[slotID] {
			t.Fatalf("slot %s reserved twice", slotID)
		}
		seen[slotID] = true
	}
	if len(seen) != capacity {
		t.Fatalf("%d successful reserves, want %d", len(seen), capacity)
	}

	failed := 0
	for err := range failures {
		if !errors.Is(err, ErrNoAvailableSlot) {
			t.Fatalf("unexpected failure: %v", err)
		}
		failed++
	}
	if failed != callers-capacity {
		t.Fatalf("%d failed reserves, want %d", failed, callers-capacity)
	}
}

func TestSlotConservationAcrossTransitions(t *testing.T) {
	const capacity = 6
	st := mustStation(t, capacity, func(snap models.InventorySnapshot) {
		total := 0
		for _, n := range snap.Counts {
			total += n
		}
		if total != capacity {
			t.Errorf("snapshot counts sum to %d, want %d", total, capacity)
		}
	})

	slotID, _, err := st.Reserve("")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	for _, event := range []string{EventWithdraw, EventReturn, EventChargeComplete} {
		if _, err := st.Apply(slotID, event); err != nil {
			t.Fatalf("apply %s: %v", event, err)
		}
	}
	if _, err := st.Apply("st-1-03", EventFlagMaintenance); err != nil {
		t.Fatalf("flag maintenance: %v", err)
	}

	snap := st.Snapshot()
	total := 0
	for _, n := range snap.Counts {
		total += n
	}
	if total != capacity {
		t.Fatalf("final counts sum to %d, want %d", total, capacity)
	}
}

func TestFullCycleRestoresRollup(t *testing.T) {
	st := mustStation(t, 4, nil)
	before := st.ModelRollup()

	slotID, _, err := st.Reserve("")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	for _, event := range []string{EventWithdraw, EventReturn, EventChargeComplete} {
		if _, err := st.Apply(slotID, event); err != nil {
			t.Fatalf("apply %s: %v", event, err)
		}
	}

	after := st.ModelRollup()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("rollup changed across full cycle:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestApplyUnknownSlot(t *testing.T) {
	st := mustStation(t, 2, nil)
	if _, err := st.Apply("no-such-slot", EventReserve); !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("expected ErrUnknownSlot, got %v", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	st := mustStation(t, 2, nil)
	slotID, _, err := st.Reserve("")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if _, err := st.Cancel(slotID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	snapBefore := st.Snapshot()

	// The reservation is gone; cancelling again is a no-op.
	snapAfter, err := st.Cancel(slotID)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if !reflect.DeepEqual(snapBefore.Counts, snapAfter.Counts) {
		t.Fatalf("second cancel changed state: %v vs %v", snapBefore.Counts, snapAfter.Counts)
	}
}

func TestExpireLosesToLateConfirmation(t *testing.T) {
	st := mustStation(t, 2, nil)
	slotID, _, err := st.Reserve("")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// Confirmation lands before the sweep: the sweep finds nothing.
	if _, err := st.Apply(slotID, EventWithdraw); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if n := st.ExpireReservations(time.Now().Add(time.Hour)); n != 0 {
		t.Fatalf("sweep expired %d slots after confirmation, want 0", n)
	}
}

func TestLateConfirmationLosesToExpire(t *testing.T) {
	st := mustStation(t, 2, nil)
	slotID, _, err := st.Reserve("")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if n := st.ExpireReservations(time.Now().Add(time.Hour)); n != 1 {
		t.Fatalf("sweep expired %d slots, want 1", n)
	}
	// The late confirmation fails cleanly instead of corrupting state.
	if _, err := st.Apply(slotID, EventWithdraw); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition after expiry, got %v", err)
	}
	if st.AvailableCount() != 2 {
		t.Fatalf("available %d, want 2", st.AvailableCount())
	}
}

func TestSnapshotModelRollupShape(t *testing.T) {
	st := mustStation(t, 4, nil)
	if _, err := st.Apply("st-1-01", EventFlagMaintenance); err != nil {
		t.Fatalf("flag maintenance: %v", err)
	}

	rollup := st.ModelRollup()
	if len(rollup) != 2 {
		t.Fatalf("rollup has %d models, want 2", len(rollup))
	}
	if rollup[0].Model != "BX-48" || rollup[1].Model != "BX-60" {
		t.Fatalf("rollup not ordered by model: %+v", rollup)
	}
	bx60 := rollup[1]
	if bx60.Total != 2 || bx60.Available != 1 || bx60.Maintenance != 1 {
		t.Fatalf("unexpected BX-60 rollup: %+v", bx60)
	}
}
