package fleet

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"swapgrid/internal/alerts"
	"swapgrid/internal/inventory"
	"swapgrid/internal/models"
)

func testRecords() []models.StationRecord {
	recs := []models.StationRecord{
		{StationInfo: models.StationInfo{ID: "st-1", Name: "Central", Lat: 10.77, Lon: 106.70, Capacity: 3}},
		{StationInfo: models.StationInfo{ID: "st-2", Name: "North", Lat: 10.85, Lon: 106.70, Capacity: 2}},
	}
	for i := range recs {
		for n := 0; n < recs[i].Capacity; n++ {
			recs[i].Slots = append(recs[i].Slots, models.Slot{
				ID:         fmt.Sprintf("%s-%02d", recs[i].ID, n),
				Model:      "BX-48",
				CapacityWh: 2000,
				State:      models.SlotAvailable,
			})
		}
	}
	return recs
}

func newCoordinator(t *testing.T, cfg Config) (*Coordinator, *alerts.Registry) {
	t.Helper()
	registry := alerts.NewRegistry(16, zap.NewNop())
	c, err := New(cfg, testRecords(), registry, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return c, registry
}

func TestSwapCycleRoundTrip(t *testing.T) {
	c, _ := newCoordinator(t, Config{})

	before, err := c.GetModelRollup("st-1")
	if err != nil {
		t.Fatalf("rollup: %v", err)
	}

	slotID, err := c.Reserve("st-1", "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := c.ConfirmWithdrawal(slotID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := c.ReturnBattery(slotID); err != nil {
		t.Fatalf("return: %v", err)
	}
	snap, err := c.ChargeComplete(slotID)
	if err != nil {
		t.Fatalf("charge complete: %v", err)
	}
	if snap.Count(models.SlotAvailable) != 3 {
		t.Fatalf("available %d after full cycle, want 3", snap.Count(models.SlotAvailable))
	}

	after, err := c.GetModelRollup("st-1")
	if err != nil {
		t.Fatalf("rollup: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("rollup changed across cycle:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestUnknownStationAndSlot(t *testing.T) {
	c, _ := newCoordinator(t, Config{})

	if _, err := c.Reserve("st-99", ""); !errors.Is(err, ErrUnknownStation) {
		t.Fatalf("expected ErrUnknownStation, got %v", err)
	}
	if _, err := c.GetSnapshot("st-99"); !errors.Is(err, ErrUnknownStation) {
		t.Fatalf("expected ErrUnknownStation, got %v", err)
	}
	if _, err := c.ConfirmWithdrawal("no-such-slot"); !errors.Is(err, inventory.ErrUnknownSlot) {
		t.Fatalf("expected ErrUnknownSlot, got %v", err)
	}
}

func TestCancelReservationIdempotent(t *testing.T) {
	c, _ := newCoordinator(t, Config{})

	slotID, err := c.Reserve("st-2", "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := c.CancelReservation(slotID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	snap, err := c.CancelReservation(slotID)
	if err != nil {
		t.Fatalf("second cancel should be a no-op, got %v", err)
	}
	if snap.Count(models.SlotAvailable) != 2 {
		t.Fatalf("available %d, want 2", snap.Count(models.SlotAvailable))
	}
}

func TestSweepExpiresStaleReservations(t *testing.T) {
	c, _ := newCoordinator(t, Config{ReservationTimeout: 2 * time.Minute})

	slotID, err := c.Reserve("st-1", "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	original := timeNow
	timeNow = func() time.Time { return time.Now().Add(10 * time.Minute) }
	t.Cleanup(func() { timeNow = original })

	if n := c.SweepReservations(); n != 1 {
		t.Fatalf("swept %d reservations, want 1", n)
	}
	// The late confirmation lost the race and must fail cleanly.
	if _, err := c.ConfirmWithdrawal(slotID); !errors.Is(err, inventory.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	snap, err := c.GetSnapshot("st-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Count(models.SlotAvailable) != 3 {
		t.Fatalf("available %d after sweep, want 3", snap.Count(models.SlotAvailable))
	}
}

func TestMutationRaisesLowAvailabilityAlert(t *testing.T) {
	c, _ := newCoordinator(t, Config{Alerts: alerts.Config{
		LowAvailabilityThreshold:  0.3,
		LowAvailabilityHysteresis: 0.4,
	}})

	sub := c.SubscribeAlerts(models.RoleOperator)
	defer sub.Close()

	// Drain st-2 (capacity 2) below the threshold.
	if _, err := c.Reserve("st-2", ""); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := c.Reserve("st-2", ""); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	select {
	case ev := <-sub.Events():
		if ev.Type != models.EventAlertRaised || ev.Alert.Kind != models.AlertLowAvailability {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Alert.Severity != models.SeverityCritical {
			t.Fatalf("zero availability should be critical, got %s", ev.Alert.Severity)
		}
	case <-time.After(time.Second):
		t.Fatalf("no alert event received")
	}

	active, err := c.ActiveAlerts("st-2")
	if err != nil {
		t.Fatalf("active alerts: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("%d active alerts, want 1", len(active))
	}
}

func TestLivenessCheckRaisesAndResolvesOffline(t *testing.T) {
	c, registry := newCoordinator(t, Config{Alerts: alerts.Config{LivenessWindow: 5 * time.Minute}})

	base := time.Now()
	current := base
	original := timeNow
	timeNow = func() time.Time { return current }
	t.Cleanup(func() { timeNow = original })

	c.CheckLiveness()
	if kinds := registry.ActiveKinds("st-1"); kinds[models.AlertStationOffline] {
		t.Fatalf("fresh station flagged offline")
	}

	current = base.Add(10 * time.Minute)
	c.CheckLiveness()
	if kinds := registry.ActiveKinds("st-1"); !kinds[models.AlertStationOffline] {
		t.Fatalf("silent station should be offline")
	}

	// Any mutation is a heartbeat and brings the station back.
	if _, err := c.FlagMaintenance("st-1-00"); err != nil {
		t.Fatalf("flag maintenance: %v", err)
	}
	c.CheckLiveness()
	if kinds := registry.ActiveKinds("st-1"); kinds[models.AlertStationOffline] {
		t.Fatalf("offline alert should resolve after mutation")
	}
}

func TestSearchUsesLiveAvailability(t *testing.T) {
	c, _ := newCoordinator(t, Config{})

	// Drain st-1 completely so min_available filters it out.
	for i := 0; i < 3; i++ {
		if _, err := c.Reserve("st-1", ""); err != nil {
			t.Fatalf("reserve: %v", err)
		}
	}

	results := c.Search(10.77, 106.70, 5, 1)
	if len(results) != 1 {
		t.Fatalf("%d results, want 1", len(results))
	}
	if results[0].StationID != "st-2" {
		t.Fatalf("result %s, want st-2", results[0].StationID)
	}
	if results[0].AvailableCount != 2 {
		t.Fatalf("available %d, want 2", results[0].AvailableCount)
	}
}

type captureSink struct {
	ch chan models.InventorySnapshot
}

func (s *captureSink) Publish(ctx context.Context, snap models.InventorySnapshot) error {
	select {
	case s.ch <- snap:
	case <-ctx.Done():
	}
	return nil
}

func TestMutationMirrorsSnapshotToSink(t *testing.T) {
	registry := alerts.NewRegistry(16, zap.NewNop())
	sink := &captureSink{ch: make(chan models.InventorySnapshot, 4)}
	c, err := New(Config{}, testRecords(), registry, sink, zap.NewNop())
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	if _, err := c.Reserve("st-1", ""); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	select {
	case snap := <-sink.ch:
		if snap.StationID != "st-1" {
			t.Fatalf("mirrored snapshot for %s, want st-1", snap.StationID)
		}
		if snap.Count(models.SlotReserved) != 1 {
			t.Fatalf("mirrored snapshot reserved=%d, want 1", snap.Count(models.SlotReserved))
		}
	case <-time.After(time.Second):
		t.Fatalf("snapshot was not mirrored")
	}
}
