package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"swapgrid/internal/alerts"
	"swapgrid/internal/geo"
	"swapgrid/internal/inventory"
	"swapgrid/internal/models"
)

// ErrUnknownStation means no station with that id is provisioned.
var ErrUnknownStation = errors.New("fleet: unknown station")

var timeNow = time.Now

const defaultReservationTimeout = 2 * time.Minute

// SnapshotSink receives fresh snapshots for out-of-process readers. Delivery
// is best-effort and must not slow down mutations.
type SnapshotSink interface {
	Publish(ctx context.Context, snap models.InventorySnapshot) error
}

// Config bundles the coordinator's tunables.
type Config struct {
	Alerts             alerts.Config
	ReservationTimeout time.Duration
}

// Coordinator is the fleet façade: it routes swap operations to the owning
// station, runs alert evaluation after every mutation, and serves search and
// rollup queries. Stations stay independent of each other; no lock spans
// more than one.
type Coordinator struct {
	policy             *alerts.Policy
	registry           *alerts.Registry
	index              *geo.Index
	sink               SnapshotSink
	logger             *zap.Logger
	reservationTimeout time.Duration

	// Provisioned once at construction, read-only afterwards.
	stations  map[string]*inventory.Station
	slotOwner map[string]string

	stateMu     sync.Mutex
	policyState map[string]alerts.State
	lastSeen    map[string]time.Time
}

// New provisions the coordinator from station records.
func New(cfg Config, records []models.StationRecord, registry *alerts.Registry, sink SnapshotSink, logger *zap.Logger) (*Coordinator, error) {
	if cfg.ReservationTimeout <= 0 {
		cfg.ReservationTimeout = defaultReservationTimeout
	}

	c := &Coordinator{
		policy:             alerts.NewPolicy(cfg.Alerts),
		registry:           registry,
		sink:               sink,
		logger:             logger,
		reservationTimeout: cfg.ReservationTimeout,
		stations:           make(map[string]*inventory.Station, len(records)),
		slotOwner:          make(map[string]string),
		policyState:        make(map[string]alerts.State, len(records)),
		lastSeen:           make(map[string]time.Time, len(records)),
	}

	now := timeNow()
	infos := make([]models.StationInfo, 0, len(records))
	for _, rec := range records {
		stationID := rec.ID
		station, err := inventory.NewStation(rec, func(snap models.InventorySnapshot) {
			c.onSnapshot(stationID, snap)
		})
		if err != nil {
			return nil, err
		}
		c.stations[stationID] = station
		for _, slotID := range station.SlotIDs() {
			if _, dup := c.slotOwner[slotID]; dup {
				return nil, fmt.Errorf("fleet: slot %s provisioned at more than one station", slotID)
			}
			c.slotOwner[slotID] = stationID
		}
		c.lastSeen[stationID] = now
		infos = append(infos, rec.StationInfo)
	}
	c.index = geo.NewIndex(infos)
	return c, nil
}

// onSnapshot runs on every successful mutation, still under the owning
// station's lock, so alert check-and-set shares that serialization.
func (c *Coordinator) onSnapshot(stationID string, snap models.InventorySnapshot) {
	now := timeNow()

	c.stateMu.Lock()
	c.lastSeen[stationID] = now
	prior := c.registry.ActiveKinds(stationID)
	decisions, next := c.policy.Evaluate(snap, prior, c.policyState[stationID], now)
	c.policyState[stationID] = next
	c.stateMu.Unlock()

	c.registry.Apply(stationID, decisions...)

	if c.sink != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := c.sink.Publish(ctx, snap); err != nil && c.logger != nil {
				c.logger.Warn("snapshot mirror failed", zap.String("station_id", stationID), zap.Error(err))
			}
		}()
	}
}

func (c *Coordinator) station(stationID string) (*inventory.Station, error) {
	st, ok := c.stations[stationID]
	if !ok {
		return nil, ErrUnknownStation
	}
	return st, nil
}

func (c *Coordinator) ownerOf(slotID string) (*inventory.Station, error) {
	stationID, ok := c.slotOwner[slotID]
	if !ok {
		return nil, inventory.ErrUnknownSlot
	}
	return c.stations[stationID], nil
}

// Reserve holds the lowest-id available slot at the station, optionally
// restricted to one battery model.
func (c *Coordinator) Reserve(stationID, modelFilter string) (string, error) {
	st, err := c.station(stationID)
	if err != nil {
		return "", err
	}
	slotID, _, err := st.Reserve(modelFilter)
	return slotID, err
}

// ConfirmWithdrawal marks a reserved battery as physically taken.
func (c *Coordinator) ConfirmWithdrawal(slotID string) (models.InventorySnapshot, error) {
	return c.applyBySlot(slotID, inventory.EventWithdraw)
}

// ReturnBattery accepts a depleted battery back into the slot.
func (c *Coordinator) ReturnBattery(slotID string) (models.InventorySnapshot, error) {
	return c.applyBySlot(slotID, inventory.EventReturn)
}

// ChargeComplete records the charger's charge-complete signal.
func (c *Coordinator) ChargeComplete(slotID string) (models.InventorySnapshot, error) {
	return c.applyBySlot(slotID, inventory.EventChargeComplete)
}

// CancelReservation releases a held slot. Cancelling a slot that was already
// released (for example by the timeout sweep) is a no-op.
func (c *Coordinator) CancelReservation(slotID string) (models.InventorySnapshot, error) {
	st, err := c.ownerOf(slotID)
	if err != nil {
		return models.InventorySnapshot{}, err
	}
	return st.Cancel(slotID)
}

// FlagMaintenance takes the slot out of rotation.
func (c *Coordinator) FlagMaintenance(slotID string) (models.InventorySnapshot, error) {
	return c.applyBySlot(slotID, inventory.EventFlagMaintenance)
}

// CompleteMaintenance returns a serviced slot to rotation.
func (c *Coordinator) CompleteMaintenance(slotID string) (models.InventorySnapshot, error) {
	return c.applyBySlot(slotID, inventory.EventMaintenanceDone)
}

func (c *Coordinator) applyBySlot(slotID, event string) (models.InventorySnapshot, error) {
	st, err := c.ownerOf(slotID)
	if err != nil {
		return models.InventorySnapshot{}, err
	}
	return st.Apply(slotID, event)
}

// GetSnapshot derives the station's current inventory view.
func (c *Coordinator) GetSnapshot(stationID string) (models.InventorySnapshot, error) {
	st, err := c.station(stationID)
	if err != nil {
		return models.InventorySnapshot{}, err
	}
	return st.Snapshot(), nil
}

// GetModelRollup returns per-model aggregate counts for the station.
func (c *Coordinator) GetModelRollup(stationID string) ([]models.ModelRollup, error) {
	st, err := c.station(stationID)
	if err != nil {
		return nil, err
	}
	return st.ModelRollup(), nil
}

// Search answers a proximity query with live availability counts.
func (c *Coordinator) Search(lat, lon float64, maxResults, minAvailable int) []models.SearchResult {
	return c.index.Search(lat, lon, maxResults, minAvailable, func(stationID string) (int, bool) {
		st, ok := c.stations[stationID]
		if !ok {
			return 0, false
		}
		return st.AvailableCount(), c.online(stationID)
	})
}

// SubscribeAlerts opens a role-filtered alert stream.
func (c *Coordinator) SubscribeAlerts(role models.Role) *alerts.Subscription {
	return c.registry.Subscribe(role)
}

// ActiveAlerts lists the station's currently active alerts.
func (c *Coordinator) ActiveAlerts(stationID string) ([]models.Alert, error) {
	if _, err := c.station(stationID); err != nil {
		return nil, err
	}
	return c.registry.ActiveAlerts(stationID), nil
}

func (c *Coordinator) online(stationID string) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	last, ok := c.lastSeen[stationID]
	return ok && timeNow().Sub(last) <= c.policy.LivenessWindow()
}

// SweepReservations expires every reservation older than the timeout. Safe
// to run concurrently with late confirmations: whichever transition lands
// first wins, the loser sees an invalid-transition failure.
func (c *Coordinator) SweepReservations() int {
	cutoff := timeNow().Add(-c.reservationTimeout)
	expired := 0
	for _, st := range c.stations {
		expired += st.ExpireReservations(cutoff)
	}
	return expired
}

// RunReservationSweeper runs SweepReservations on a ticker until ctx ends.
func (c *Coordinator) RunReservationSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.reservationTimeout / 2
	}
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.SweepReservations(); n > 0 && c.logger != nil {
				c.logger.Info("expired stale reservations", zap.Int("count", n))
			}
		}
	}
}

// CheckLiveness reconciles StationOffline alerts against snapshot recency.
func (c *Coordinator) CheckLiveness() {
	for stationID := range c.stations {
		c.registry.Apply(stationID, alerts.Decision{
			Kind:     models.AlertStationOffline,
			Active:   !c.online(stationID),
			Severity: models.SeverityCritical,
		})
	}
}

// RunLivenessCheck runs CheckLiveness on a ticker until ctx ends.
func (c *Coordinator) RunLivenessCheck(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.policy.LivenessWindow() / 2
	}
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckLiveness()
		}
	}
}
