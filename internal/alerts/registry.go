package alerts

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"swapgrid/internal/models"
)

const defaultQueueDepth = 32

var idGenerator = generateID

func generateID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "alert-unknown"
	}
	return "alert-" + hex.EncodeToString(buf)
}

var timeNow = time.Now

// Registry owns the canonical active-alert table and fans lifecycle events
// out to subscribers. At most one active alert exists per (station, kind).
type Registry struct {
	mu         sync.Mutex
	active     map[string]map[models.AlertKind]*models.Alert
	subs       map[*Subscription]struct{}
	queueDepth int
	logger     *zap.Logger
}

// NewRegistry builds the registry. queueDepth bounds each subscriber's
// delivery queue.
func NewRegistry(queueDepth int, logger *zap.Logger) *Registry {
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}
	return &Registry{
		active:     make(map[string]map[models.AlertKind]*models.Alert),
		subs:       make(map[*Subscription]struct{}),
		queueDepth: queueDepth,
		logger:     logger,
	}
}

// Apply reconciles the station's active alerts with a policy decision set.
// Callers serialize per station, so the check-and-set per (station, kind)
// cannot race with itself.
func (r *Registry) Apply(stationID string, decisions ...Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := r.active[stationID]
	for _, d := range decisions {
		cur := table[d.Kind]
		switch {
		case d.Active && cur == nil:
			if table == nil {
				table = make(map[models.AlertKind]*models.Alert)
				r.active[stationID] = table
			}
			alert := &models.Alert{
				ID:        idGenerator(),
				StationID: stationID,
				Kind:      d.Kind,
				Severity:  d.Severity,
				Roles:     RolesFor(d.Kind),
				CreatedAt: timeNow(),
			}
			table[d.Kind] = alert
			r.publishLocked(models.AlertEvent{Type: models.EventAlertRaised, Alert: *alert})
		case !d.Active && cur != nil:
			resolved := timeNow()
			cur.ResolvedAt = &resolved
			delete(table, d.Kind)
			r.publishLocked(models.AlertEvent{Type: models.EventAlertResolved, Alert: *cur})
		}
	}
}

// ActiveKinds returns which kinds are currently active for the station.
func (r *Registry) ActiveKinds(stationID string) map[models.AlertKind]bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make(map[models.AlertKind]bool)
	for kind := range r.active[stationID] {
		kinds[kind] = true
	}
	return kinds
}

// ActiveAlerts returns copies of the station's active alerts.
func (r *Registry) ActiveAlerts(stationID string) []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Alert, 0, len(r.active[stationID]))
	for _, a := range r.active[stationID] {
		out = append(out, *a)
	}
	return out
}

// Subscribe registers a role-filtered subscriber. The caller must drain
// Events and Close the subscription when done.
func (r *Registry) Subscribe(role models.Role) *Subscription {
	sub := &Subscription{
		role:     role,
		ch:       make(chan models.AlertEvent, r.queueDepth),
		registry: r,
	}
	r.mu.Lock()
	r.subs[sub] = struct{}{}
	r.mu.Unlock()
	return sub
}

// publishLocked delivers to every matching subscriber without ever blocking:
// when a queue is full the oldest queued event is dropped to make room.
func (r *Registry) publishLocked(ev models.AlertEvent) {
	for sub := range r.subs {
		if !ev.Alert.Targets(sub.role) {
			continue
		}
		select {
		case sub.ch <- ev:
			continue
		default:
		}
		// Queue full: drop the oldest event for this subscriber.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- ev:
		default:
		}
		sub.dropped.Add(1)
		if r.logger != nil {
			r.logger.Warn("alert subscriber overflow",
				zap.String("role", string(sub.role)),
				zap.String("station_id", ev.Alert.StationID),
				zap.Int64("dropped_total", sub.dropped.Load()))
		}
	}
}

func (r *Registry) unsubscribe(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub]; !ok {
		return
	}
	delete(r.subs, sub)
	close(sub.ch)
}

// Subscription is a live, role-filtered alert stream.
type Subscription struct {
	role     models.Role
	ch       chan models.AlertEvent
	registry *Registry
	dropped  atomic.Int64
	once     sync.Once
}

// Events returns the delivery channel. It is closed by Close.
func (s *Subscription) Events() <-chan models.AlertEvent {
	return s.ch
}

// Role returns the subscriber's role.
func (s *Subscription) Role() models.Role {
	return s.role
}

// Dropped reports how many events were discarded due to overflow.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close unregisters the subscriber and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.registry.unsubscribe(s)
	})
}
