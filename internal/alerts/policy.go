package alerts

import (
	"time"

	"swapgrid/internal/models"
)

// Config holds alert policy thresholds. Zero values are replaced with the
// defaults below.
type Config struct {
	LowAvailabilityThreshold    float64
	LowAvailabilityHysteresis   float64
	MaintenanceBacklogThreshold int
	MaintenanceGracePeriod      time.Duration
	LivenessWindow              time.Duration
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		LowAvailabilityThreshold:    0.15,
		LowAvailabilityHysteresis:   0.25,
		MaintenanceBacklogThreshold: 2,
		MaintenanceGracePeriod:      30 * time.Minute,
		LivenessWindow:              5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LowAvailabilityThreshold <= 0 {
		c.LowAvailabilityThreshold = d.LowAvailabilityThreshold
	}
	if c.LowAvailabilityHysteresis <= 0 {
		c.LowAvailabilityHysteresis = d.LowAvailabilityHysteresis
	}
	if c.MaintenanceBacklogThreshold <= 0 {
		c.MaintenanceBacklogThreshold = d.MaintenanceBacklogThreshold
	}
	if c.MaintenanceGracePeriod <= 0 {
		c.MaintenanceGracePeriod = d.MaintenanceGracePeriod
	}
	if c.LivenessWindow <= 0 {
		c.LivenessWindow = d.LivenessWindow
	}
	return c
}

// Decision is one proposed alert transition for a station.
type Decision struct {
	Kind     models.AlertKind
	Active   bool
	Severity models.Severity
}

// State is the small amount of evaluator memory that a single snapshot
// cannot carry: when the maintenance count first crossed the backlog
// threshold. Zero value means no qualifying window is open.
type State struct {
	BacklogSince time.Time
}

// Policy evaluates snapshots against the alerting rules. It holds no mutable
// state: the same inputs always yield the same decisions, so re-evaluation
// after a restart is safe.
type Policy struct {
	cfg Config
}

// NewPolicy builds an evaluator with the given thresholds.
func NewPolicy(cfg Config) *Policy {
	return &Policy{cfg: cfg.withDefaults()}
}

// LivenessWindow exposes the configured liveness window for the offline check.
func (p *Policy) LivenessWindow() time.Duration {
	return p.cfg.LivenessWindow
}

// Evaluate decides which snapshot-driven alert kinds should be active for
// the station. StationOffline is decided by the liveness check, not here.
func (p *Policy) Evaluate(snap models.InventorySnapshot, prior map[models.AlertKind]bool, st State, now time.Time) ([]Decision, State) {
	decisions := make([]Decision, 0, 2)

	available := snap.Count(models.SlotAvailable)
	ratio := 1.0
	if snap.Capacity > 0 {
		ratio = float64(available) / float64(snap.Capacity)
	}
	lowActive := ratio < p.cfg.LowAvailabilityThreshold
	if prior[models.AlertLowAvailability] {
		// Hysteresis: once raised, stay raised until the ratio recovers.
		lowActive = ratio < p.cfg.LowAvailabilityHysteresis
	}
	sev := models.SeverityWarning
	if available == 0 {
		sev = models.SeverityCritical
	}
	decisions = append(decisions, Decision{Kind: models.AlertLowAvailability, Active: lowActive, Severity: sev})

	maint := snap.Count(models.SlotMaintenance)
	if maint >= p.cfg.MaintenanceBacklogThreshold {
		if st.BacklogSince.IsZero() {
			st.BacklogSince = now
		}
		backlogActive := prior[models.AlertMaintenanceBacklog] || now.Sub(st.BacklogSince) >= p.cfg.MaintenanceGracePeriod
		decisions = append(decisions, Decision{Kind: models.AlertMaintenanceBacklog, Active: backlogActive, Severity: models.SeverityWarning})
	} else {
		// Each qualifying window is independent: dipping below the
		// threshold resets the grace timer.
		st.BacklogSince = time.Time{}
		decisions = append(decisions, Decision{Kind: models.AlertMaintenanceBacklog, Active: false, Severity: models.SeverityWarning})
	}

	return decisions, st
}

// RolesFor maps an alert kind to the staff roles that must see it.
func RolesFor(kind models.AlertKind) []models.Role {
	switch kind {
	case models.AlertLowAvailability:
		return []models.Role{models.RoleOperator, models.RoleManager}
	case models.AlertMaintenanceBacklog:
		return []models.Role{models.RoleTechnician, models.RoleManager}
	case models.AlertStationOffline:
		return []models.Role{models.RoleOperator, models.RoleTechnician, models.RoleManager}
	default:
		return []models.Role{models.RoleManager}
	}
}
