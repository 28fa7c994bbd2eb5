package models

import "time"

// AlertKind identifies an operational alert condition.
type AlertKind string

const (
	AlertLowAvailability    AlertKind = "low_availability"
	AlertMaintenanceBacklog AlertKind = "maintenance_backlog"
	AlertStationOffline     AlertKind = "station_offline"
)

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Role is a staff role that alerts are targeted at.
type Role string

const (
	RoleOperator   Role = "operator"
	RoleTechnician Role = "technician"
	RoleManager    Role = "manager"
)

// Alert is one operational alert instance. ResolvedAt is nil while the
// triggering condition still holds.
type Alert struct {
	ID         string     `json:"id"`
	StationID  string     `json:"station_id"`
	Kind       AlertKind  `json:"kind"`
	Severity   Severity   `json:"severity"`
	Roles      []Role     `json:"roles"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Targets reports whether the alert is addressed to the given role.
func (a Alert) Targets(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Alert event types published to subscribers.
const (
	EventAlertRaised   = "alert_raised"
	EventAlertResolved = "alert_resolved"
)

// AlertEvent is the unit of subscriber fan-out.
type AlertEvent struct {
	Type  string `json:"type"`
	Alert Alert  `json:"alert"`
}
