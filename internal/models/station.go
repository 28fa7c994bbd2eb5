package models

// StationInfo is station metadata used for routing and proximity search.
type StationInfo struct {
	ID       string  `db:"id" json:"id"`
	Name     string  `db:"name" json:"name"`
	Lat      float64 `db:"lat" json:"lat"`
	Lon      float64 `db:"lon" json:"lon"`
	Capacity int     `db:"capacity" json:"capacity"`
}

// StationRecord is a provisioned station together with its slots, as loaded
// from storage at boot.
type StationRecord struct {
	StationInfo
	Slots []Slot
}

// SearchResult is one entry of a proximity query answer. Ephemeral, never
// persisted.
type SearchResult struct {
	StationID      string  `json:"station_id"`
	Name           string  `json:"name"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Capacity       int     `json:"capacity"`
	Status         string  `json:"status"`
	AvailableCount int     `json:"available_count"`
	DistanceKm     float64 `json:"distance_km"`
}
