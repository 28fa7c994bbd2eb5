package repository

import (
	"context"
	"database/sql"
	"fmt"

	"swapgrid/internal/models"
)

// FleetRepository loads the provisioned fleet. The engine reads the whole
// topology once at boot; stations and slots are not created or removed at
// runtime.
type FleetRepository struct {
	db *sql.DB
}

// NewFleetRepository returns repository.
func NewFleetRepository(db *sql.DB) *FleetRepository {
	return &FleetRepository{db: db}
}

// LoadStations reads every station together with its slots, ordered by id.
func (r *FleetRepository) LoadStations(ctx context.Context) ([]models.StationRecord, error) {
	const stationQuery = `
		SELECT id, name, lat, lon, capacity
		FROM stations
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, stationQuery)
	if err != nil {
		return nil, fmt.Errorf("repository: load stations: %w", err)
	}
	defer rows.Close()

	var records []models.StationRecord
	index := make(map[string]int)
	for rows.Next() {
		var rec models.StationRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Lat, &rec.Lon, &rec.Capacity); err != nil {
			return nil, fmt.Errorf("repository: scan station: %w", err)
		}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: iterate stations: %w", err)
	}

	const slotQuery = `
		SELECT id, station_id, model, capacity_wh, state, last_transition
		FROM slots
		ORDER BY station_id, id
	`
	slotRows, err := r.db.QueryContext(ctx, slotQuery)
	if err != nil {
		return nil, fmt.Errorf("repository: load slots: %w", err)
	}
	defer slotRows.Close()

	for slotRows.Next() {
		var slot models.Slot
		if err := slotRows.Scan(&slot.ID, &slot.StationID, &slot.Model, &slot.CapacityWh, &slot.State, &slot.LastTransition); err != nil {
			return nil, fmt.Errorf("repository: scan slot: %w", err)
		}
		i, ok := index[slot.StationID]
		if !ok {
			return nil, fmt.Errorf("repository: slot %s references unknown station %s", slot.ID, slot.StationID)
		}
		records[i].Slots = append(records[i].Slots, slot)
	}
	if err := slotRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: iterate slots: %w", err)
	}

	return records, nil
}
