package geo

import (
	"math"
	"sort"
	"sync"

	"swapgrid/internal/models"
)

const earthRadiusKm = 6371

// Haversine returns the great-circle distance in kilometres between two
// coordinates. City-scale "nearest" rankings are sensitive enough that a
// flat-earth approximation would reorder results at the margins.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// StationStatus supplies per-station availability and liveness at query
// time, so the index never caches counts of its own.
type StationStatus func(stationID string) (available int, online bool)

// Index answers proximity queries over station coordinates. Fleets are in
// the hundreds, so a linear scan is deliberate; the ordering contract is
// what matters.
type Index struct {
	mu       sync.RWMutex
	stations []models.StationInfo
}

// NewIndex builds an index over the given stations.
func NewIndex(stations []models.StationInfo) *Index {
	idx := &Index{}
	idx.Refresh(stations)
	return idx
}

// Refresh replaces the indexed station set.
func (i *Index) Refresh(stations []models.StationInfo) {
	copied := make([]models.StationInfo, len(stations))
	copy(copied, stations)
	i.mu.Lock()
	i.stations = copied
	i.mu.Unlock()
}

// Search returns up to maxResults stations with at least minAvailable
// batteries, closest first; ties are broken by station id for determinism.
func (i *Index) Search(lat, lon float64, maxResults, minAvailable int, status StationStatus) []models.SearchResult {
	if maxResults <= 0 {
		return nil
	}
	if minAvailable < 0 {
		minAvailable = 0
	}

	i.mu.RLock()
	stations := i.stations
	i.mu.RUnlock()

	results := make([]models.SearchResult, 0, len(stations))
	for _, st := range stations {
		available, online := status(st.ID)
		if available < minAvailable {
			continue
		}
		state := "online"
		if !online {
			state = "offline"
		}
		results = append(results, models.SearchResult{
			StationID:      st.ID,
			Name:           st.Name,
			Lat:            st.Lat,
			Lon:            st.Lon,
			Capacity:       st.Capacity,
			Status:         state,
			AvailableCount: available,
			DistanceKm:     Haversine(lat, lon, st.Lat, st.Lon),
		})
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].DistanceKm != results[b].DistanceKm {
			return results[a].DistanceKm < results[b].DistanceKm
		}
		return results[a].StationID < results[b].StationID
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}
