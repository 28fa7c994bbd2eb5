package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"swapgrid/internal/models"
)

// SnapshotStore mirrors the latest inventory snapshot per station so
// dashboards read it without touching the engine. Only the most recent
// snapshot is kept; an offline station keeps its last mirrored view until
// the TTL expires.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotStore returns redis-backed store.
func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func (s *SnapshotStore) key(stationID string) string {
	return fmt.Sprintf("inventory:snapshot:%s", stationID)
}

// Publish overwrites the station's mirrored snapshot.
func (s *SnapshotStore) Publish(ctx context.Context, snap models.InventorySnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(snap.StationID), data, s.ttl).Err()
}

// Get returns the mirrored snapshot, if any.
func (s *SnapshotStore) Get(ctx context.Context, stationID string) (*models.InventorySnapshot, error) {
	result, err := s.client.Get(ctx, s.key(stationID)).Result()
	if err != nil {
		return nil, err
	}
	var snap models.InventorySnapshot
	if err := json.Unmarshal([]byte(result), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
