package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// DriverRosterTTL bounds staleness if an invalidation is lost.
const DriverRosterTTL = 5 * time.Minute

const driverRosterKey = "cache:drivers:roster"

// CachedDriver represents a cached driver entry of the roster.
type CachedDriver struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// GetDriverRoster retrieves the ordered driver roster.
// The boolean is false on a cache miss.
func (s *CacheStore) GetDriverRoster(ctx context.Context) ([]CachedDriver, bool, error) {
	data, err := s.client.Get(ctx, driverRosterKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil // Cache miss
		}
		return nil, false, err
	}

	var drivers []CachedDriver
	if err := json.Unmarshal(data, &drivers); err != nil {
		return nil, false, err
	}
	return drivers, true, nil
}

// SetDriverRoster stores the ordered driver roster.
func (s *CacheStore) SetDriverRoster(ctx context.Context, drivers []CachedDriver) error {
	if drivers == nil {
		drivers = []CachedDriver{}
	}
	data, err := json.Marshal(drivers)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, driverRosterKey, data, DriverRosterTTL).Err()
}

// InvalidateDriverRoster removes the roster so the next read reloads it from the store.
func (s *CacheStore) InvalidateDriverRoster(ctx context.Context) error {
	return s.client.Del(ctx, driverRosterKey).Err()
}
