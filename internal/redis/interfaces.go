package redis

import (
	"context"
	"time"
)

// LockStoreInterface defines the interface for per-ride distributed locking.
type LockStoreInterface interface {
	AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (release func(), ok bool, err error)
}

// RosterCacheInterface defines the interface for caching the ordered driver roster.
type RosterCacheInterface interface {
	GetDriverRoster(ctx context.Context) ([]CachedDriver, bool, error)
	SetDriverRoster(ctx context.Context, drivers []CachedDriver) error
	InvalidateDriverRoster(ctx context.Context) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface   = (*LockStore)(nil)
	_ RosterCacheInterface = (*CacheStore)(nil)
)
