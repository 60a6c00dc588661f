package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token,
// so an expired lock re-acquired by another request is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireRideLock attempts to acquire the mutation lock for a ride.
// Returns ok=false if another request holds it. The release func is safe to call once.
func (s *LockStore) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (func(), bool, error) {
	key := fmt.Sprintf("lock:ride:%s", rideID)
	token := uuid.New().String()

	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), s.client, []string{key}, token).Err()
	}
	return release, true, nil
}
