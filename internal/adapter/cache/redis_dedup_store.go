package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedupStore remembers which events this kiosk already applied, so
// redelivered broker messages can be acknowledged without acting twice. Marks
// are per kiosk: every kiosk sees every event through its own consumer group.
type RedisDedupStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDedupStore(rdb *redis.Client, kioskID string, ttl time.Duration) *RedisDedupStore {
	return &RedisDedupStore{rdb: rdb, prefix: "kiosk:" + kioskID + ":dedup:", ttl: ttl}
}

func (s *RedisDedupStore) key(scope, key string) string { return s.prefix + scope + ":" + key }

// FirstSeen marks scope/key and reports whether this call was the first.
func (s *RedisDedupStore) FirstSeen(ctx context.Context, scope, key string) (bool, error) {
	return s.rdb.SetNX(ctx, s.key(scope, key), "1", s.ttl).Result()
}

// Forget drops the mark, e.g. when the event was not applied and may matter later.
func (s *RedisDedupStore) Forget(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, s.key(scope, key)).Err()
}
