package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const counterPrefix = "ratelimit:"

// RedisCounterStore keeps per-window counters in Redis. INCRBY is atomic on
// the server, which gives the increment-and-compare guarantee the limiter
// needs across any number of API processes.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore wraps an existing Redis client.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) IncrBy(ctx context.Context, key string, windowID int64, cost int64, ttl time.Duration) (int64, error) {
	redisKey := fmt.Sprintf("%s%s:%d", counterPrefix, key, windowID)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.IncrBy(ctx, redisKey, cost)
		// NX: only the first increment of a window sets the expiry.
		p.ExpireNX(ctx, redisKey, ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// FlushAll deletes every limiter counter. SCAN keeps the operation safe on a
// shared Redis instance; a bare FLUSHDB would take unrelated keys with it.
func (s *RedisCounterStore) FlushAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, counterPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
