package counter

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsemetrics/guardrail/internal/clock"
	"github.com/pulsemetrics/guardrail/internal/models"
	"github.com/pulsemetrics/guardrail/internal/storage"
)

// RedisStore keeps counters in Redis. INCR is the atomic fetch-and-add the
// contract requires; keys expire with their window so the store cleans up
// after itself.
type RedisStore struct {
	redis *storage.RedisClient
	clk   clock.Clock
}

func NewRedisStore(redis *storage.RedisClient, clk clock.Clock) *RedisStore {
	return &RedisStore{
		redis: redis,
		clk:   clk,
	}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) Increment(ctx context.Context, identifier string, kind models.IdentifierKind, action string, window time.Duration) (int64, time.Time, error) {
	index := windowIndex(s.clk.Now(), window)
	redisKey := key(identifier, kind, action, window, index)

	pipe := s.redis.TxPipeline()
	counter := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, err
	}

	return counter.Val(), windowStart(index, window), nil
}

func (s *RedisStore) Peek(ctx context.Context, identifier string, kind models.IdentifierKind, action string, window time.Duration) (int64, time.Time, error) {
	index := windowIndex(s.clk.Now(), window)
	redisKey := key(identifier, kind, action, window, index)

	val, err := s.redis.Get(ctx, redisKey)
	if err == redis.Nil {
		return 0, windowStart(index, window), nil
	}
	if err != nil {
		return 0, time.Time{}, err
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, time.Time{}, err
	}

	return count, windowStart(index, window), nil
}

func (s *RedisStore) Remove(ctx context.Context, identifier string, kind models.IdentifierKind, action string) error {
	pattern := keyPattern(identifier, kind, action)

	return s.redis.Scan(ctx, pattern, func(keys []string) error {
		return s.redis.Del(ctx, keys...)
	})
}
