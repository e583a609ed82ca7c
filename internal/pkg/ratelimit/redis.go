package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter keeps one sorted set per key with attempt timestamps as
// scores, so the window is shared by every instance.
type RedisLimiter struct {
	client *redis.Client
	policy Policy
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, policy Policy) *RedisLimiter {
	return &RedisLimiter{client: client, policy: policy, now: time.Now}
}

func (l *RedisLimiter) key(k string) string {
	return fmt.Sprintf("rate:%s:%s", l.policy.Name, k)
}

func (l *RedisLimiter) IsLimited(ctx context.Context, key string) (bool, error) {
	rk := l.key(key)
	cutoff := l.now().Add(-l.policy.Window).UnixMilli()

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, rk, "-inf", "("+strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, rk)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("check rate limit %s: %w", rk, err)
	}
	return card.Val() >= int64(l.policy.Max), nil
}

func (l *RedisLimiter) RecordAttempt(ctx context.Context, key string) error {
	rk := l.key(key)
	now := l.now()

	pipe := l.client.TxPipeline()
	// Members must be unique; two attempts in the same millisecond both count.
	pipe.ZAdd(ctx, rk, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
	pipe.PExpire(ctx, rk, l.policy.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record attempt %s: %w", rk, err)
	}
	return nil
}
