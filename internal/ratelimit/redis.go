package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTracker shares an account's hourly budget across processes. The
// counter key carries an hour TTL set on first increment, so the reset
// is as lazy as the in-memory tracker's: nothing runs for idle accounts.
type RedisTracker struct {
	client *redis.Client
	limit  int
}

func NewRedisTracker(client *redis.Client, hourlyLimit int) *RedisTracker {
	return &RedisTracker{client: client, limit: hourlyLimit}
}

func counterKey(accountID int64) string {
	return fmt.Sprintf("ratelimit:count:%d", accountID)
}

func cooldownKey(accountID int64) string {
	return fmt.Sprintf("ratelimit:cooldown:%d", accountID)
}

func (t *RedisTracker) CheckLimit(ctx context.Context, accountID int64) error {
	ttl, err := t.client.TTL(ctx, cooldownKey(accountID)).Result()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if ttl > 0 {
		return &ErrLimited{
			AccountID:  accountID,
			Reason:     "cooldown active",
			RetryAfter: ttl,
		}
	}

	count, err := t.client.Get(ctx, counterKey(accountID)).Int()
	if err != nil && err != redis.Nil {
		slog.Info(err.Error())
		return err
	}
	if count >= t.limit {
		resetIn, err := t.client.TTL(ctx, counterKey(accountID)).Result()
		if err != nil {
			resetIn = time.Hour
		}
		return &ErrLimited{
			AccountID:  accountID,
			Reason:     "hourly post budget exhausted",
			RetryAfter: resetIn,
		}
	}
	return nil
}

func (t *RedisTracker) RecordPost(ctx context.Context, accountID int64) error {
	key := counterKey(accountID)
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if count == 1 {
		if err := t.client.Expire(ctx, key, time.Hour).Err(); err != nil {
			slog.Info(err.Error())
			return err
		}
	}
	return nil
}

func (t *RedisTracker) SetCooldown(ctx context.Context, accountID int64, d time.Duration) error {
	if err := t.client.Set(ctx, cooldownKey(accountID), "1", d).Err(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
