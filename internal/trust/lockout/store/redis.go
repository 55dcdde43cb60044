package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"kiosk/internal/trust/lockout"
)

// RedisStore keeps lockout state in Redis so every API replica sees the
// same counters. The failure counter expires with the window; the lock key
// expires with the lock.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func failuresKey(key string) string { return "kiosk:lockout:" + key + ":failures" }
func lockKey(key string) string     { return "kiosk:lockout:" + key + ":locked" }

func (s *RedisStore) Get(ctx context.Context, key string) (*lockout.Record, error) {
	vals, err := s.client.MGet(ctx, failuresKey(key), lockKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("get pin lockout: %w", err)
	}
	if vals[0] == nil && vals[1] == nil {
		return nil, nil
	}
	r := &lockout.Record{Identifier: key}
	if v, ok := vals[0].(string); ok {
		r.FailureCount, _ = strconv.Atoi(v)
	}
	if v, ok := vals[1].(string); ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			until := time.UnixMilli(ms)
			r.LockedUntil = &until
		}
	}
	return r, nil
}

// RecordFailure increments the counter and starts the window on the first failure.
func (s *RedisStore) RecordFailure(ctx context.Context, key string, now time.Time, window time.Duration) (*lockout.Record, error) {
	fk := failuresKey(key)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fk)
		pipe.ExpireNX(ctx, fk, window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record pin failure: %w", err)
	}
	r := &lockout.Record{
		Identifier:    key,
		FailureCount:  int(incr.Val()),
		LastFailureAt: now,
	}
	lockedMs, err := s.client.Get(ctx, lockKey(key)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read pin lock: %w", err)
	}
	if err == nil {
		until := time.UnixMilli(lockedMs)
		r.LockedUntil = &until
	}
	return r, nil
}

func (s *RedisStore) Lock(ctx context.Context, key string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, lockKey(key), until.UnixMilli(), ttl)
		pipe.Del(ctx, failuresKey(key))
		return nil
	})
	if err != nil {
		return fmt.Errorf("lock pin entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, failuresKey(key), lockKey(key)).Err(); err != nil {
		return fmt.Errorf("clear pin lockout: %w", err)
	}
	return nil
}
