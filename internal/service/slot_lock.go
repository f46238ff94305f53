// Package service holds infrastructure adapters for the booking core:
// a Redis-backed slot lock and a RabbitMQ event publisher.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a slot lock could not be acquired
// before the wait budget ran out.
var ErrLockTimeout = errors.New("slot lock: timed out waiting for lock")

// releaseScript deletes the key only while it still holds our token, so
// an expired lease taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisSlotLocker serializes slot admission across server instances using
// SET NX with a random token and a lease. The lease bounds how long a
// crashed holder can block a slot.
type RedisSlotLocker struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	logger *log.Logger
}

// NewRedisSlotLocker returns a locker whose leases last ttl. Callers wait
// at most 2*ttl for a busy slot.
func NewRedisSlotLocker(rdb redis.UniversalClient, ttl time.Duration, logger *log.Logger) *RedisSlotLocker {
	if rdb == nil {
		panic("nil redis client passed to NewRedisSlotLocker")
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if logger == nil {
		logger = log.New("slotlock")
	}
	return &RedisSlotLocker{
		rdb:    rdb,
		prefix: "tr:slot:",
		ttl:    ttl,
		wait:   2 * ttl,
		retry:  25 * time.Millisecond,
		logger: logger,
	}
}

// Lock acquires the slot named key. The returned func releases it and is
// safe to call more than once.
func (l *RedisSlotLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	backoff := l.retry

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("slot lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be cancelled; release anyway.
			rctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warnf("release slot lock %s: %v", key, err)
			}
		})
	}, nil
}
