package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*RedisSlotLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSlotLocker(rdb, ttl, nil), mr
}

func TestRedisSlotLockerAcquireRelease(t *testing.T) {
	l, mr := newTestLocker(t, 5*time.Second)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "1:2024-06-02:19:00")
	require.NoError(t, err)
	assert.True(t, mr.Exists("tr:slot:1:2024-06-02:19:00"))
	assert.Equal(t, 5*time.Second, mr.TTL("tr:slot:1:2024-06-02:19:00"))

	unlock()
	assert.False(t, mr.Exists("tr:slot:1:2024-06-02:19:00"))
	unlock()
}

func TestRedisSlotLockerSerializes(t *testing.T) {
	l, _ := newTestLocker(t, 5*time.Second)
	ctx := context.Background()

	var inside, overlaps int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "slot")
			if !assert.NoError(t, err) {
				return
			}
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Zero(t, overlaps)
}

func TestRedisSlotLockerStaleReleaseKeepsNewHolder(t *testing.T) {
	l, mr := newTestLocker(t, time.Second)
	ctx := context.Background()

	stale, err := l.Lock(ctx, "slot")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := l.Lock(ctx, "slot")
	require.NoError(t, err)
	holder, err := mr.Get("tr:slot:slot")
	require.NoError(t, err)

	stale()
	got, err := mr.Get("tr:slot:slot")
	require.NoError(t, err)
	assert.Equal(t, holder, got, "expired holder must not release the new lease")
	fresh()
	assert.False(t, mr.Exists("tr:slot:slot"))
}

func TestRedisSlotLockerContextAndTimeout(t *testing.T) {
	l, _ := newTestLocker(t, 50*time.Millisecond)
	held, err := l.Lock(context.Background(), "slot")
	require.NoError(t, err)
	defer held()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, "slot")
	assert.ErrorIs(t, err, context.Canceled)

	// miniredis does not expire keys on its own, so the wait budget runs out.
	_, err = l.Lock(context.Background(), "slot")
	assert.ErrorIs(t, err, ErrLockTimeout)
}
