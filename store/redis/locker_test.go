package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/store/redis"
)

// newLocker connects to REDIS_ADDR or skips.
func newLocker(t *testing.T) *redis.Locker {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	l, err := redis.New(addr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLocker_AcquireRelease(t *testing.T) {
	l := newLocker(t)
	ctx := context.Background()
	key := generic.LockKey("test:lock:" + uuid.NewString())

	token, ok, err := l.TryAcquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryAcquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// A stale token does not free the key.
	require.NoError(t, l.Release(ctx, key, "someone-else"))
	_, ok, err = l.TryAcquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, key, token))
	token, ok, err = l.TryAcquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(ctx, key, token))
}

func TestLocker_LeaseExpires(t *testing.T) {
	l := newLocker(t)
	ctx := context.Background()
	key := generic.LockKey("test:lock:" + uuid.NewString())

	_, ok, err := l.TryAcquire(ctx, key, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(100 * time.Millisecond)

	token, ok, err := l.TryAcquire(ctx, key, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(ctx, key, token))
}

func TestLocker_WithLockTimesOut(t *testing.T) {
	l := newLocker(t)
	ctx := context.Background()
	key := generic.LockKey("test:lock:" + uuid.NewString())

	token, ok, err := l.TryAcquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	defer l.Release(ctx, key, token)

	err = generic.WithLock(ctx, l, key, generic.LockOptions{TTL: time.Second, Wait: 50 * time.Millisecond}, func(ctx context.Context) error {
		return nil
	})
	assert.True(t, generic.IsRetryable(err))
}

func TestNew_RequiresAddress(t *testing.T) {
	_, err := redis.New("", nil)
	assert.Error(t, err)
}
