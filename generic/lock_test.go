package generic_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/generic/store"
)

func TestWithLock_SerializesSameKey(t *testing.T) {
	locker := store.NewMemoryLocker()
	opts := generic.LockOptions{TTL: 5 * time.Second, Wait: 5 * time.Second}

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := generic.WithLock(context.Background(), locker, "lock:test", opts, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxSeen)
					if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
	assert.False(t, locker.Held("lock:test"))
}

func TestWithLock_TimesOutWhenHeld(t *testing.T) {
	ctx := context.Background()
	locker := store.NewMemoryLocker()

	// GIVEN: another holder owns the key
	_, ok, err := locker.TryAcquire(ctx, "lock:busy", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// WHEN
	called := false
	err = generic.WithLock(ctx, locker, "lock:busy", generic.LockOptions{TTL: time.Second, Wait: 30 * time.Millisecond}, func(ctx context.Context) error {
		called = true
		return nil
	})

	// THEN: fails closed with a retryable error
	var timeout *generic.LockTimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, generic.LockKey("lock:busy"), timeout.Key)
	assert.True(t, generic.IsRetryable(err))
	assert.False(t, called)
}

func TestWithLock_ReleasesAfterError(t *testing.T) {
	ctx := context.Background()
	locker := store.NewMemoryLocker()

	err := generic.WithLock(ctx, locker, "lock:err", generic.DefaultLockOptions(), func(ctx context.Context) error {
		assert.True(t, locker.Held("lock:err"))
		return generic.ErrOutOfStock
	})
	assert.ErrorIs(t, err, generic.ErrOutOfStock)
	assert.False(t, locker.Held("lock:err"))
}

func TestWithLock_DifferentKeysDoNotBlock(t *testing.T) {
	ctx := context.Background()
	locker := store.NewMemoryLocker()
	opts := generic.LockOptions{TTL: time.Second, Wait: 0}

	err := generic.WithLock(ctx, locker, "lock:a", opts, func(ctx context.Context) error {
		return generic.WithLock(ctx, locker, "lock:b", opts, func(ctx context.Context) error {
			return nil
		})
	})
	assert.NoError(t, err)
}

func TestWithLock_FinishesCriticalSectionAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	locker := store.NewMemoryLocker()

	var innerErr error
	err := generic.WithLock(ctx, locker, "lock:cancel", generic.DefaultLockOptions(), func(ctx context.Context) error {
		cancel()
		innerErr = ctx.Err()
		return nil
	})
	assert.NoError(t, err)
	assert.NoError(t, innerErr)
}
