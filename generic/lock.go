/*
lock.go - Keyed, TTL-bounded critical sections

PURPOSE:
  Reward granting and stock-limited purchases must serialize their
  read-check-write sequence per key. WithLock is the one place that
  acquires a key, runs the critical section and releases the key.

CONTRACT:
  - Per-key serialization only; different keys never block each other.
  - Acquisition waits at most LockOptions.Wait, then fails closed with
    LockTimeoutError (retryable).
  - Once acquired, fn runs to completion even if the caller's context is
    cancelled. Release also uses a non-cancellable context.
  - TTL must exceed the critical-section duration. If a holder dies, the
    key frees itself when the TTL lapses.

IMPLEMENTATIONS:
  - generic/store/locker.go: MemoryLocker (single process)
  - store/redis/locker.go: Redis SET NX PX (multi process)

USAGE:
  err := generic.WithLock(ctx, locker, rewards.ItemLockKey(itemID), opts,
      func(ctx context.Context) error {
          // re-read, check, write
          return nil
      })

SEE ALSO:
  - rewards/ledger.go: Grant gate
  - rewards/shop.go: Purchase lock
*/
package generic

import (
	"context"
	"time"
)

// LockKey identifies one serialized resource. Build keys with the typed
// constructors in the owning package, never by hand.
type LockKey string

// Locker is a keyed mutual-exclusion primitive with expiring ownership.
type Locker interface {
	// TryAcquire attempts to take key once without waiting. On success it
	// returns an owner token that must be passed to Release.
	TryAcquire(ctx context.Context, key LockKey, ttl time.Duration) (token string, ok bool, err error)

	// Release frees key if token still owns it.
	Release(ctx context.Context, key LockKey, token string) error
}

// LockOptions bounds how long a lock is held and waited for.
type LockOptions struct {
	TTL           time.Duration // ownership lease
	Wait          time.Duration // max time spent acquiring
	RetryInterval time.Duration // first backoff step, doubled up to MaxRetryInterval
}

const (
	DefaultLockTTL       = 5 * time.Second
	DefaultLockWait      = 3 * time.Second
	defaultRetryInterval = 10 * time.Millisecond
	maxRetryInterval     = 200 * time.Millisecond
	releaseTimeout       = 2 * time.Second
)

func DefaultLockOptions() LockOptions {
	return LockOptions{TTL: DefaultLockTTL, Wait: DefaultLockWait, RetryInterval: defaultRetryInterval}
}

func (o LockOptions) withDefaults() LockOptions {
	if o.TTL <= 0 {
		o.TTL = DefaultLockTTL
	}
	if o.Wait < 0 {
		o.Wait = 0
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = defaultRetryInterval
	}
	return o
}

// WithLock runs fn while holding key.
//
// Errors from fn are returned unchanged. Release failures are not reported:
// the work is already committed and the TTL reclaims the key.
func WithLock(ctx context.Context, locker Locker, key LockKey, opts LockOptions, fn func(ctx context.Context) error) error {
	opts = opts.withDefaults()

	token, err := acquire(ctx, locker, key, opts)
	if err != nil {
		return err
	}

	critical := context.WithoutCancel(ctx)
	defer func() {
		releaseCtx, cancel := context.WithTimeout(critical, releaseTimeout)
		defer cancel()
		_ = locker.Release(releaseCtx, key, token)
	}()

	return fn(critical)
}

func acquire(ctx context.Context, locker Locker, key LockKey, opts LockOptions) (string, error) {
	start := time.Now()
	deadline := start.Add(opts.Wait)
	backoff := opts.RetryInterval

	for {
		token, ok, err := locker.TryAcquire(ctx, key, opts.TTL)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", &LockTimeoutError{Key: key, Waited: time.Since(start)}
		}

		sleep := backoff
		if sleep > remaining {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", &LockTimeoutError{Key: key, Waited: time.Since(start)}
		case <-timer.C:
		}

		backoff *= 2
		if backoff > maxRetryInterval {
			backoff = maxRetryInterval
		}
	}
}
