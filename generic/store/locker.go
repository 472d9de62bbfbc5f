// Package store provides an in-process implementation of generic.Locker.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/routine-engine/generic"
)

// =============================================================================
// MEMORY LOCKER - Single-process generic.Locker
// =============================================================================

// MemoryLocker implements generic.Locker with an in-process lease table.
// It is only correct when every caller shares the same process.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[generic.LockKey]lease
	now    func() time.Time
}

type lease struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[generic.LockKey]lease), now: time.Now}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, key generic.LockKey, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expires) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.leases[key] = lease{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key generic.LockKey, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.leases[key]; ok && held.token == token {
		delete(l.leases, key)
	}
	return nil
}

// Held reports whether key currently has an unexpired owner.
func (l *MemoryLocker) Held(key generic.LockKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.leases[key]
	return ok && l.now().Before(held.expires)
}
