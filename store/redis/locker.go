// Package redis implements generic.Locker on Redis so several server
// processes can share grant and purchase locks.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/logger"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	log *logger.Logger
	rdb *goredis.Client
}

var _ generic.Locker = (*Locker)(nil)

// New connects to addr and pings it.
func New(addr string, log *logger.Logger) (*Locker, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewWithClient(rdb, log), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *goredis.Client, log *logger.Logger) *Locker {
	return &Locker{
		log: logger.OrNop(log).With("service", "RedisLocker"),
		rdb: rdb,
	}
}

// TryAcquire sets key to a fresh token if it is absent (SET NX PX).
func (l *Locker) TryAcquire(ctx context.Context, key generic.LockKey, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, string(key), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release deletes key if it still holds token. A lease that already
// expired and was taken by someone else is left alone.
func (l *Locker) Release(ctx context.Context, key generic.LockKey, token string) error {
	n, err := releaseScript.Run(ctx, l.rdb, []string{string(key)}, token).Int64()
	if err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	if n == 0 {
		l.log.Warn("lock lease lost before release", "key", key)
	}
	return nil
}

func (l *Locker) Close() error {
	return l.rdb.Close()
}
