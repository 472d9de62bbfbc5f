/*
Package factory builds the engine object graph from configuration.

PURPOSE:
  One place decides which store, locker and clock back the services, so
  the API, the CLI and the tests all wire the same graph.

WIRING:
  store/sqlite    -> routine.Store, rewards.TxStore
  store/redis     -> generic.Locker when RedisAddr is set
  generic/store   -> MemoryLocker otherwise (single process only)
  generic.Clock   -> SystemClock in the configured timezone

USAGE:
  eng, err := factory.Build(cfg, log)
  if err != nil { ... }
  defer eng.Close()
  streak, err := eng.Streaks.CurrentStreak(ctx, userID)

SEE ALSO:
  - config/config.go
  - api/handlers.go: Consumes Engine
*/
package factory

import (
	"fmt"

	"github.com/warp/routine-engine/config"
	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/generic/store"
	"github.com/warp/routine-engine/logger"
	"github.com/warp/routine-engine/rewards"
	"github.com/warp/routine-engine/routine"
	"github.com/warp/routine-engine/store/redis"
	"github.com/warp/routine-engine/store/sqlite"
)

// Engine holds every service behind the API.
type Engine struct {
	Store  *sqlite.Store
	Locker generic.Locker
	Clock  generic.Clock
	Log    *logger.Logger

	Catalog  *routine.Catalog
	Schedule *routine.Schedule
	Streaks  *routine.StreakCalculator
	Weekly   *routine.WeeklyAggregator
	Groups   *routine.GroupEngine
	Personal *routine.PersonalEngine

	Rewards  *rewards.RewardLedger
	Programs *rewards.Programs
	Shop     *rewards.Shop

	closers []func() error
}

// Build opens the store and locker described by cfg.
func Build(cfg config.Config, log *logger.Logger) (*Engine, error) {
	log = logger.OrNop(log)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var (
		locker  generic.Locker
		closers = []func() error{db.Close}
	)
	if cfg.RedisAddr != "" {
		rl, err := redis.New(cfg.RedisAddr, log)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		locker = rl
		closers = append(closers, rl.Close)
		log.Info("using redis locks", "addr", cfg.RedisAddr)
	} else {
		locker = store.NewMemoryLocker()
		log.Info("using in-process locks")
	}

	eng := New(db, locker, generic.NewSystemClock(loc), cfg, log)
	eng.closers = closers
	return eng, nil
}

// New wires services over an already opened store and locker.
func New(db *sqlite.Store, locker generic.Locker, clock generic.Clock, cfg config.Config, log *logger.Logger) *Engine {
	log = logger.OrNop(log)
	lockOpts := cfg.LockOptions()

	eng := &Engine{
		Store:  db,
		Locker: locker,
		Clock:  clock,
		Log:    log,

		Catalog:  routine.NewCatalog(db, clock),
		Schedule: routine.NewSchedule(db),
		Streaks:  routine.NewStreakCalculator(db, clock, cfg.Streak.LookbackDays),
		Weekly:   routine.NewWeeklyAggregator(db, clock),
		Groups:   routine.NewGroupEngine(db, clock),
		Personal: routine.NewPersonalEngine(db, clock),

		Rewards: rewards.NewRewardLedger(db, locker, clock, lockOpts, log),
		Shop:    rewards.NewShop(db, locker, clock, lockOpts, log),
	}
	eng.Programs = rewards.NewPrograms(eng.Rewards, eng.Streaks, eng.Groups, eng.Personal, clock, cfg.Programs())
	return eng
}

// Close releases the store and locker. Errors after the first are dropped.
func (e *Engine) Close() error {
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
