/*
streak.go - Current streak of completed due days

PURPOSE:
  Counts how many consecutive due days, walking backward from today, the
  user completed at least one scheduled routine.

ALGORITHM:
  day = today, streak = 0
  repeat at most Lookback times:
    nothing due on day          -> step back, streak unchanged
    something due, any done     -> streak++, step back
    something due, none done    -> stop

  "Done" means a routine-level fact with Done=true for one of the routines
  due that day. Personal and group routines count equally.

LOOKBACK BOUNDARY:
  Exactly Lookback days are examined: today and the Lookback-1 days before
  it. A day outside that window is never read, so the streak is capped at
  Lookback. A user with nothing ever due walks the whole window and ends
  with 0.

BATCHING:
  The schedule is fetched once and indexed by weekday. Facts for the whole
  window are fetched in one query and indexed by day. The walk itself never
  touches the store.

SEE ALSO:
  - schedule.go: WeekPlan
  - rewards/policies.go: Weekly streak bonus eligibility
*/
package routine

import (
	"context"

	"github.com/warp/routine-engine/generic"
)

// DefaultLookback is the number of days the streak walk may examine.
const DefaultLookback = 365

type StreakCalculator struct {
	store    Store
	schedule *Schedule
	clock    generic.Clock
	lookback int
}

func NewStreakCalculator(store Store, clock generic.Clock, lookback int) *StreakCalculator {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &StreakCalculator{
		store:    store,
		schedule: NewSchedule(store),
		clock:    clock,
		lookback: lookback,
	}
}

// Lookback returns the configured window length in days.
func (c *StreakCalculator) Lookback() int { return c.lookback }

// CurrentStreak returns the user's streak as of the clock's today.
func (c *StreakCalculator) CurrentStreak(ctx context.Context, userID generic.UserID) (int, error) {
	return c.StreakAsOf(ctx, userID, c.clock.Today())
}

// StreakAsOf runs the walk starting from an arbitrary day.
func (c *StreakCalculator) StreakAsOf(ctx context.Context, userID generic.UserID, today generic.TimePoint) (int, error) {
	if err := requireUser(ctx, c.store, userID); err != nil {
		return 0, err
	}

	plan, err := c.schedule.Plan(ctx, userID)
	if err != nil {
		return 0, err
	}

	window := generic.Period{Start: today.AddDays(-(c.lookback - 1)), End: today}

	done := make(map[string]map[RoutineID]bool)
	if !plan.Empty() {
		facts, err := c.store.FindFacts(ctx, FactQuery{
			Users:    []generic.UserID{userID},
			Level:    RoutineLevel,
			From:     window.Start,
			To:       window.ExclusiveEnd(),
			DoneOnly: true,
		})
		if err != nil {
			return 0, err
		}
		for _, f := range facts {
			key := f.Day.String()
			if done[key] == nil {
				done[key] = make(map[RoutineID]bool)
			}
			done[key][f.RoutineID] = true
		}
	}

	streak := 0
	day := today
	for i := 0; i < c.lookback; i++ {
		due := plan.On(day.Weekday())
		if due.Any() {
			if !anyDone(due, done[day.String()]) {
				break
			}
			streak++
		}
		day = day.AddDays(-1)
	}
	return streak, nil
}

func anyDone(due Due, doneToday map[RoutineID]bool) bool {
	if len(doneToday) == 0 {
		return false
	}
	for _, id := range due.IDs() {
		if doneToday[id] {
			return true
		}
	}
	return false
}

func requireUser(ctx context.Context, store Store, userID generic.UserID) error {
	p, err := store.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if p == nil {
		return generic.NotFound("user", string(userID))
	}
	return nil
}
