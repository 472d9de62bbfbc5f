package routine

import (
	"context"
	"time"

	"github.com/warp/routine-engine/generic"
)

// =============================================================================
// SCHEDULE - Which routines are due on a weekday
// =============================================================================

// Due is the set of routines a user has scheduled on one weekday.
type Due struct {
	Personal []Routine
	Group    []Routine
}

// Any reports whether anything is due.
func (d Due) Any() bool {
	return len(d.Personal) > 0 || len(d.Group) > 0
}

// IDs returns the routine IDs of both buckets.
func (d Due) IDs() []RoutineID {
	ids := make([]RoutineID, 0, len(d.Personal)+len(d.Group))
	for _, r := range d.Personal {
		ids = append(ids, r.ID)
	}
	for _, r := range d.Group {
		ids = append(ids, r.ID)
	}
	return ids
}

func splitDue(routines []Routine) Due {
	var d Due
	for _, r := range routines {
		if r.IsGroup() {
			d.Group = append(d.Group, r)
		} else {
			d.Personal = append(d.Personal, r)
		}
	}
	return d
}

// WeekPlan indexes a user's routines by weekday. It is built from one
// fetch and answers DueOn for any weekday without touching the store.
type WeekPlan struct {
	byDay map[time.Weekday]Due
}

func NewWeekPlan(routines []Routine) WeekPlan {
	plan := WeekPlan{byDay: make(map[time.Weekday]Due, 7)}
	for _, wd := range generic.MondayFirst {
		var due []Routine
		for _, r := range routines {
			if r.ScheduledOn(wd) {
				due = append(due, r)
			}
		}
		plan.byDay[wd] = splitDue(due)
	}
	return plan
}

func (p WeekPlan) On(wd time.Weekday) Due {
	return p.byDay[wd]
}

// Empty reports whether nothing is due on any weekday.
func (p WeekPlan) Empty() bool {
	for _, d := range p.byDay {
		if d.Any() {
			return false
		}
	}
	return true
}

// Schedule answers "what is due" questions. Pure read.
type Schedule struct {
	store Store
}

func NewSchedule(store Store) *Schedule {
	return &Schedule{store: store}
}

// DueOn returns the personal routines the user owns and the group routines
// the user belongs to that are scheduled on weekday.
func (s *Schedule) DueOn(ctx context.Context, userID generic.UserID, weekday time.Weekday) (Due, error) {
	routines, err := s.store.FindDueRoutines(ctx, userID, weekday)
	if err != nil {
		return Due{}, err
	}
	return splitDue(routines), nil
}

// Plan fetches every routine of the user once and indexes it by weekday.
func (s *Schedule) Plan(ctx context.Context, userID generic.UserID) (WeekPlan, error) {
	routines, err := s.store.RoutinesForUser(ctx, userID, RoutineFilter{})
	if err != nil {
		return WeekPlan{}, err
	}
	return NewWeekPlan(routines), nil
}
