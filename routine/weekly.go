package routine

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/routine-engine/generic"
)

// =============================================================================
// WEEKLY AGGREGATOR - routine x weekday completion matrix
// =============================================================================

// DayStatus is one cell of the matrix.
type DayStatus struct {
	Weekday time.Weekday
	Done    bool
}

// RoutineSummary is one row of the matrix. Days is ordered Monday..Sunday
// and holds one entry per weekday that occurs in the requested range.
type RoutineSummary struct {
	RoutineID   RoutineID
	Title       string
	Cardinality Cardinality
	Days        []DayStatus
}

// DoneCount returns how many weekdays are marked done.
func (s RoutineSummary) DoneCount() int {
	n := 0
	for _, d := range s.Days {
		if d.Done {
			n++
		}
	}
	return n
}

// MaxSummaryDays bounds the range Summarize accepts.
const MaxSummaryDays = 366

type WeeklyAggregator struct {
	store Store
	clock generic.Clock
}

func NewWeeklyAggregator(store Store, clock generic.Clock) *WeeklyAggregator {
	return &WeeklyAggregator{store: store, clock: clock}
}

// Summarize builds the matrix for the user's routines of routineType over
// period. Routines come back personal first, then group.
//
// Facts for every routine and every day are fetched in a single query over
// [Start, End+1) and indexed by routine and day, so each cell is a map hit.
// When the period spans more than seven days, the latest date of a weekday
// decides that weekday's cell. Periods longer than MaxSummaryDays fail with
// ErrInvalidPeriod.
func (a *WeeklyAggregator) Summarize(ctx context.Context, userID generic.UserID, period generic.Period, routineType Type) ([]RoutineSummary, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if period.Start.AddDays(MaxSummaryDays - 1).Before(period.End) {
		return nil, fmt.Errorf("%w: %s is longer than %d days", generic.ErrInvalidPeriod, period, MaxSummaryDays)
	}
	if err := requireUser(ctx, a.store, userID); err != nil {
		return nil, err
	}

	routines, err := a.store.RoutinesForUser(ctx, userID, RoutineFilter{Type: routineType})
	if err != nil {
		return nil, err
	}
	if len(routines) == 0 {
		return []RoutineSummary{}, nil
	}

	ids := make([]RoutineID, len(routines))
	for i, r := range routines {
		ids[i] = r.ID
	}

	facts, err := a.store.FindFacts(ctx, FactQuery{
		Users:      []generic.UserID{userID},
		RoutineIDs: ids,
		Level:      RoutineLevel,
		From:       period.Start,
		To:         period.ExclusiveEnd(),
		DoneOnly:   true,
	})
	if err != nil {
		return nil, err
	}

	completed := make(map[RoutineID]map[string]bool, len(routines))
	for _, f := range facts {
		if completed[f.RoutineID] == nil {
			completed[f.RoutineID] = make(map[string]bool)
		}
		completed[f.RoutineID][f.Day.String()] = true
	}

	days := period.Days()
	summaries := make([]RoutineSummary, 0, len(routines))
	for _, r := range routines {
		status := make(map[time.Weekday]bool, 7)
		for _, day := range days {
			status[day.Weekday()] = completed[r.ID][day.String()]
		}
		summaries = append(summaries, RoutineSummary{
			RoutineID:   r.ID,
			Title:       r.Title,
			Cardinality: r.Cardinality,
			Days:        orderedDays(status),
		})
	}
	return summaries, nil
}

// CurrentWeek summarizes the ISO week containing today.
func (a *WeeklyAggregator) CurrentWeek(ctx context.Context, userID generic.UserID, routineType Type) ([]RoutineSummary, error) {
	return a.Summarize(ctx, userID, generic.WeekOf(a.clock.Today()), routineType)
}

func orderedDays(status map[time.Weekday]bool) []DayStatus {
	out := make([]DayStatus, 0, len(status))
	for _, wd := range generic.MondayFirst {
		done, ok := status[wd]
		if !ok {
			continue
		}
		out = append(out, DayStatus{Weekday: wd, Done: done})
	}
	return out
}
