package routine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/routine"
	"github.com/warp/routine-engine/store/sqlite"
)

// Saturday
var saturday = generic.NewTimePoint(2025, time.February, 15)

type fixture struct {
	ctx      context.Context
	db       *sqlite.Store
	clock    *generic.FixedClock
	catalog  *routine.Catalog
	personal *routine.PersonalEngine
	groups   *routine.GroupEngine
	streaks  *routine.StreakCalculator
	weekly   *routine.WeeklyAggregator
	schedule *routine.Schedule
}

func newFixture(t *testing.T, today generic.TimePoint) *fixture {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := generic.NewFixedClock(today)
	return &fixture{
		ctx:      context.Background(),
		db:       db,
		clock:    clock,
		catalog:  routine.NewCatalog(db, clock),
		personal: routine.NewPersonalEngine(db, clock),
		groups:   routine.NewGroupEngine(db, clock),
		streaks:  routine.NewStreakCalculator(db, clock, routine.DefaultLookback),
		weekly:   routine.NewWeeklyAggregator(db, clock),
		schedule: routine.NewSchedule(db),
	}
}

func (f *fixture) user(t *testing.T, id string) generic.UserID {
	t.Helper()
	p, err := f.catalog.RegisterUser(f.ctx, routine.Profile{UserID: generic.UserID(id), Nickname: id})
	require.NoError(t, err)
	return p.UserID
}

func (f *fixture) personalRoutine(t *testing.T, owner generic.UserID, title string, days routine.WeekdaySet, subs ...string) (*routine.Routine, []routine.SubRoutine) {
	t.Helper()
	return f.create(t, owner, routine.Routine{
		Title:       title,
		Type:        routine.TypeDailyLife,
		Cardinality: routine.Personal,
		Days:        days,
	}, subs...)
}

func (f *fixture) groupRoutine(t *testing.T, owner generic.UserID, title string, days routine.WeekdaySet, subs ...string) (*routine.Routine, []routine.SubRoutine) {
	t.Helper()
	return f.create(t, owner, routine.Routine{
		Title:       title,
		Type:        routine.TypeDailyLife,
		Cardinality: routine.Group,
		Days:        days,
	}, subs...)
}

func (f *fixture) create(t *testing.T, owner generic.UserID, r routine.Routine, subs ...string) (*routine.Routine, []routine.SubRoutine) {
	t.Helper()
	created, err := f.catalog.CreateRoutine(f.ctx, owner, r)
	require.NoError(t, err)
	if len(subs) == 0 {
		return created, nil
	}
	in := make([]routine.SubRoutine, len(subs))
	for i, name := range subs {
		in[i] = routine.SubRoutine{Name: name, DurationMinutes: 5}
	}
	out, err := f.catalog.AddSubRoutines(f.ctx, owner, created.ID, in)
	require.NoError(t, err)
	return created, out
}

func (f *fixture) complete(t *testing.T, user generic.UserID, id routine.RoutineID, days ...generic.TimePoint) {
	t.Helper()
	for _, d := range days {
		_, err := f.personal.CompleteRoutine(f.ctx, user, id, d)
		require.NoError(t, err)
	}
}

var everyDay = routine.NewWeekdaySet(
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
)
