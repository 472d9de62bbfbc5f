package routine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/routine"
)

var monWedFri = routine.NewWeekdaySet(time.Monday, time.Wednesday, time.Friday)

func TestStreak_MissedLastDueDayBreaksStreak(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	r, _ := f.personalRoutine(t, alice, "Gym", monWedFri)

	// GIVEN: Monday and Wednesday done, Friday missed, today is Saturday
	f.complete(t, alice, r.ID, saturday.AddDays(-5), saturday.AddDays(-3))

	// WHEN
	streak, err := f.streaks.CurrentStreak(f.ctx, alice)

	// THEN: Saturday is skipped, Friday was due and not done
	require.NoError(t, err)
	assert.Equal(t, 0, streak)
}

func TestStreak_SkipsDaysWithNothingDue(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	r, _ := f.personalRoutine(t, alice, "Gym", monWedFri)

	// GIVEN: Mon, Wed and Fri of this week done; last Friday missed
	f.complete(t, alice, r.ID, saturday.AddDays(-5), saturday.AddDays(-3), saturday.AddDays(-1))

	streak, err := f.streaks.CurrentStreak(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 3, streak)
}

func TestStreak_ConsecutiveDays(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	r, _ := f.personalRoutine(t, alice, "Stretch", everyDay)

	for i := 0; i < 9; i++ {
		f.complete(t, alice, r.ID, saturday.AddDays(-i))
	}

	streak, err := f.streaks.CurrentStreak(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 9, streak)
}

func TestStreak_AnyDueRoutineCounts(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	a, _ := f.personalRoutine(t, alice, "Read", everyDay)
	f.personalRoutine(t, alice, "Walk", everyDay)

	// Only one of the two due routines is done on each day.
	f.complete(t, alice, a.ID, saturday, saturday.AddDays(-1))

	streak, err := f.streaks.CurrentStreak(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, streak)
}

func TestStreak_CompletionOfRoutineNotDueIsIgnored(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	f.personalRoutine(t, alice, "Weekend chores", routine.NewWeekdaySet(time.Saturday))
	weekday, _ := f.personalRoutine(t, alice, "Commute log", routine.NewWeekdaySet(time.Monday))

	// GIVEN: a fact for a Monday routine recorded on Saturday
	f.complete(t, alice, weekday.ID, saturday)

	streak, err := f.streaks.CurrentStreak(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, streak)
}

func TestStreak_GroupCompletionCounts(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	g, subs := f.groupRoutine(t, alice, "No-spend", everyDay, "Skip coffee")
	require.NoError(t, f.groups.Join(f.ctx, bob, g.ID))

	require.NoError(t, f.groups.MarkSubRoutineStatus(f.ctx, bob, g.ID, subs[0].ID, true))
	require.NoError(t, f.groups.RecordGroupCompletion(f.ctx, bob, g.ID, true))

	streak, err := f.streaks.CurrentStreak(f.ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)

	// Alice is due too but recorded nothing.
	streak, err = f.streaks.CurrentStreak(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, streak)
}

func TestStreak_NothingEverDue(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")

	streak, err := f.streaks.CurrentStreak(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, streak)
}

func TestStreak_CappedAtLookback(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	r, _ := f.personalRoutine(t, alice, "Stretch", everyDay)
	for i := 0; i < 10; i++ {
		f.complete(t, alice, r.ID, saturday.AddDays(-i))
	}

	short := routine.NewStreakCalculator(f.db, f.clock, 5)
	assert.Equal(t, 5, short.Lookback())

	streak, err := short.CurrentStreak(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 5, streak)
}

func TestStreak_AsOfEarlierDay(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	r, _ := f.personalRoutine(t, alice, "Stretch", everyDay)
	f.complete(t, alice, r.ID, saturday.AddDays(-3), saturday.AddDays(-4))

	streak, err := f.streaks.StreakAsOf(f.ctx, alice, saturday.AddDays(-3))
	require.NoError(t, err)
	assert.Equal(t, 2, streak)
}

func TestStreak_UnknownUser(t *testing.T) {
	f := newFixture(t, saturday)

	_, err := f.streaks.CurrentStreak(f.ctx, generic.UserID("ghost"))
	assert.True(t, generic.IsNotFound(err))
}
