package routine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/routine"
)

func TestWeekly_CurrentWeekMondayFirst(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	r, _ := f.personalRoutine(t, alice, "Gym", routine.NewWeekdaySet(time.Monday, time.Wednesday))

	monday := generic.StartOfWeek(saturday)
	f.complete(t, alice, r.ID, monday, monday.AddDays(2))
	// Outside the week
	f.complete(t, alice, r.ID, monday.AddDays(-7))

	rows, err := f.weekly.CurrentWeek(f.ctx, alice, routine.TypeDailyLife)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	days := rows[0].Days
	require.Len(t, days, 7)
	for i, wd := range generic.MondayFirst {
		assert.Equal(t, wd, days[i].Weekday)
	}
	assert.True(t, days[0].Done)
	assert.False(t, days[1].Done)
	assert.True(t, days[2].Done)
	assert.Equal(t, 2, rows[0].DoneCount())
}

func TestWeekly_PartialRange(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	r, _ := f.personalRoutine(t, alice, "Read", everyDay)
	f.complete(t, alice, r.ID, saturday.AddDays(-1))

	// Wednesday..Friday
	period, err := generic.NewPeriod(saturday.AddDays(-3), saturday.AddDays(-1))
	require.NoError(t, err)

	rows, err := f.weekly.Summarize(f.ctx, alice, period, routine.TypeDailyLife)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, rows[0].Days, 3)
	assert.Equal(t, time.Wednesday, rows[0].Days[0].Weekday)
	assert.Equal(t, time.Friday, rows[0].Days[2].Weekday)
	assert.True(t, rows[0].Days[2].Done)
}

func TestWeekly_FiltersByTypeAndOrdersPersonalFirst(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")

	group, _ := f.groupRoutine(t, alice, "Team walk", everyDay, "Walk")
	personal, _ := f.personalRoutine(t, alice, "Stretch", everyDay)
	f.create(t, alice, routine.Routine{
		Title:       "Budget",
		Type:        routine.TypeFinance,
		Cardinality: routine.Personal,
		Days:        everyDay,
	})

	rows, err := f.weekly.CurrentWeek(f.ctx, alice, routine.TypeDailyLife)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, personal.ID, rows[0].RoutineID)
	assert.Equal(t, group.ID, rows[1].RoutineID)
	assert.Equal(t, routine.Group, rows[1].Cardinality)

	finance, err := f.weekly.CurrentWeek(f.ctx, alice, routine.TypeFinance)
	require.NoError(t, err)
	require.Len(t, finance, 1)
	assert.Equal(t, "Budget", finance[0].Title)
}

func TestWeekly_NoRoutines(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")

	rows, err := f.weekly.CurrentWeek(f.ctx, alice, routine.TypeFinance)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestWeekly_InvalidPeriod(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")

	_, err := f.weekly.Summarize(f.ctx, alice, generic.Period{Start: saturday, End: saturday.AddDays(-1)}, routine.TypeDailyLife)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestWeekly_RejectsOversizedRange(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	f.personalRoutine(t, alice, "Stretch", everyDay, "Neck")

	// WHEN: the range spans millennia
	wide := generic.Period{
		Start: generic.NewTimePoint(1, time.January, 1),
		End:   generic.NewTimePoint(9999, time.December, 31),
	}
	_, err := f.weekly.Summarize(f.ctx, alice, wide, routine.TypeDailyLife)

	// THEN
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	// AND: exactly MaxSummaryDays is still accepted, one day more is not
	start := saturday.AddDays(-routine.MaxSummaryDays + 1)
	rows, err := f.weekly.Summarize(f.ctx, alice, generic.Period{Start: start, End: saturday}, routine.TypeDailyLife)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0].Days, 7)

	_, err = f.weekly.Summarize(f.ctx, alice, generic.Period{Start: start.AddDays(-1), End: saturday}, routine.TypeDailyLife)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}
