package routine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/routine"
)

func TestCatalog_CreateRoutineValidation(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")

	valid := routine.Routine{
		Title:       "Stretch",
		Type:        routine.TypeDailyLife,
		Cardinality: routine.Personal,
		Days:        everyDay,
	}

	tests := []struct {
		name   string
		mutate func(r *routine.Routine)
	}{
		{"empty title", func(r *routine.Routine) { r.Title = "  " }},
		{"unknown type", func(r *routine.Routine) { r.Type = "hobby" }},
		{"unknown cardinality", func(r *routine.Routine) { r.Cardinality = "team" }},
		{"no weekdays", func(r *routine.Routine) { r.Days = 0 }},
		{"end before start", func(r *routine.Routine) { r.StartTime, r.EndTime = "09:00", "08:00" }},
		{"malformed time", func(r *routine.Routine) { r.StartTime, r.EndTime = "9am", "10:00" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			_, err := f.catalog.CreateRoutine(f.ctx, alice, r)
			assert.ErrorIs(t, err, generic.ErrInvalidInput)
		})
	}

	_, err := f.catalog.CreateRoutine(f.ctx, "ghost", valid)
	assert.True(t, generic.IsNotFound(err))
}

func TestCatalog_SubRoutinesAreOwnerOnly(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	r, subs := f.personalRoutine(t, alice, "Stretch", everyDay, "Neck", "Back")

	assert.Equal(t, 0, subs[0].Position)
	assert.Equal(t, 1, subs[1].Position)

	_, err := f.catalog.AddSubRoutines(f.ctx, bob, r.ID, []routine.SubRoutine{{Name: "Legs"}})
	assert.ErrorIs(t, err, generic.ErrForbidden)

	more, err := f.catalog.AddSubRoutines(f.ctx, alice, r.ID, []routine.SubRoutine{{Name: "Legs"}})
	require.NoError(t, err)
	assert.Equal(t, 2, more[0].Position)

	require.NoError(t, f.catalog.DeleteSubRoutine(f.ctx, alice, r.ID, subs[0].ID))
	remaining, err := f.catalog.SubRoutines(f.ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestCatalog_DeleteRoutine(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	r, _ := f.personalRoutine(t, alice, "Stretch", everyDay, "Neck")
	f.complete(t, alice, r.ID, saturday)

	assert.ErrorIs(t, f.catalog.DeleteRoutine(f.ctx, bob, r.ID), generic.ErrForbidden)
	require.NoError(t, f.catalog.DeleteRoutine(f.ctx, alice, r.ID))

	_, err := f.catalog.GetRoutine(f.ctx, r.ID)
	assert.True(t, generic.IsNotFound(err))

	facts, err := f.db.FindFacts(f.ctx, routine.FactQuery{RoutineIDs: []routine.RoutineID{r.ID}})
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestSchedule_DueOnSplitsPersonalAndGroup(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	f.personalRoutine(t, alice, "Gym", monWedFri)
	f.personalRoutine(t, alice, "Weekend chores", routine.NewWeekdaySet(time.Saturday))
	g, _ := f.groupRoutine(t, bob, "Team walk", monWedFri, "Walk")
	require.NoError(t, f.groups.Join(f.ctx, alice, g.ID))

	due, err := f.schedule.DueOn(f.ctx, alice, time.Monday)
	require.NoError(t, err)
	assert.Len(t, due.Personal, 1)
	assert.Len(t, due.Group, 1)
	assert.True(t, due.Any())

	due, err = f.schedule.DueOn(f.ctx, alice, time.Tuesday)
	require.NoError(t, err)
	assert.False(t, due.Any())

	plan, err := f.schedule.Plan(f.ctx, alice)
	require.NoError(t, err)
	assert.Len(t, plan.On(time.Saturday).Personal, 1)
	assert.Empty(t, plan.On(time.Saturday).Group)
}

func TestWeekdaySet(t *testing.T) {
	set, err := routine.ParseWeekdaySet([]string{"MON", "wed", "FRI"})
	require.NoError(t, err)
	assert.Equal(t, monWedFri, set)
	assert.Equal(t, []string{"MON", "WED", "FRI"}, set.Codes())
	assert.False(t, set.Has(time.Sunday))

	_, err = routine.ParseWeekdaySet([]string{"FUN"})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}
