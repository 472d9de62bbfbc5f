package routine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/routine"
)

func TestGroup_JoinAndLeave(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	g, _ := f.groupRoutine(t, alice, "No-spend", everyDay, "Skip coffee")

	// GIVEN: the owner is the first member
	assert.Equal(t, 1, g.MemberCount)

	// WHEN: bob joins
	require.NoError(t, f.groups.Join(f.ctx, bob, g.ID))

	// THEN
	stored, err := f.catalog.GetRoutine(f.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.MemberCount)

	assert.ErrorIs(t, f.groups.Join(f.ctx, bob, g.ID), generic.ErrAlreadyJoined)
	assert.ErrorIs(t, f.groups.Join(f.ctx, alice, g.ID), generic.ErrAlreadyJoined)
	assert.ErrorIs(t, f.groups.Leave(f.ctx, alice, g.ID), generic.ErrForbidden)
	assert.ErrorIs(t, f.groups.Leave(f.ctx, carol, g.ID), generic.ErrForbidden)

	require.NoError(t, f.groups.Leave(f.ctx, bob, g.ID))
	stored, err = f.catalog.GetRoutine(f.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.MemberCount)
}

func TestGroup_LeaveRemovesFacts(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	g, subs := f.groupRoutine(t, alice, "No-spend", everyDay, "Skip coffee")
	require.NoError(t, f.groups.Join(f.ctx, bob, g.ID))
	require.NoError(t, f.groups.MarkSubRoutineStatus(f.ctx, bob, g.ID, subs[0].ID, true))

	require.NoError(t, f.groups.Leave(f.ctx, bob, g.ID))

	facts, err := f.db.FindFacts(f.ctx, routine.FactQuery{
		Users:      []generic.UserID{bob},
		RoutineIDs: []routine.RoutineID{g.ID},
	})
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestGroup_RecordCompletion(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	g, subs := f.groupRoutine(t, alice, "No-spend", everyDay, "Skip coffee", "Cook lunch")
	require.NoError(t, f.groups.Join(f.ctx, bob, g.ID))

	// GIVEN: one of two sub-routines done
	require.NoError(t, f.groups.MarkSubRoutineStatus(f.ctx, bob, g.ID, subs[0].ID, true))

	// THEN: success is rejected
	err := f.groups.RecordGroupCompletion(f.ctx, bob, g.ID, true)
	assert.ErrorIs(t, err, generic.ErrInvalidState)

	// WHEN: the last sub-routine is done
	require.NoError(t, f.groups.MarkSubRoutineStatus(f.ctx, bob, g.ID, subs[1].ID, true))
	require.NoError(t, f.groups.RecordGroupCompletion(f.ctx, bob, g.ID, true))

	done, err := f.groups.IsComplete(f.ctx, bob, g.ID, saturday)
	require.NoError(t, err)
	assert.True(t, done)

	// Failure cannot be recorded while everything is done.
	err = f.groups.RecordGroupCompletion(f.ctx, bob, g.ID, false)
	assert.ErrorIs(t, err, generic.ErrInvalidState)

	// WHEN: a mark is withdrawn and failure recorded
	require.NoError(t, f.groups.MarkSubRoutineStatus(f.ctx, bob, g.ID, subs[1].ID, false))
	require.NoError(t, f.groups.RecordGroupCompletion(f.ctx, bob, g.ID, false))

	// THEN: the routine-level fact is gone
	facts, err := f.db.FindFacts(f.ctx, routine.FactQuery{
		Users:      []generic.UserID{bob},
		RoutineIDs: []routine.RoutineID{g.ID},
		Level:      routine.RoutineLevel,
	}.OnDay(saturday))
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestGroup_WithoutSubRoutinesCannotSucceed(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	g, _ := f.groupRoutine(t, alice, "Empty", everyDay)

	err := f.groups.RecordGroupCompletion(f.ctx, alice, g.ID, true)
	assert.ErrorIs(t, err, generic.ErrInvalidState)

	snap, err := f.groups.MemberSnapshot(f.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Succeeded.Count)
	assert.Equal(t, 1, snap.Failed.Count)
}

func TestGroup_NonMemberCannotMark(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	g, subs := f.groupRoutine(t, alice, "No-spend", everyDay, "Skip coffee")

	err := f.groups.MarkSubRoutineStatus(f.ctx, bob, g.ID, subs[0].ID, true)
	assert.ErrorIs(t, err, generic.ErrForbidden)

	err = f.groups.RecordGroupCompletion(f.ctx, bob, g.ID, true)
	assert.ErrorIs(t, err, generic.ErrForbidden)

	// A personal routine is not a group.
	p, _ := f.personalRoutine(t, alice, "Stretch", everyDay)
	err = f.groups.Join(f.ctx, bob, p.ID)
	assert.True(t, generic.IsNotFound(err))
}

func TestGroup_MemberSnapshot(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	g, subs := f.groupRoutine(t, alice, "No-spend", everyDay, "Skip coffee", "Cook lunch")
	require.NoError(t, f.groups.Join(f.ctx, bob, g.ID))
	require.NoError(t, f.groups.Join(f.ctx, carol, g.ID))

	// GIVEN: alice done, bob halfway, carol idle
	for _, s := range subs {
		require.NoError(t, f.groups.MarkSubRoutineStatus(f.ctx, alice, g.ID, s.ID, true))
	}
	require.NoError(t, f.groups.MarkSubRoutineStatus(f.ctx, bob, g.ID, subs[0].ID, true))

	// WHEN
	snap, err := f.groups.MemberSnapshot(f.ctx, g.ID)
	require.NoError(t, err)

	// THEN
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 1, snap.Succeeded.Count)
	assert.Equal(t, 2, snap.Failed.Count)
	require.Len(t, snap.Succeeded.Profiles, 1)
	assert.Equal(t, alice, snap.Succeeded.Profiles[0].UserID)
	assert.Equal(t, "alice", snap.Succeeded.Profiles[0].Nickname)
}

func TestGroup_Detail(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	g, subs := f.groupRoutine(t, alice, "No-spend", everyDay, "Skip coffee")
	require.NoError(t, f.groups.MarkSubRoutineStatus(f.ctx, alice, g.ID, subs[0].ID, true))

	// Outsider sees a preview and no marks.
	outside, err := f.groups.Detail(f.ctx, bob, g.ID)
	require.NoError(t, err)
	assert.False(t, outside.IsJoined)
	assert.Nil(t, outside.Snapshot)
	assert.Nil(t, outside.SubRoutines[0].Done)
	require.Len(t, outside.MemberPreview, 1)

	// Owner sees their marks and the snapshot.
	inside, err := f.groups.Detail(f.ctx, alice, g.ID)
	require.NoError(t, err)
	assert.True(t, inside.IsOwner)
	assert.True(t, inside.IsJoined)
	require.NotNil(t, inside.SubRoutines[0].Done)
	assert.True(t, *inside.SubRoutines[0].Done)
	require.NotNil(t, inside.Snapshot)
	assert.Equal(t, 1, inside.Snapshot.Succeeded.Count)
}

func TestGroup_ListGroups(t *testing.T) {
	f := newFixture(t, saturday)
	alice := f.user(t, "alice")
	f.groupRoutine(t, alice, "No-spend", everyDay, "Skip coffee")
	f.personalRoutine(t, alice, "Stretch", everyDay)

	groups, err := f.groups.ListGroups(f.ctx, "")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "No-spend", groups[0].Title)
}
