package rewards_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/rewards"
	"github.com/warp/routine-engine/routine"
)

type fixedStreak int

func (s fixedStreak) CurrentStreak(context.Context, generic.UserID) (int, error) {
	return int(s), nil
}

// completions marks (user, routine) pairs as complete on any day.
type completions map[string]bool

func (c completions) IsComplete(_ context.Context, userID generic.UserID, id routine.RoutineID, _ generic.TimePoint) (bool, error) {
	return c[string(userID)+"/"+string(id)], nil
}

func newPrograms(h *harness, streak int, groups, personal completions) *rewards.Programs {
	return rewards.NewPrograms(h.ledger, fixedStreak(streak), groups, personal, h.clock, rewards.DefaultProgramConfig())
}

func TestWeeklyBonus_RequiresThreshold(t *testing.T) {
	h := newHarness(t)

	short := newPrograms(h, 6, nil, nil)
	result, err := short.ClaimWeeklyBonus(h.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, rewards.NotEligible, result.Outcome)

	enough := newPrograms(h, 7, nil, nil)
	result, err = enough.ClaimWeeklyBonus(h.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, rewards.Granted, result.Outcome)
	assert.Equal(t, rewards.PeriodKey("2025-W07"), result.Grant.Reason.Period)

	result, err = enough.ClaimWeeklyBonus(h.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, rewards.AlreadyGranted, result.Outcome)
	assert.Equal(t, int64(100), h.available(t, "alice"))
}

func TestGroupCompletion_OncePerDayAcrossGroups(t *testing.T) {
	h := newHarness(t)
	groups := completions{"alice/g1": true, "alice/g2": true}
	p := newPrograms(h, 0, groups, nil)

	first, err := p.ClaimGroupCompletion(h.ctx, "alice", "g1")
	require.NoError(t, err)
	assert.Equal(t, rewards.Granted, first.Outcome)

	second, err := p.ClaimGroupCompletion(h.ctx, "alice", "g2")
	require.NoError(t, err)
	assert.Equal(t, rewards.AlreadyGranted, second.Outcome)

	bob, err := p.ClaimGroupCompletion(h.ctx, "bob", "g1")
	require.NoError(t, err)
	assert.Equal(t, rewards.NotEligible, bob.Outcome)
}

func TestPersonalCompletion(t *testing.T) {
	h := newHarness(t)
	p := newPrograms(h, 0, nil, completions{"alice/r1": true, "alice/r2": true})

	result, err := p.ClaimPersonalCompletion(h.ctx, "alice", "r1")
	require.NoError(t, err)
	assert.Equal(t, rewards.Granted, result.Outcome)
	assert.Equal(t, rewards.KindPersonalCompletion, result.Grant.Reason.Kind)
	assert.Equal(t, rewards.DayPeriod(today), result.Grant.Reason.Period)

	result, err = p.ClaimPersonalCompletion(h.ctx, "alice", "r2")
	require.NoError(t, err)
	assert.Equal(t, rewards.AlreadyGranted, result.Outcome)
}

func TestProgramConfig_Validate(t *testing.T) {
	assert.NoError(t, rewards.DefaultProgramConfig().Validate())

	cfg := rewards.DefaultProgramConfig()
	cfg.WeeklyStreakThreshold = 0
	assert.ErrorIs(t, cfg.Validate(), generic.ErrInvalidInput)

	cfg = rewards.DefaultProgramConfig()
	cfg.GroupCompletionPoints = -1
	assert.ErrorIs(t, cfg.Validate(), generic.ErrInvalidInput)
}
