/*
policies.go - Built-in reward programs

PURPOSE:
  Binds eligibility rules to AwardOnce. Each program picks the Reason
  (kind + period key) and the amount; the ledger guarantees once-only.

PROGRAMS:
  Weekly streak bonus:
    - eligible when the current streak >= WeeklyStreakThreshold
    - period = ISO week of today
  Group completion:
    - eligible when every sub-routine of the group is done today
    - period = today (one bonus per day, whichever group)
  Personal completion:
    - eligible when the personal routine is complete today
    - period = today

SEE ALSO:
  - ledger.go: AwardOnce
  - routine/streak.go, routine/group.go, routine/personal.go
*/
package rewards

import (
	"context"
	"fmt"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/routine"
)

// StreakSource reports a user's current streak.
type StreakSource interface {
	CurrentStreak(ctx context.Context, userID generic.UserID) (int, error)
}

// CompletionChecker reports whether a user completed a routine on a day.
type CompletionChecker interface {
	IsComplete(ctx context.Context, userID generic.UserID, routineID routine.RoutineID, day generic.TimePoint) (bool, error)
}

// ProgramConfig holds the amounts and thresholds of the built-in programs.
type ProgramConfig struct {
	WeeklyBonusPoints        int
	WeeklyStreakThreshold    int
	PersonalCompletionPoints int
	GroupCompletionPoints    int
}

func DefaultProgramConfig() ProgramConfig {
	return ProgramConfig{
		WeeklyBonusPoints:        100,
		WeeklyStreakThreshold:    7,
		PersonalCompletionPoints: 100,
		GroupCompletionPoints:    100,
	}
}

func (c ProgramConfig) Validate() error {
	if c.WeeklyBonusPoints <= 0 || c.PersonalCompletionPoints <= 0 || c.GroupCompletionPoints <= 0 {
		return fmt.Errorf("%w: program amounts must be positive", generic.ErrInvalidInput)
	}
	if c.WeeklyStreakThreshold < 1 {
		return fmt.Errorf("%w: streak threshold must be at least 1", generic.ErrInvalidInput)
	}
	return nil
}

// Programs claims the built-in rewards on behalf of a user.
type Programs struct {
	ledger   *RewardLedger
	streaks  StreakSource
	groups   CompletionChecker
	personal CompletionChecker
	clock    generic.Clock
	cfg      ProgramConfig
}

func NewPrograms(ledger *RewardLedger, streaks StreakSource, groups, personal CompletionChecker, clock generic.Clock, cfg ProgramConfig) *Programs {
	return &Programs{
		ledger:   ledger,
		streaks:  streaks,
		groups:   groups,
		personal: personal,
		clock:    clock,
		cfg:      cfg,
	}
}

func (p *Programs) Config() ProgramConfig { return p.cfg }

// ClaimWeeklyBonus grants the weekly streak bonus for the current ISO week.
func (p *Programs) ClaimWeeklyBonus(ctx context.Context, userID generic.UserID) (AwardResult, error) {
	reason := Reason{Kind: KindWeeklyStreakBonus, Period: WeekPeriod(p.clock.Today())}
	return p.ledger.AwardOnce(ctx, userID, reason, generic.Points(p.cfg.WeeklyBonusPoints), func(ctx context.Context) (bool, error) {
		streak, err := p.streaks.CurrentStreak(ctx, userID)
		if err != nil {
			return false, err
		}
		return streak >= p.cfg.WeeklyStreakThreshold, nil
	})
}

// ClaimGroupCompletion grants today's group completion bonus.
func (p *Programs) ClaimGroupCompletion(ctx context.Context, userID generic.UserID, groupID routine.RoutineID) (AwardResult, error) {
	today := p.clock.Today()
	reason := Reason{Kind: KindGroupCompletion, Period: DayPeriod(today)}
	return p.ledger.AwardOnce(ctx, userID, reason, generic.Points(p.cfg.GroupCompletionPoints), func(ctx context.Context) (bool, error) {
		return p.groups.IsComplete(ctx, userID, groupID, today)
	})
}

// ClaimPersonalCompletion grants today's personal completion bonus.
func (p *Programs) ClaimPersonalCompletion(ctx context.Context, userID generic.UserID, routineID routine.RoutineID) (AwardResult, error) {
	today := p.clock.Today()
	reason := Reason{Kind: KindPersonalCompletion, Period: DayPeriod(today)}
	return p.ledger.AwardOnce(ctx, userID, reason, generic.Points(p.cfg.PersonalCompletionPoints), func(ctx context.Context) (bool, error) {
		return p.personal.IsComplete(ctx, userID, routineID, today)
	})
}
