package routine

import (
	"context"

	"github.com/warp/routine-engine/generic"
)

// =============================================================================
// PERSONAL ENGINE - Completion of routines a user owns
// =============================================================================

// DayProgress is the per-sub-routine state of one routine on one day.
type DayProgress struct {
	Routine     Routine
	Day         generic.TimePoint
	SubRoutines []SubRoutineProgress
	Completed   bool // routine-level fact exists and is done
}

type SubRoutineProgress struct {
	SubRoutine
	Done bool
}

// Percent returns the share of done sub-routines, 0..100.
func (p DayProgress) Percent() int {
	if len(p.SubRoutines) == 0 {
		return 0
	}
	done := 0
	for _, s := range p.SubRoutines {
		if s.Done {
			done++
		}
	}
	return done * 100 / len(p.SubRoutines)
}

type PersonalEngine struct {
	store Store
	clock generic.Clock
}

func NewPersonalEngine(store Store, clock generic.Clock) *PersonalEngine {
	return &PersonalEngine{store: store, clock: clock}
}

// CompleteSubRoutine marks one sub-routine done on day. When this makes
// every sub-routine of the routine done, the routine-level fact is created
// as well. Returns whether the routine is complete afterwards.
func (p *PersonalEngine) CompleteSubRoutine(ctx context.Context, userID generic.UserID, subID SubRoutineID, day generic.TimePoint) (bool, error) {
	sub, err := p.store.GetSubRoutine(ctx, subID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, generic.NotFound("sub_routine", string(subID))
	}
	r, err := p.ownedRoutine(ctx, userID, sub.RoutineID)
	if err != nil {
		return false, err
	}

	if err := p.store.UpsertFact(ctx, Fact{
		UserID:       userID,
		RoutineID:    r.ID,
		SubRoutineID: sub.ID,
		Day:          day,
		Done:         true,
		UpdatedAt:    p.clock.Now(),
	}); err != nil {
		return false, err
	}

	progress, err := p.progress(ctx, userID, r, day)
	if err != nil {
		return false, err
	}
	if progress.Completed {
		return true, nil
	}
	if len(progress.SubRoutines) == 0 || progress.Percent() < 100 {
		return false, nil
	}
	if _, err := p.store.InsertFactIfAbsent(ctx, Fact{
		UserID:    userID,
		RoutineID: r.ID,
		Day:       day,
		Done:      true,
		UpdatedAt: p.clock.Now(),
	}); err != nil {
		return false, err
	}
	return true, nil
}

// UncompleteSubRoutine clears one sub-routine mark. An existing
// routine-level fact for the day is left alone.
func (p *PersonalEngine) UncompleteSubRoutine(ctx context.Context, userID generic.UserID, subID SubRoutineID, day generic.TimePoint) error {
	sub, err := p.store.GetSubRoutine(ctx, subID)
	if err != nil {
		return err
	}
	if sub == nil {
		return generic.NotFound("sub_routine", string(subID))
	}
	if _, err := p.ownedRoutine(ctx, userID, sub.RoutineID); err != nil {
		return err
	}
	return p.store.UpsertFact(ctx, Fact{
		UserID:       userID,
		RoutineID:    sub.RoutineID,
		SubRoutineID: sub.ID,
		Day:          day,
		Done:         false,
		UpdatedAt:    p.clock.Now(),
	})
}

// CompleteRoutine marks the whole routine done on day. Returns false when
// it was already recorded.
func (p *PersonalEngine) CompleteRoutine(ctx context.Context, userID generic.UserID, routineID RoutineID, day generic.TimePoint) (bool, error) {
	r, err := p.ownedRoutine(ctx, userID, routineID)
	if err != nil {
		return false, err
	}
	return p.store.InsertFactIfAbsent(ctx, Fact{
		UserID:    userID,
		RoutineID: r.ID,
		Day:       day,
		Done:      true,
		UpdatedAt: p.clock.Now(),
	})
}

// DayProgress returns each sub-routine's state on day.
func (p *PersonalEngine) DayProgress(ctx context.Context, userID generic.UserID, routineID RoutineID, day generic.TimePoint) (*DayProgress, error) {
	r, err := p.ownedRoutine(ctx, userID, routineID)
	if err != nil {
		return nil, err
	}
	return p.progress(ctx, userID, r, day)
}

// IsComplete reports whether the user's routine has a done routine-level
// fact on day.
func (p *PersonalEngine) IsComplete(ctx context.Context, userID generic.UserID, routineID RoutineID, day generic.TimePoint) (bool, error) {
	r, err := p.ownedRoutine(ctx, userID, routineID)
	if err != nil {
		return false, err
	}
	facts, err := p.store.FindFacts(ctx, FactQuery{
		Users:      []generic.UserID{userID},
		RoutineIDs: []RoutineID{r.ID},
		Level:      RoutineLevel,
		DoneOnly:   true,
	}.OnDay(day))
	if err != nil {
		return false, err
	}
	return len(facts) > 0, nil
}

func (p *PersonalEngine) progress(ctx context.Context, userID generic.UserID, r *Routine, day generic.TimePoint) (*DayProgress, error) {
	subs, err := p.store.SubRoutines(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	facts, err := p.store.FindFacts(ctx, FactQuery{
		Users:      []generic.UserID{userID},
		RoutineIDs: []RoutineID{r.ID},
		DoneOnly:   true,
	}.OnDay(day))
	if err != nil {
		return nil, err
	}

	done := make(map[SubRoutineID]bool, len(facts))
	out := &DayProgress{Routine: *r, Day: day, SubRoutines: make([]SubRoutineProgress, len(subs))}
	for _, f := range facts {
		if f.IsRoutineLevel() {
			out.Completed = true
			continue
		}
		done[f.SubRoutineID] = true
	}
	for i, s := range subs {
		out.SubRoutines[i] = SubRoutineProgress{SubRoutine: s, Done: done[s.ID]}
	}
	return out, nil
}

func (p *PersonalEngine) ownedRoutine(ctx context.Context, userID generic.UserID, id RoutineID) (*Routine, error) {
	r, err := p.store.GetRoutine(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil || r.IsGroup() {
		return nil, generic.NotFound("routine", string(id))
	}
	if r.OwnerID != userID {
		return nil, generic.ErrForbidden
	}
	return r, nil
}
