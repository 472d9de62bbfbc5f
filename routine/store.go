package routine

import (
	"context"
	"time"

	"github.com/warp/routine-engine/generic"
)

// =============================================================================
// STORE - Persistence consumed by the routine engine
// =============================================================================

// Store is the completion store. Lookups return (nil, nil) when the row is
// absent; the engine turns that into generic.NotFound.
//
// All reads are flat batch fetches. Callers index the results in memory
// instead of walking lazy relations.
type Store interface {
	// Users
	SaveProfile(ctx context.Context, p Profile) error
	GetProfile(ctx context.Context, id generic.UserID) (*Profile, error)
	Profiles(ctx context.Context, ids []generic.UserID) ([]Profile, error)

	// Routines
	SaveRoutine(ctx context.Context, r Routine) error
	GetRoutine(ctx context.Context, id RoutineID) (*Routine, error)
	DeleteRoutine(ctx context.Context, id RoutineID) error
	ListRoutines(ctx context.Context, filter RoutineFilter) ([]Routine, error)

	// RoutinesForUser returns personal routines the user owns and group
	// routines the user belongs to, personal first, oldest first.
	RoutinesForUser(ctx context.Context, userID generic.UserID, filter RoutineFilter) ([]Routine, error)

	// FindDueRoutines is RoutinesForUser restricted to a weekday.
	FindDueRoutines(ctx context.Context, userID generic.UserID, weekday time.Weekday) ([]Routine, error)

	// Sub-routines
	SaveSubRoutine(ctx context.Context, s SubRoutine) error
	GetSubRoutine(ctx context.Context, id SubRoutineID) (*SubRoutine, error)
	SubRoutines(ctx context.Context, routineIDs ...RoutineID) ([]SubRoutine, error)
	DeleteSubRoutine(ctx context.Context, id SubRoutineID) error

	// Completion facts
	FindFacts(ctx context.Context, q FactQuery) ([]Fact, error)
	// UpsertFact inserts the fact or updates Done/UpdatedAt of the existing one.
	UpsertFact(ctx context.Context, f Fact) error
	// InsertFactIfAbsent returns false when a fact for the key already exists.
	InsertFactIfAbsent(ctx context.Context, f Fact) (bool, error)
	DeleteFacts(ctx context.Context, q FactQuery) (int64, error)

	// Memberships. AddMember and RemoveMember keep Routine.MemberCount in
	// step with the membership rows; the count never drops below zero.
	// RemoveMember deletes the user's completion facts for the routine in
	// the same transaction.
	GetMembership(ctx context.Context, routineID RoutineID, userID generic.UserID) (*Membership, error)
	Members(ctx context.Context, routineID RoutineID) ([]Membership, error)
	AddMember(ctx context.Context, m Membership) error
	RemoveMember(ctx context.Context, routineID RoutineID, userID generic.UserID) error
}

// RoutineFilter narrows routine listings. Zero values match everything.
type RoutineFilter struct {
	Type        Type
	Cardinality Cardinality
	Weekday     *time.Weekday
}

// Matches applies the filter in memory.
func (f RoutineFilter) Matches(r Routine) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Cardinality != "" && r.Cardinality != f.Cardinality {
		return false
	}
	if f.Weekday != nil && !r.ScheduledOn(*f.Weekday) {
		return false
	}
	return true
}
