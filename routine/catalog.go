package routine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/warp/routine-engine/generic"
)

// =============================================================================
// CATALOG - Owner-managed routine definitions
// =============================================================================

// Catalog creates and removes routines, sub-routines and users. Only the
// owner may change a routine.
type Catalog struct {
	store Store
	clock generic.Clock
}

func NewCatalog(store Store, clock generic.Clock) *Catalog {
	return &Catalog{store: store, clock: clock}
}

// RegisterUser stores a profile, generating an ID when none is given.
func (c *Catalog) RegisterUser(ctx context.Context, p Profile) (*Profile, error) {
	if strings.TrimSpace(p.Nickname) == "" {
		return nil, fmt.Errorf("%w: nickname is required", generic.ErrInvalidInput)
	}
	if p.UserID == "" {
		p.UserID = generic.UserID(uuid.NewString())
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = c.clock.Now()
	}
	if err := c.store.SaveProfile(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateRoutine validates and stores a routine owned by ownerID. Group
// routines start with the owner as their only member.
func (c *Catalog) CreateRoutine(ctx context.Context, ownerID generic.UserID, r Routine) (*Routine, error) {
	if err := requireUser(ctx, c.store, ownerID); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	r.ID = RoutineID(uuid.NewString())
	r.OwnerID = ownerID
	r.MemberCount = 0
	r.CreatedAt = c.clock.Now()

	if err := c.store.SaveRoutine(ctx, r); err != nil {
		return nil, err
	}
	if r.IsGroup() {
		if err := c.store.AddMember(ctx, Membership{
			RoutineID: r.ID,
			UserID:    ownerID,
			Owner:     true,
			JoinedAt:  r.CreatedAt,
		}); err != nil {
			return nil, err
		}
		r.MemberCount = 1
	}
	return &r, nil
}

// GetRoutine returns a routine or NotFound.
func (c *Catalog) GetRoutine(ctx context.Context, id RoutineID) (*Routine, error) {
	r, err := c.store.GetRoutine(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, generic.NotFound("routine", string(id))
	}
	return r, nil
}

// SubRoutines returns the routine's sub-routines in position order.
func (c *Catalog) SubRoutines(ctx context.Context, routineID RoutineID) ([]SubRoutine, error) {
	if _, err := c.GetRoutine(ctx, routineID); err != nil {
		return nil, err
	}
	return c.store.SubRoutines(ctx, routineID)
}

// RoutinesForUser lists everything the user owns or has joined.
func (c *Catalog) RoutinesForUser(ctx context.Context, userID generic.UserID, filter RoutineFilter) ([]Routine, error) {
	if err := requireUser(ctx, c.store, userID); err != nil {
		return nil, err
	}
	return c.store.RoutinesForUser(ctx, userID, filter)
}

// DeleteRoutine removes a routine with its sub-routines, memberships and facts.
func (c *Catalog) DeleteRoutine(ctx context.Context, userID generic.UserID, id RoutineID) error {
	if _, err := c.requireOwner(ctx, userID, id); err != nil {
		return err
	}
	return c.store.DeleteRoutine(ctx, id)
}

// AddSubRoutines appends sub-routines to a routine, in order.
func (c *Catalog) AddSubRoutines(ctx context.Context, userID generic.UserID, routineID RoutineID, subs []SubRoutine) ([]SubRoutine, error) {
	r, err := c.requireOwner(ctx, userID, routineID)
	if err != nil {
		return nil, err
	}
	existing, err := c.store.SubRoutines(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	out := make([]SubRoutine, 0, len(subs))
	for i, s := range subs {
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("%w: sub-routine name is required", generic.ErrInvalidInput)
		}
		if s.DurationMinutes < 0 {
			return nil, fmt.Errorf("%w: negative duration", generic.ErrInvalidInput)
		}
		s.ID = SubRoutineID(uuid.NewString())
		s.RoutineID = r.ID
		s.Position = len(existing) + i
		if err := c.store.SaveSubRoutine(ctx, s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// DeleteSubRoutine removes a sub-routine and every fact recorded for it.
func (c *Catalog) DeleteSubRoutine(ctx context.Context, userID generic.UserID, routineID RoutineID, subID SubRoutineID) error {
	r, err := c.requireOwner(ctx, userID, routineID)
	if err != nil {
		return err
	}
	sub, err := c.store.GetSubRoutine(ctx, subID)
	if err != nil {
		return err
	}
	if sub == nil || sub.RoutineID != r.ID {
		return generic.NotFound("sub_routine", string(subID))
	}
	if _, err := c.store.DeleteFacts(ctx, FactQuery{
		RoutineIDs:    []RoutineID{r.ID},
		SubRoutineIDs: []SubRoutineID{sub.ID},
	}); err != nil {
		return err
	}
	return c.store.DeleteSubRoutine(ctx, sub.ID)
}

func (c *Catalog) requireOwner(ctx context.Context, userID generic.UserID, id RoutineID) (*Routine, error) {
	r, err := c.GetRoutine(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.OwnerID != userID {
		return nil, generic.ErrForbidden
	}
	return r, nil
}
