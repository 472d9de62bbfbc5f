/*
group.go - Group routine consensus

PURPOSE:
  Group members share one sub-routine list. Each member marks sub-routines
  done for today; the group-level record for a member is derived from those
  marks and is never an independent claim.

RULES:
  MarkSubRoutineStatus:
    - caller must be owner or member            else ErrForbidden
    - sub-routine must belong to the group      else ErrNotFound
    - upserts today's sub-routine fact

  RecordGroupCompletion(success=true):
    - caller must be a member                   else ErrForbidden
    - every sub-routine done today (and >= 1)   else InvalidState "not all done"
    - upserts today's routine-level fact to done

  RecordGroupCompletion(success=false):
    - caller must be a member                   else ErrForbidden
    - must NOT be fully done today              else InvalidState "already fully done"
    - deletes today's routine-level fact

  MemberSnapshot:
    - per member: distinct done sub-routines today vs total
    - succeeded iff completed == total && total > 0
    - counts plus up to MaxBucketProfiles profiles per bucket

  Join / Leave:
    - joining twice (owner included)            -> ErrAlreadyJoined
    - owner cannot leave                        -> ErrForbidden
    - non-member cannot leave                   -> ErrForbidden
    - leaving removes the member's facts for the group

SEE ALSO:
  - rewards/policies.go: Group completion bonus uses IsComplete
*/
package routine

import (
	"context"

	"github.com/warp/routine-engine/generic"
)

// MaxBucketProfiles caps the profiles returned per snapshot bucket.
const MaxBucketProfiles = 8

// =============================================================================
// RESULT TYPES
// =============================================================================

type MemberBucket struct {
	Count    int
	Profiles []Profile
}

func (b *MemberBucket) add(p Profile) {
	b.Count++
	if len(b.Profiles) < MaxBucketProfiles {
		b.Profiles = append(b.Profiles, p)
	}
}

// Snapshot is the group-wide view of today's progress.
type Snapshot struct {
	RoutineID RoutineID
	Day       generic.TimePoint
	Total     int // sub-routines in the group
	Succeeded MemberBucket
	Failed    MemberBucket
}

// SubRoutineStatus pairs a sub-routine with the caller's mark for today.
// Done is nil when the caller has not joined the group.
type SubRoutineStatus struct {
	SubRoutine
	Done *bool
}

type GroupDetail struct {
	Routine     Routine
	IsOwner     bool
	IsJoined    bool
	SubRoutines []SubRoutineStatus

	// Joined callers see the snapshot, others a preview of members.
	Snapshot      *Snapshot
	MemberPreview []Profile
}

// =============================================================================
// GROUP ENGINE
// =============================================================================

type GroupEngine struct {
	store Store
	clock generic.Clock
}

func NewGroupEngine(store Store, clock generic.Clock) *GroupEngine {
	return &GroupEngine{store: store, clock: clock}
}

// MarkSubRoutineStatus records the caller's mark for one sub-routine today.
func (g *GroupEngine) MarkSubRoutineStatus(ctx context.Context, userID generic.UserID, groupID RoutineID, subID SubRoutineID, done bool) error {
	group, err := g.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := g.requireMember(ctx, group, userID); err != nil {
		return err
	}

	sub, err := g.store.GetSubRoutine(ctx, subID)
	if err != nil {
		return err
	}
	if sub == nil || sub.RoutineID != group.ID {
		return generic.NotFound("sub_routine", string(subID))
	}

	return g.store.UpsertFact(ctx, Fact{
		UserID:       userID,
		RoutineID:    group.ID,
		SubRoutineID: sub.ID,
		Day:          g.clock.Today(),
		Done:         done,
		UpdatedAt:    g.clock.Now(),
	})
}

// RecordGroupCompletion claims (success) or retracts (failure) today's
// group-level completion for the caller.
func (g *GroupEngine) RecordGroupCompletion(ctx context.Context, userID generic.UserID, groupID RoutineID, success bool) error {
	group, err := g.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := g.requireMember(ctx, group, userID); err != nil {
		return err
	}

	today := g.clock.Today()
	allDone, err := g.allSubRoutinesDone(ctx, userID, group.ID, today)
	if err != nil {
		return err
	}

	if success {
		if !allDone {
			return generic.InvalidState("record group completion", "not all sub-routines are done")
		}
		return g.store.UpsertFact(ctx, Fact{
			UserID:    userID,
			RoutineID: group.ID,
			Day:       today,
			Done:      true,
			UpdatedAt: g.clock.Now(),
		})
	}

	if allDone {
		return generic.InvalidState("record group failure", "sub-routines are already fully done")
	}
	_, err = g.store.DeleteFacts(ctx, FactQuery{
		Users:      []generic.UserID{userID},
		RoutineIDs: []RoutineID{group.ID},
		Level:      RoutineLevel,
	}.OnDay(today))
	return err
}

// MemberSnapshot buckets every member by today's progress.
func (g *GroupEngine) MemberSnapshot(ctx context.Context, groupID RoutineID) (*Snapshot, error) {
	group, err := g.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return g.snapshot(ctx, group, g.clock.Today())
}

func (g *GroupEngine) snapshot(ctx context.Context, group *Routine, day generic.TimePoint) (*Snapshot, error) {
	subs, err := g.store.SubRoutines(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	members, err := g.store.Members(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]generic.UserID, len(members))
	for i, m := range members {
		userIDs[i] = m.UserID
	}

	progress, err := g.progress(ctx, userIDs, group.ID, subs, day)
	if err != nil {
		return nil, err
	}
	profiles, err := g.profileIndex(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		RoutineID: group.ID,
		Day:       day,
		Total:     len(subs),
		Succeeded: MemberBucket{Profiles: []Profile{}},
		Failed:    MemberBucket{Profiles: []Profile{}},
	}
	for _, uid := range userIDs {
		p := profiles[uid]
		if p.UserID == "" {
			p = Profile{UserID: uid}
		}
		if snap.Total > 0 && progress[uid] == snap.Total {
			snap.Succeeded.add(p)
		} else {
			snap.Failed.add(p)
		}
	}
	return snap, nil
}

// Join adds the caller to the group.
func (g *GroupEngine) Join(ctx context.Context, userID generic.UserID, groupID RoutineID) error {
	group, err := g.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := requireUser(ctx, g.store, userID); err != nil {
		return err
	}

	if group.OwnerID == userID {
		return generic.ErrAlreadyJoined
	}
	m, err := g.store.GetMembership(ctx, group.ID, userID)
	if err != nil {
		return err
	}
	if m != nil {
		return generic.ErrAlreadyJoined
	}

	return g.store.AddMember(ctx, Membership{
		RoutineID: group.ID,
		UserID:    userID,
		JoinedAt:  g.clock.Now(),
	})
}

// Leave removes the caller and the caller's facts from the group.
func (g *GroupEngine) Leave(ctx context.Context, userID generic.UserID, groupID RoutineID) error {
	group, err := g.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID == userID {
		return generic.ErrForbidden
	}
	m, err := g.store.GetMembership(ctx, group.ID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return generic.ErrForbidden
	}

	return g.store.RemoveMember(ctx, group.ID, userID)
}

// Detail returns the group as seen by the caller.
func (g *GroupEngine) Detail(ctx context.Context, userID generic.UserID, groupID RoutineID) (*GroupDetail, error) {
	group, err := g.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	isMember, err := g.isMember(ctx, group, userID)
	if err != nil {
		return nil, err
	}

	subs, err := g.store.SubRoutines(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	detail := &GroupDetail{
		Routine:     *group,
		IsOwner:     group.OwnerID == userID,
		IsJoined:    isMember,
		SubRoutines: make([]SubRoutineStatus, len(subs)),
	}

	today := g.clock.Today()
	var doneIDs map[SubRoutineID]bool
	if isMember {
		doneIDs, err = g.doneSubRoutines(ctx, userID, group.ID, today)
		if err != nil {
			return nil, err
		}
	}
	for i, s := range subs {
		detail.SubRoutines[i] = SubRoutineStatus{SubRoutine: s}
		if isMember {
			done := doneIDs[s.ID]
			detail.SubRoutines[i].Done = &done
		}
	}

	if isMember {
		detail.Snapshot, err = g.snapshot(ctx, group, today)
		return detail, err
	}

	members, err := g.store.Members(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]generic.UserID, 0, MaxBucketProfiles)
	for _, m := range members {
		if len(ids) == MaxBucketProfiles {
			break
		}
		ids = append(ids, m.UserID)
	}
	detail.MemberPreview, err = g.store.Profiles(ctx, ids)
	return detail, err
}

// IsComplete reports whether userID is a member who finished every
// sub-routine of the group on day.
func (g *GroupEngine) IsComplete(ctx context.Context, userID generic.UserID, groupID RoutineID, day generic.TimePoint) (bool, error) {
	group, err := g.loadGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	member, err := g.isMember(ctx, group, userID)
	if err != nil || !member {
		return false, err
	}
	return g.allSubRoutinesDone(ctx, userID, group.ID, day)
}

// ListGroups returns group routines, optionally narrowed by type.
func (g *GroupEngine) ListGroups(ctx context.Context, routineType Type) ([]Routine, error) {
	return g.store.ListRoutines(ctx, RoutineFilter{Type: routineType, Cardinality: Group})
}

// =============================================================================
// HELPERS
// =============================================================================

func (g *GroupEngine) loadGroup(ctx context.Context, id RoutineID) (*Routine, error) {
	r, err := g.store.GetRoutine(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil || !r.IsGroup() {
		return nil, generic.NotFound("group_routine", string(id))
	}
	return r, nil
}

func (g *GroupEngine) isMember(ctx context.Context, group *Routine, userID generic.UserID) (bool, error) {
	if group.OwnerID == userID {
		return true, nil
	}
	m, err := g.store.GetMembership(ctx, group.ID, userID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

func (g *GroupEngine) requireMember(ctx context.Context, group *Routine, userID generic.UserID) error {
	ok, err := g.isMember(ctx, group, userID)
	if err != nil {
		return err
	}
	if !ok {
		return generic.ErrForbidden
	}
	return nil
}

func (g *GroupEngine) allSubRoutinesDone(ctx context.Context, userID generic.UserID, groupID RoutineID, day generic.TimePoint) (bool, error) {
	subs, err := g.store.SubRoutines(ctx, groupID)
	if err != nil {
		return false, err
	}
	if len(subs) == 0 {
		return false, nil
	}
	done, err := g.doneSubRoutines(ctx, userID, groupID, day)
	if err != nil {
		return false, err
	}
	for _, s := range subs {
		if !done[s.ID] {
			return false, nil
		}
	}
	return true, nil
}

func (g *GroupEngine) doneSubRoutines(ctx context.Context, userID generic.UserID, groupID RoutineID, day generic.TimePoint) (map[SubRoutineID]bool, error) {
	facts, err := g.store.FindFacts(ctx, FactQuery{
		Users:      []generic.UserID{userID},
		RoutineIDs: []RoutineID{groupID},
		Level:      SubRoutineLevel,
		DoneOnly:   true,
	}.OnDay(day))
	if err != nil {
		return nil, err
	}
	done := make(map[SubRoutineID]bool, len(facts))
	for _, f := range facts {
		done[f.SubRoutineID] = true
	}
	return done, nil
}

// progress counts distinct done sub-routines per user with one fetch.
// Facts for sub-routines no longer in the group are ignored.
func (g *GroupEngine) progress(ctx context.Context, userIDs []generic.UserID, groupID RoutineID, subs []SubRoutine, day generic.TimePoint) (map[generic.UserID]int, error) {
	counts := make(map[generic.UserID]int, len(userIDs))
	if len(userIDs) == 0 || len(subs) == 0 {
		return counts, nil
	}

	current := make(map[SubRoutineID]bool, len(subs))
	for _, s := range subs {
		current[s.ID] = true
	}

	facts, err := g.store.FindFacts(ctx, FactQuery{
		Users:      userIDs,
		RoutineIDs: []RoutineID{groupID},
		Level:      SubRoutineLevel,
		DoneOnly:   true,
	}.OnDay(day))
	if err != nil {
		return nil, err
	}

	seen := make(map[generic.UserID]map[SubRoutineID]bool, len(userIDs))
	for _, f := range facts {
		if !current[f.SubRoutineID] {
			continue
		}
		if seen[f.UserID] == nil {
			seen[f.UserID] = make(map[SubRoutineID]bool)
		}
		if !seen[f.UserID][f.SubRoutineID] {
			seen[f.UserID][f.SubRoutineID] = true
			counts[f.UserID]++
		}
	}
	return counts, nil
}

func (g *GroupEngine) profileIndex(ctx context.Context, ids []generic.UserID) (map[generic.UserID]Profile, error) {
	profiles, err := g.store.Profiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	idx := make(map[generic.UserID]Profile, len(profiles))
	for _, p := range profiles {
		idx[p.UserID] = p
	}
	return idx, nil
}
