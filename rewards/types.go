/*
Package rewards turns routine achievements into points and lets users
spend them on stock-limited items.

PURPOSE:
  - RewardLedger.AwardOnce grants a reward at most once per
    (user, reason kind, period key), even under concurrent requests.
  - Shop.Purchase sells an item without ever overselling its stock.
  - Programs wire the eligibility rules (streaks, completions) to AwardOnce.

IDEMPOTENCY MODEL:
  A Reason is a typed (Kind, Period) pair. The store enforces
  UNIQUE(user_id, reason_kind, period_key) on grants; the keyed lock in
  front of it keeps concurrent callers from both observing "not granted".

REASON KINDS:
  weekly_streak_bonus:  streak >= threshold, once per ISO week
  personal_completion:  a personal routine completed today, once per day
  group_completion:     all group sub-routines done today, once per day

UNITS:
  All amounts are generic.UnitPoints.

SEE ALSO:
  - ledger.go: AwardOnce
  - shop.go: Purchase
  - policies.go: Eligibility rules
  - generic/lock.go: WithLock
*/
package rewards

import (
	"fmt"
	"time"

	"github.com/warp/routine-engine/generic"
)

// =============================================================================
// REASONS & PERIOD KEYS
// =============================================================================

type ReasonKind string

const (
	KindWeeklyStreakBonus  ReasonKind = "weekly_streak_bonus"
	KindPersonalCompletion ReasonKind = "personal_completion"
	KindGroupCompletion    ReasonKind = "group_completion"
)

func (k ReasonKind) Valid() bool {
	switch k {
	case KindWeeklyStreakBonus, KindPersonalCompletion, KindGroupCompletion:
		return true
	}
	return false
}

// PeriodKey identifies an eligibility window, e.g. "2025-W07" or "2025-02-14".
type PeriodKey string

// WeekPeriod returns the ISO week key containing day.
func WeekPeriod(day generic.TimePoint) PeriodKey {
	return PeriodKey(generic.ISOWeekKey(day))
}

// DayPeriod returns the calendar-day key of day.
func DayPeriod(day generic.TimePoint) PeriodKey {
	return PeriodKey(generic.DayKey(day))
}

// Reason is the idempotency identity of a reward, together with the user.
type Reason struct {
	Kind   ReasonKind
	Period PeriodKey
}

func (r Reason) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown reason kind %q", generic.ErrInvalidInput, r.Kind)
	}
	if r.Period == "" {
		return fmt.Errorf("%w: empty period key", generic.ErrInvalidInput)
	}
	return nil
}

func (r Reason) String() string {
	return string(r.Kind) + ":" + string(r.Period)
}

// =============================================================================
// LOCK & IDEMPOTENCY KEYS
// =============================================================================

// GrantLockKey serializes AwardOnce for one user and reason.
func GrantLockKey(userID generic.UserID, reason Reason) generic.LockKey {
	return generic.LockKey(fmt.Sprintf("lock:grant:%s:%s:%s", reason.Kind, reason.Period, userID))
}

// ItemLockKey serializes purchases of one item.
func ItemLockKey(itemID ItemID) generic.LockKey {
	return generic.LockKey("lock:item:" + string(itemID))
}

// BalanceLockKey serializes debits of one user's points.
func BalanceLockKey(userID generic.UserID) generic.LockKey {
	return generic.LockKey("lock:balance:" + string(userID))
}

func grantIdempotencyKey(userID generic.UserID, reason Reason) string {
	return fmt.Sprintf("grant:%s:%s:%s", userID, reason.Kind, reason.Period)
}

// =============================================================================
// GRANT
// =============================================================================

type GrantID string

// Grant is the stored proof that a reward was paid out.
type Grant struct {
	ID        GrantID
	UserID    generic.UserID
	Reason    Reason
	Amount    generic.Amount
	GrantedAt time.Time
}

// Outcome is the result of AwardOnce.
type Outcome int

const (
	Granted Outcome = iota
	AlreadyGranted
	NotEligible
)

func (o Outcome) String() string {
	switch o {
	case Granted:
		return "granted"
	case AlreadyGranted:
		return "already_granted"
	case NotEligible:
		return "not_eligible"
	}
	return "unknown"
}

// Err maps non-granted outcomes to the error taxonomy, for callers that
// prefer errors over outcomes.
func (o Outcome) Err() error {
	switch o {
	case AlreadyGranted:
		return generic.ErrAlreadyGranted
	case NotEligible:
		return generic.ErrNotEligible
	}
	return nil
}

type AwardResult struct {
	Outcome Outcome
	Grant   *Grant // the new grant, or the existing one for AlreadyGranted
}

// =============================================================================
// ITEMS
// =============================================================================

type ItemID string

// Item is a shop item with limited stock.
type Item struct {
	ID        ItemID
	Name      string
	Price     generic.Amount
	Stock     int
	CreatedAt time.Time
}

func (i Item) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("%w: item name is required", generic.ErrInvalidInput)
	}
	if i.Price.IsNegative() {
		return fmt.Errorf("%w: negative price", generic.ErrInvalidInput)
	}
	if i.Stock < 0 {
		return fmt.Errorf("%w: negative stock", generic.ErrInvalidInput)
	}
	return nil
}

// Purchase is the receipt of a successful purchase.
type Purchase struct {
	TransactionID  generic.TransactionID
	UserID         generic.UserID
	Item           Item // state after the purchase
	Price          generic.Amount
	RemainingStock int
	Balance        generic.Balance
	PurchasedAt    time.Time
}
