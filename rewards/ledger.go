/*
ledger.go - Exactly-once reward grants

PURPOSE:
  AwardOnce credits points for a Reason at most once per user, no matter
  how many requests race for it.

FLOW:
  1. Eligibility callback (cheap, outside the lock). false -> NotEligible.
  2. Acquire GrantLockKey(user, reason) with a bounded wait.
     Timeout -> LockTimeoutError (retryable), never a silent drop.
  3. In ONE store transaction:
       a. FindGrant -> found: AlreadyGranted
       b. InsertGrant + append TxGrant to the point ledger
  4. Release the lock.

  The UNIQUE constraint on grants is the last line of defense. A unique
  violation from InsertGrant is reported as AlreadyGranted, not an error.

SEE ALSO:
  - policies.go: Eligibility rules for the built-in reward programs
  - shop.go: Spends what this credits
*/
package rewards

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/logger"
)

// Eligibility decides whether a reward may be granted. A nil Eligibility
// always allows the grant.
type Eligibility func(ctx context.Context) (bool, error)

type RewardLedger struct {
	store    TxStore
	locker   generic.Locker
	lockOpts generic.LockOptions
	clock    generic.Clock
	log      *logger.Logger
}

func NewRewardLedger(store TxStore, locker generic.Locker, clock generic.Clock, lockOpts generic.LockOptions, log *logger.Logger) *RewardLedger {
	return &RewardLedger{
		store:    store,
		locker:   locker,
		lockOpts: lockOpts,
		clock:    clock,
		log:      logger.OrNop(log).With("component", "reward_ledger"),
	}
}

// AwardOnce grants amount for reason unless it was already granted.
func (l *RewardLedger) AwardOnce(ctx context.Context, userID generic.UserID, reason Reason, amount generic.Amount, eligible Eligibility) (AwardResult, error) {
	if err := reason.Validate(); err != nil {
		return AwardResult{}, err
	}
	if !amount.IsPositive() {
		return AwardResult{}, fmt.Errorf("%w: reward amount must be positive", generic.ErrInvalidInput)
	}

	if eligible != nil {
		ok, err := eligible(ctx)
		if err != nil {
			return AwardResult{}, err
		}
		if !ok {
			return AwardResult{Outcome: NotEligible}, nil
		}
	}

	var result AwardResult
	err := generic.WithLock(ctx, l.locker, GrantLockKey(userID, reason), l.lockOpts, func(ctx context.Context) error {
		return l.store.WithTx(ctx, func(tx Store) error {
			existing, err := tx.FindGrant(ctx, userID, reason)
			if err != nil {
				return err
			}
			if existing != nil {
				result = AwardResult{Outcome: AlreadyGranted, Grant: existing}
				return nil
			}

			now := l.clock.Now()
			grant := Grant{
				ID:        GrantID(uuid.NewString()),
				UserID:    userID,
				Reason:    reason,
				Amount:    amount,
				GrantedAt: now,
			}
			if err := tx.InsertGrant(ctx, grant); err != nil {
				if errors.Is(err, generic.ErrAlreadyGranted) {
					result = AwardResult{Outcome: AlreadyGranted}
					return nil
				}
				return err
			}

			if err := tx.Append(ctx, generic.Transaction{
				ID:             generic.TransactionID(uuid.NewString()),
				UserID:         userID,
				EffectiveAt:    l.clock.Today(),
				Delta:          amount,
				Type:           generic.TxGrant,
				ReferenceID:    string(grant.ID),
				Reason:         reason.String(),
				IdempotencyKey: grantIdempotencyKey(userID, reason),
				CreatedAt:      generic.DayOf(now, l.clock.Location()),
			}); err != nil {
				return err
			}

			result = AwardResult{Outcome: Granted, Grant: &grant}
			return nil
		})
	})
	if err != nil {
		if generic.IsRetryable(err) {
			l.log.Warn("grant lock not acquired", "user", userID, "reason", reason.String(), "error", err)
		}
		return AwardResult{}, err
	}

	l.log.Info("award processed", "user", userID, "reason", reason.String(), "outcome", result.Outcome.String())
	return result, nil
}

// Balance returns the user's point balance.
func (l *RewardLedger) Balance(ctx context.Context, userID generic.UserID) (generic.Balance, error) {
	return generic.NewLedger(l.store).Balance(ctx, userID)
}

// History returns the user's point transactions, oldest first.
func (l *RewardLedger) History(ctx context.Context, userID generic.UserID) ([]generic.Transaction, error) {
	return generic.NewLedger(l.store).Transactions(ctx, userID)
}

// Grants lists the user's grants, newest first.
func (l *RewardLedger) Grants(ctx context.Context, userID generic.UserID) ([]Grant, error) {
	return l.store.Grants(ctx, userID)
}

// Adjust appends a manual correction to the user's ledger. It runs under
// BalanceLockKey(user); a negative delta larger than the available balance
// fails with InsufficientPointsError and writes nothing.
func (l *RewardLedger) Adjust(ctx context.Context, userID generic.UserID, delta generic.Amount, reason, idempotencyKey string) (generic.TransactionID, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user is required", generic.ErrInvalidInput)
	}
	if delta.IsZero() {
		return "", fmt.Errorf("%w: adjustment must be non-zero", generic.ErrInvalidInput)
	}

	tx := generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		UserID:         userID,
		EffectiveAt:    l.clock.Today(),
		Delta:          delta,
		Type:           generic.TxAdjustment,
		Reason:         reason,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      l.clock.Today(),
	}

	err := generic.WithLock(ctx, l.locker, BalanceLockKey(userID), l.lockOpts, func(ctx context.Context) error {
		return l.store.WithTx(ctx, func(store Store) error {
			ledger := generic.NewLedger(store)
			if delta.IsNegative() {
				balance, err := ledger.Balance(ctx, userID)
				if err != nil {
					return err
				}
				if !balance.CanAfford(delta.Neg()) {
					return &generic.InsufficientPointsError{
						UserID:    userID,
						Available: balance.Available(),
						Required:  delta.Neg(),
					}
				}
			}
			return ledger.Append(ctx, tx)
		})
	})
	if err != nil {
		if generic.IsRetryable(err) {
			l.log.Warn("balance lock not acquired", "user", userID, "error", err)
		}
		return "", err
	}

	l.log.Info("balance adjusted", "user", userID, "delta", delta.String(), "reason", reason)
	return tx.ID, nil
}
