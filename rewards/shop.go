/*
shop.go - Stock-limited purchases

PURPOSE:
  Purchase sells one unit of an item for points without ever overselling.

CRITICAL SECTION:
  Everything between acquiring ItemLockKey(item), then BalanceLockKey(buyer),
  and releasing both:
    1. re-read the item (stock) and the buyer's ledger (balance)
    2. stock > 0          else ErrOutOfStock
    3. balance >= price   else InsufficientPointsError
    4. stock -= 1 and append TxPurchase(-price), in one store transaction

  No stock read used for a decision happens outside the lock. Stock is also
  guarded by CHECK(stock >= 0) in the store; observing a negative value is
  a bug and trips generic.Assert.

SEE ALSO:
  - ledger.go: Shares the lock mechanism
  - generic/lock.go: WithLock
*/
package rewards

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/logger"
)

type Shop struct {
	store    TxStore
	locker   generic.Locker
	lockOpts generic.LockOptions
	clock    generic.Clock
	log      *logger.Logger
}

func NewShop(store TxStore, locker generic.Locker, clock generic.Clock, lockOpts generic.LockOptions, log *logger.Logger) *Shop {
	return &Shop{
		store:    store,
		locker:   locker,
		lockOpts: lockOpts,
		clock:    clock,
		log:      logger.OrNop(log).With("component", "shop"),
	}
}

// CreateItem stores a new item with its initial stock.
func (s *Shop) CreateItem(ctx context.Context, item Item) (*Item, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Price.Unit == "" {
		item.Price.Unit = generic.UnitPoints
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if item.ID == "" {
		item.ID = ItemID(uuid.NewString())
	}
	item.CreatedAt = s.clock.Now()
	if err := s.store.SaveItem(ctx, item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItem returns an item or NotFound.
func (s *Shop) GetItem(ctx context.Context, id ItemID) (*Item, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, generic.NotFound("item", string(id))
	}
	return item, nil
}

func (s *Shop) ListItems(ctx context.Context) ([]Item, error) {
	return s.store.ListItems(ctx)
}

// Purchase buys one unit of itemID for userID.
func (s *Shop) Purchase(ctx context.Context, userID generic.UserID, itemID ItemID) (*Purchase, error) {
	var receipt *Purchase

	err := generic.WithLock(ctx, s.locker, ItemLockKey(itemID), s.lockOpts, func(ctx context.Context) error {
		return generic.WithLock(ctx, s.locker, BalanceLockKey(userID), s.lockOpts, func(ctx context.Context) error {
			return s.store.WithTx(ctx, func(tx Store) error {
				item, err := tx.GetItem(ctx, itemID)
				if err != nil {
					return err
				}
				if item == nil {
					return generic.NotFound("item", string(itemID))
				}
				generic.Assert(item.Stock >= 0, "item %s has negative stock %d", item.ID, item.Stock)
				if item.Stock == 0 {
					return generic.ErrOutOfStock
				}

				txs, err := tx.Load(ctx, userID)
				if err != nil {
					return err
				}
				balance := generic.ComputeBalance(userID, txs)
				if !balance.CanAfford(item.Price) {
					return &generic.InsufficientPointsError{
						UserID:    userID,
						Available: balance.Available(),
						Required:  item.Price,
					}
				}

				remaining, err := tx.AdjustStock(ctx, item.ID, -1)
				if err != nil {
					return err
				}
				generic.Assert(remaining >= 0, "item %s stock went negative: %d", item.ID, remaining)

				now := s.clock.Now()
				ptx := generic.Transaction{
					ID:             generic.TransactionID(uuid.NewString()),
					UserID:         userID,
					EffectiveAt:    s.clock.Today(),
					Delta:          item.Price.Neg(),
					Type:           generic.TxPurchase,
					ReferenceID:    string(item.ID),
					Reason:         "purchase: " + item.Name,
					IdempotencyKey: "purchase:" + uuid.NewString(),
					CreatedAt:      generic.DayOf(now, s.clock.Location()),
				}
				if err := tx.Append(ctx, ptx); err != nil {
					return err
				}

				item.Stock = remaining
				receipt = &Purchase{
					TransactionID:  ptx.ID,
					UserID:         userID,
					Item:           *item,
					Price:          item.Price,
					RemainingStock: remaining,
					Balance:        generic.ComputeBalance(userID, append(txs, ptx)),
					PurchasedAt:    now,
				}
				return nil
			})
		})
	})
	if err != nil {
		switch {
		case generic.IsRetryable(err):
			s.log.Warn("item lock not acquired", "user", userID, "item", itemID, "error", err)
		case generic.IsClientError(err), generic.IsNotFound(err):
			s.log.Debug("purchase rejected", "user", userID, "item", itemID, "error", err)
		default:
			s.log.Error("purchase failed", "user", userID, "item", itemID, "error", err)
		}
		return nil, err
	}

	s.log.Info("item purchased", "user", userID, "item", itemID, "remaining", receipt.RemainingStock)
	return receipt, nil
}
