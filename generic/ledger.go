/*
ledger.go - Append-only point ledger

PURPOSE:
  The Ledger is the immutable source of truth for every point change.
  Rewards credit it, purchases debit it. Balance is always computed by
  replaying transactions - there's no separate "balance" field that can
  get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  A mistaken credit is undone by a TxReversal of opposite sign. Both
  entries remain in the ledger.

EXAMPLE FLOW:
  1. Weekly streak bonus: TxGrant +100
  2. Group completion bonus: TxGrant +100
  3. Shop purchase: TxPurchase -150

  Ledger: [+100, +100, -150] = 50 points available

SEE ALSO:
  - store.go: Low-level persistence interface
  - balance.go: Earned/spent/available derivation
*/
package generic

import "context"

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger is the source of truth for all point balance changes.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// Transactions returns all transactions for a user, chronologically.
	Transactions(ctx context.Context, userID UserID) ([]Transaction, error)

	// Balance computes the user's current balance from transactions.
	Balance(ctx context.Context, userID UserID) (Balance, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) Transactions(ctx context.Context, userID UserID) ([]Transaction, error) {
	return l.Store.Load(ctx, userID)
}

func (l *DefaultLedger) Balance(ctx context.Context, userID UserID) (Balance, error) {
	txs, err := l.Store.Load(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	return ComputeBalance(userID, txs), nil
}
