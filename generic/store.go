/*
store.go - Persistence interface for point transactions

PURPOSE:
  Defines the interface between the ledger and the database.
  The Store handles persistence while maintaining append-only semantics.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store: Core transaction persistence (append, load, exists)

APPEND-ONLY CONTRACT:
  - Append(): Single transaction write
  - NO Update() or Delete() methods exist
  - Atomic multi-table writes go through rewards.TxStore

IDEMPOTENCY:
  Every reward and purchase write carries an idempotency key. If the key
  already exists, the write is rejected with ErrDuplicateIdempotencyKey.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - ledger.go: Higher-level interface using Store
  - rewards/store.go: Extends Store with grants and stock
*/
package generic

import "context"

// =============================================================================
// STORE - Interface for transaction persistence (append-only)
// =============================================================================

// Store handles persistence of point transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// Append persists a transaction. Returns ErrDuplicateIdempotencyKey if
	// the key exists.
	Append(ctx context.Context, tx Transaction) error

	// Load returns all transactions for a user, ordered by EffectiveAt.
	Load(ctx context.Context, userID UserID) ([]Transaction, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}
