package rewards

import (
	"context"

	"github.com/warp/routine-engine/generic"
)

// =============================================================================
// STORE - Grants, items and the point ledger
// =============================================================================

// Store extends the point ledger with grants and stock. Lookups return
// (nil, nil) when the row is absent.
type Store interface {
	generic.Store

	// FindGrant returns the grant for (user, reason) if one exists.
	FindGrant(ctx context.Context, userID generic.UserID, reason Reason) (*Grant, error)

	// InsertGrant stores a grant. A second grant for the same
	// (user, reason kind, period key) fails with generic.ErrAlreadyGranted.
	InsertGrant(ctx context.Context, g Grant) error

	// Grants lists a user's grants, newest first.
	Grants(ctx context.Context, userID generic.UserID) ([]Grant, error)

	SaveItem(ctx context.Context, item Item) error
	GetItem(ctx context.Context, id ItemID) (*Item, error)
	ListItems(ctx context.Context) ([]Item, error)

	// AdjustStock adds delta to the item's stock and returns the new value.
	// The store refuses to go below zero.
	AdjustStock(ctx context.Context, id ItemID, delta int) (int, error)
}

// TxStore runs a function against a transactional Store.
type TxStore interface {
	Store

	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error
}
