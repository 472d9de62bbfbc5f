package generic_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/routine-engine/generic"
)

func pointsTx(id string, user generic.UserID, typ generic.TransactionType, delta int) generic.Transaction {
	day := generic.NewTimePoint(2025, time.February, 14)
	return generic.Transaction{
		ID:             generic.TransactionID(id),
		UserID:         user,
		EffectiveAt:    day,
		Delta:          generic.Points(delta),
		Type:           typ,
		IdempotencyKey: "key:" + id,
		CreatedAt:      day,
	}
}

func TestComputeBalance(t *testing.T) {
	// GIVEN: two grants, a purchase and a negative adjustment
	txs := []generic.Transaction{
		pointsTx("1", "alice", generic.TxGrant, 100),
		pointsTx("2", "alice", generic.TxGrant, 50),
		pointsTx("3", "alice", generic.TxPurchase, -30),
		pointsTx("4", "alice", generic.TxAdjustment, -20),
	}

	// WHEN
	b := generic.ComputeBalance("alice", txs)

	// THEN: spent is reported positive, available nets everything
	assert.True(t, b.Earned.Value.Equal(generic.Points(150).Value))
	assert.True(t, b.Spent.Value.Equal(generic.Points(30).Value))
	assert.True(t, b.Adjusted.Value.Equal(generic.Points(-20).Value))
	assert.True(t, b.Available().Value.Equal(generic.Points(100).Value))
	assert.True(t, b.CanAfford(generic.Points(100)))
	assert.False(t, b.CanAfford(generic.Points(101)))
}

// sliceStore is an append-only generic.Store over a slice.
type sliceStore struct {
	txs []generic.Transaction
}

func (s *sliceStore) Append(_ context.Context, tx generic.Transaction) error {
	s.txs = append(s.txs, tx)
	return nil
}

func (s *sliceStore) Load(_ context.Context, userID generic.UserID) ([]generic.Transaction, error) {
	var out []generic.Transaction
	for _, tx := range s.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *sliceStore) Exists(_ context.Context, key string) (bool, error) {
	for _, tx := range s.txs {
		if tx.IdempotencyKey == key {
			return true, nil
		}
	}
	return false, nil
}

func TestLedger_RejectsDuplicateIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	ledger := generic.NewLedger(&sliceStore{})

	require.NoError(t, ledger.Append(ctx, pointsTx("1", "alice", generic.TxGrant, 100)))

	dup := pointsTx("2", "alice", generic.TxGrant, 100)
	dup.IdempotencyKey = "key:1"
	err := ledger.Append(ctx, dup)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	b, err := ledger.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, b.Available().Value.Equal(generic.Points(100).Value))
}

func TestLedger_TransactionsPerUser(t *testing.T) {
	ctx := context.Background()
	ledger := generic.NewLedger(&sliceStore{})
	require.NoError(t, ledger.Append(ctx, pointsTx("1", "alice", generic.TxGrant, 10)))
	require.NoError(t, ledger.Append(ctx, pointsTx("2", "bob", generic.TxGrant, 20)))
	require.NoError(t, ledger.Append(ctx, pointsTx("3", "alice", generic.TxPurchase, -5)))

	txs, err := ledger.Transactions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, generic.TransactionID("1"), txs[0].ID)
	assert.Equal(t, generic.TransactionID("3"), txs[1].ID)
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, generic.IsNotFound(generic.NotFound("item", "x")))
	assert.True(t, generic.IsClientError(generic.ErrAlreadyGranted))
	assert.True(t, generic.IsClientError(generic.InvalidState("op", "why")))
	assert.True(t, generic.IsClientError(&generic.InsufficientPointsError{}))
	assert.False(t, generic.IsClientError(generic.ErrNotFound))
	assert.True(t, generic.IsRetryable(&generic.LockTimeoutError{Key: "k"}))
	assert.True(t, generic.IsForbidden(generic.ErrForbidden))

	short := &generic.InsufficientPointsError{Available: generic.Points(30), Required: generic.Points(100)}
	assert.True(t, short.Shortfall().Value.Equal(generic.Points(70).Value))

	assert.PanicsWithValue(t, generic.InvariantViolation{Message: "stock -1"}, func() {
		generic.Assert(false, "stock %d", -1)
	})
}
