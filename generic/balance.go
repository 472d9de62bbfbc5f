/*
balance.go - Point balance derived from the ledger

PURPOSE:
  Computes a user's point balance by replaying their transactions. This
  answers "how many points can this user spend?"

BALANCE COMPONENTS:
  Earned:   Sum of positive grants (rewards)
  Spent:    Sum of purchases (stored as negative deltas, reported positive)
  Adjusted: Net of manual adjustments and reversals
  Available = Earned - Spent + Adjusted

VALIDATION:
  CanAfford(price) checks Available >= price. The shop calls it inside
  the item lock, after re-reading the ledger.

SEE ALSO:
  - ledger.go: Source transactions
  - rewards/shop.go: Purchase critical section
*/
package generic

// =============================================================================
// BALANCE
// =============================================================================

type Balance struct {
	UserID   UserID
	Earned   Amount
	Spent    Amount
	Adjusted Amount
}

// Available returns what the user can spend.
func (b Balance) Available() Amount {
	return b.Earned.Sub(b.Spent).Add(b.Adjusted)
}

// CanAfford reports whether the available balance covers price.
func (b Balance) CanAfford(price Amount) bool {
	return b.Available().GreaterOrEqual(price)
}

// ComputeBalance folds transactions into a Balance.
func ComputeBalance(userID UserID, txs []Transaction) Balance {
	zero := Points(0)
	b := Balance{UserID: userID, Earned: zero, Spent: zero, Adjusted: zero}

	for _, tx := range txs {
		switch tx.Type {
		case TxGrant:
			b.Earned = b.Earned.Add(tx.Delta)
		case TxPurchase:
			b.Spent = b.Spent.Add(tx.Delta.Neg())
		default:
			b.Adjusted = b.Adjusted.Add(tx.Delta)
		}
	}
	return b
}
