/*
Package generic provides the domain-agnostic core of the routine engine.

PURPOSE:
  This package contains the building blocks shared by the routine and
  rewards packages: point amounts, calendar days, the append-only point
  ledger, balance derivation, keyed mutual exclusion and the error taxonomy.
  Nothing in here knows what a routine or a shop item is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 100 points)
  - Transaction: An immutable ledger entry recording a point change
  - UserID/TransactionID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing user/transaction IDs
  4. Auditability: Every transaction has reason, reference, and idempotency key

USAGE:
  amount := generic.NewAmountFromInt(100, generic.UnitPoints)
  tx := generic.Transaction{
      UserID: "user-123",
      Delta:  amount,
      Type:   generic.TxGrant,
  }

SEE ALSO:
  - balance.go: Balance calculation from transactions
  - ledger.go: Transaction persistence interface
  - lock.go: Keyed critical sections
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitPoints Unit = "points"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

// Points is shorthand for an integer amount of reward points.
func Points(n int) Amount {
	return NewAmountFromInt(n, UnitPoints)
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) GreaterOrEqual(b Amount) bool { return a.Value.GreaterThanOrEqual(b.Value) }
func (a Amount) String() string               { return a.Value.String() + " " + string(a.Unit) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type TransactionID string

// =============================================================================
// TRANSACTION - Atomic change to a point balance
// =============================================================================

type TransactionType string

const (
	TxGrant      TransactionType = "grant"      // Reward credited (streak bonus, completion bonus)
	TxPurchase   TransactionType = "purchase"   // Points spent in the shop
	TxAdjustment TransactionType = "adjustment" // Manual admin correction
	TxReversal   TransactionType = "reversal"   // Undo a previous transaction
)

type Transaction struct {
	ID             TransactionID
	UserID         UserID
	EffectiveAt    TimePoint
	Delta          Amount
	Type           TransactionType
	ReferenceID    string // grant ID or item ID the transaction belongs to
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
	CreatedAt      TimePoint
}
