/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the engine on one database:
  routine definitions, completion facts, memberships, reward grants,
  shop stock and the point ledger.

INTERFACES IMPLEMENTED:
  generic.Store:           Point transactions
  routine.Store:           Routines, sub-routines, facts, memberships, profiles
  rewards.Store / TxStore: Grants and items (plus the point ledger)

APPEND-ONLY ENFORCEMENT:
  point_transactions is never updated or deleted. Corrections are
  adjustment or reversal transactions.

KEY TABLES:
  users:              Profiles
  routines:           Definitions; days is a weekday bitmask
  sub_routines:       Ordered tasks of a routine
  memberships:        (routine_id, user_id) for group routines, owner included
  completion_facts:   UNIQUE(user_id, routine_id, sub_routine_id, day);
                      sub_routine_id = '' marks a routine-level fact
  reward_grants:      UNIQUE(user_id, reason_kind, period_key)
  items:              CHECK(stock >= 0)
  point_transactions: Ledger; idempotency_key UNIQUE

CONCURRENCY:
  The pool is limited to one connection, so ":memory:" databases are
  shared and SQLite sees a single writer. WithTx holds the write lock for
  the duration of fn; the Store handed to fn runs on the *sql.Tx and never
  takes the mutex again. fn must not call back into the parent Store.

WAL MODE:
  Opened with WAL and foreign keys on.

USAGE:
  store, err := sqlite.New("./data/routines.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - routines.go: routine.Store
  - rewards.go: Grants and items
  - generic/store/locker.go: In-process lock for single-node runs
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/rewards"
)

const (
	dayLayout  = "2006-01-02"
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ rewards.TxStore = (*Store)(nil)
	_ rewards.Store   = (*txStore)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		nickname TEXT NOT NULL,
		image_url TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS routines (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		routine_type TEXT NOT NULL,
		cardinality TEXT NOT NULL,
		days INTEGER NOT NULL,
		start_time TEXT,
		end_time TEXT,
		member_count INTEGER NOT NULL DEFAULT 0 CHECK (member_count >= 0),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_routines_owner
		ON routines(owner_id, cardinality);

	CREATE TABLE IF NOT EXISTS sub_routines (
		id TEXT PRIMARY KEY,
		routine_id TEXT NOT NULL REFERENCES routines(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		emoji TEXT,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sub_routines_routine
		ON sub_routines(routine_id, position);

	CREATE TABLE IF NOT EXISTS memberships (
		routine_id TEXT NOT NULL REFERENCES routines(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		owner BOOLEAN NOT NULL DEFAULT FALSE,
		joined_at TEXT NOT NULL,
		PRIMARY KEY (routine_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_memberships_user
		ON memberships(user_id);

	-- One fact per (user, routine, sub-routine, day).
	-- sub_routine_id = '' is the routine-level fact.
	CREATE TABLE IF NOT EXISTS completion_facts (
		user_id TEXT NOT NULL,
		routine_id TEXT NOT NULL REFERENCES routines(id) ON DELETE CASCADE,
		sub_routine_id TEXT NOT NULL DEFAULT '',
		day TEXT NOT NULL,
		done BOOLEAN NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (user_id, routine_id, sub_routine_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_facts_user_day
		ON completion_facts(user_id, day);
	CREATE INDEX IF NOT EXISTS idx_facts_routine_day
		ON completion_facts(routine_id, day);

	CREATE TABLE IF NOT EXISTS reward_grants (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		reason_kind TEXT NOT NULL,
		period_key TEXT NOT NULL,
		amount_value TEXT NOT NULL,
		amount_unit TEXT NOT NULL,
		granted_at TEXT NOT NULL,
		UNIQUE (user_id, reason_kind, period_key)
	);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price_value TEXT NOT NULL,
		price_unit TEXT NOT NULL,
		stock INTEGER NOT NULL CHECK (stock >= 0),
		created_at TEXT NOT NULL
	);

	-- Point ledger (append-only)
	CREATE TABLE IF NOT EXISTS point_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		delta_unit TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_at TEXT NOT NULL,
		seq INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_point_transactions_user_date
		ON point_transactions(user_id, effective_at);
	CREATE INDEX IF NOT EXISTS idx_point_transactions_reference
		ON point_transactions(reference_id) WHERE reference_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

// Append adds a transaction to the ledger.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendTx(ctx, s.db, tx)
}

func appendTx(ctx context.Context, q querier, tx generic.Transaction) error {
	metadataJSON, _ := json.Marshal(tx.Metadata)

	query := `
		INSERT INTO point_transactions
		(id, user_id, effective_at, delta_value, delta_unit, tx_type,
		 reference_id, reason, idempotency_key, metadata_json, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		        (SELECT COALESCE(MAX(seq), 0) + 1 FROM point_transactions))
	`

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = tx.EffectiveAt
	}

	_, err := q.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.EffectiveAt.Time.Format(dayLayout),
		tx.Delta.Value.String(),
		tx.Delta.Unit,
		tx.Type,
		nullString(tx.ReferenceID),
		nullString(tx.Reason),
		nullString(tx.IdempotencyKey),
		string(metadataJSON),
		createdAt.Time.Format(dayLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// Load returns all transactions of a user in ledger order.
func (s *Store) Load(ctx context.Context, userID generic.UserID) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadTransactions(ctx, s.db, userID)
}

func loadTransactions(ctx context.Context, q querier, userID generic.UserID) ([]generic.Transaction, error) {
	query := `
		SELECT id, user_id, effective_at, delta_value, delta_unit, tx_type,
		       reference_id, reason, idempotency_key, metadata_json, created_at
		FROM point_transactions
		WHERE user_id = ?
		ORDER BY effective_at ASC, seq ASC
	`

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return keyExists(ctx, s.db, idempotencyKey)
}

func keyExists(ctx context.Context, q querier, idempotencyKey string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM point_transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx             generic.Transaction
		effectiveAt    string
		deltaValue     string
		deltaUnit      string
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		metadataJSON   sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&tx.ID, &tx.UserID, &effectiveAt, &deltaValue, &deltaUnit, &tx.Type,
		&referenceID, &reason, &idempotencyKey, &metadataJSON, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.EffectiveAt = parseDay(effectiveAt)
	tx.CreatedAt = parseDay(createdAt)
	tx.Delta = parseAmount(deltaValue, deltaUnit)
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		json.Unmarshal([]byte(metadataJSON.String), &tx.Metadata)
	}

	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (rewards.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store rewards.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every query on the open *sql.Tx. The parent holds the lock.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Append(ctx context.Context, tx generic.Transaction) error {
	return appendTx(ctx, ts.tx, tx)
}

func (ts *txStore) Load(ctx context.Context, userID generic.UserID) ([]generic.Transaction, error) {
	return loadTransactions(ctx, ts.tx, userID)
}

func (ts *txStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return keyExists(ctx, ts.tx, idempotencyKey)
}

func (ts *txStore) FindGrant(ctx context.Context, userID generic.UserID, reason rewards.Reason) (*rewards.Grant, error) {
	return findGrant(ctx, ts.tx, userID, reason)
}

func (ts *txStore) InsertGrant(ctx context.Context, g rewards.Grant) error {
	return insertGrant(ctx, ts.tx, g)
}

func (ts *txStore) Grants(ctx context.Context, userID generic.UserID) ([]rewards.Grant, error) {
	return listGrants(ctx, ts.tx, userID)
}

func (ts *txStore) SaveItem(ctx context.Context, item rewards.Item) error {
	return saveItem(ctx, ts.tx, item)
}

func (ts *txStore) GetItem(ctx context.Context, id rewards.ItemID) (*rewards.Item, error) {
	return getItem(ctx, ts.tx, id)
}

func (ts *txStore) ListItems(ctx context.Context) ([]rewards.Item, error) {
	return listItems(ctx, ts.tx)
}

func (ts *txStore) AdjustStock(ctx context.Context, id rewards.ItemID, delta int) (int, error) {
	return adjustStock(ctx, ts.tx, id, delta)
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset deletes all data. Used by the demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"completion_facts", "memberships", "sub_routines", "routines",
		"users", "reward_grants", "items", "point_transactions",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseAmount(value, unit string) generic.Amount {
	return generic.Amount{
		Value: generic.MustParseDecimal(value),
		Unit:  generic.Unit(unit),
	}
}

func parseDay(s string) generic.TimePoint {
	t, _ := time.Parse(dayLayout, s)
	return generic.TimePoint{Time: t}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isCheckConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "CHECK constraint failed")
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
