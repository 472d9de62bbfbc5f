package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/rewards"
)

// =============================================================================
// REWARD GRANTS
// =============================================================================

func (s *Store) FindGrant(ctx context.Context, userID generic.UserID, reason rewards.Reason) (*rewards.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return findGrant(ctx, s.db, userID, reason)
}

func (s *Store) InsertGrant(ctx context.Context, g rewards.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertGrant(ctx, s.db, g)
}

func (s *Store) Grants(ctx context.Context, userID generic.UserID) ([]rewards.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listGrants(ctx, s.db, userID)
}

const grantColumns = `id, user_id, reason_kind, period_key, amount_value, amount_unit, granted_at`

func findGrant(ctx context.Context, q querier, userID generic.UserID, reason rewards.Reason) (*rewards.Grant, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+grantColumns+` FROM reward_grants
		 WHERE user_id = ? AND reason_kind = ? AND period_key = ?`,
		userID, reason.Kind, reason.Period,
	)

	g, err := scanGrant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func insertGrant(ctx context.Context, q querier, g rewards.Grant) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO reward_grants (`+grantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Reason.Kind, g.Reason.Period,
		g.Amount.Value.String(), g.Amount.Unit, formatTime(g.GrantedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrAlreadyGranted
		}
		return fmt.Errorf("failed to insert grant: %w", err)
	}
	return nil
}

func listGrants(ctx context.Context, q querier, userID generic.UserID) ([]rewards.Grant, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+grantColumns+` FROM reward_grants
		 WHERE user_id = ? ORDER BY granted_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	var grants []rewards.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGrant(row scanner) (rewards.Grant, error) {
	var (
		g           rewards.Grant
		amountValue string
		amountUnit  string
		grantedAt   string
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Reason.Kind, &g.Reason.Period, &amountValue, &amountUnit, &grantedAt)
	if err != nil {
		return g, err
	}
	g.Amount = parseAmount(amountValue, amountUnit)
	g.GrantedAt = parseTime(grantedAt)
	return g, nil
}

// =============================================================================
// ITEMS
// =============================================================================

func (s *Store) SaveItem(ctx context.Context, item rewards.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveItem(ctx, s.db, item)
}

func (s *Store) GetItem(ctx context.Context, id rewards.ItemID) (*rewards.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getItem(ctx, s.db, id)
}

func (s *Store) ListItems(ctx context.Context) ([]rewards.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listItems(ctx, s.db)
}

// AdjustStock adds delta to the stock outside any caller transaction.
// Purchases go through WithTx instead.
func (s *Store) AdjustStock(ctx context.Context, id rewards.ItemID, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return adjustStock(ctx, s.db, id, delta)
}

const itemColumns = `id, name, price_value, price_unit, stock, created_at`

func saveItem(ctx context.Context, q querier, item rewards.Item) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   price_value = excluded.price_value,
		   price_unit = excluded.price_unit,
		   stock = excluded.stock`,
		item.ID, item.Name, item.Price.Value.String(), item.Price.Unit, item.Stock, formatTime(item.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}
	return nil
}

func getItem(ctx context.Context, q querier, id rewards.ItemID) (*rewards.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func listItems(ctx context.Context, q querier) ([]rewards.Item, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []rewards.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func adjustStock(ctx context.Context, q querier, id rewards.ItemID, delta int) (int, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET stock = stock + ? WHERE id = ? AND stock + ? >= 0`,
		delta, id, delta,
	)
	if err != nil {
		if isCheckConstraintError(err) {
			return 0, generic.ErrOutOfStock
		}
		return 0, fmt.Errorf("failed to adjust stock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		item, err := getItem(ctx, q, id)
		if err != nil {
			return 0, err
		}
		if item == nil {
			return 0, generic.NotFound("item", string(id))
		}
		return 0, generic.ErrOutOfStock
	}

	var stock int
	if err := q.QueryRowContext(ctx, `SELECT stock FROM items WHERE id = ?`, id).Scan(&stock); err != nil {
		return 0, err
	}
	return stock, nil
}

func scanItem(row scanner) (rewards.Item, error) {
	var (
		item       rewards.Item
		priceValue string
		priceUnit  string
		createdAt  string
	)
	err := row.Scan(&item.ID, &item.Name, &priceValue, &priceUnit, &item.Stock, &createdAt)
	if err != nil {
		return item, err
	}
	item.Price = parseAmount(priceValue, priceUnit)
	item.CreatedAt = parseTime(createdAt)
	return item, nil
}
