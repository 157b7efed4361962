package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"casa/internal/core"
	"casa/internal/store"

	"github.com/google/uuid"
)

const itemColumns = `id, name, current_price_cents, quantity, checked,
	last_price_cents, last_purchase_date, created_at`

func scanItem(row scanner) (core.ShoppingItem, error) {
	var (
		it        core.ShoppingItem
		lastPrice sql.NullInt64
		lastDate  sql.NullString
		created   string
	)
	if err := row.Scan(&it.ID, &it.Name, &it.CurrentPrice.Cents, &it.Quantity, &it.Checked,
		&lastPrice, &lastDate, &created); err != nil {
		return core.ShoppingItem{}, err
	}
	if lastPrice.Valid {
		it.LastPrice = &core.Money{Cents: lastPrice.Int64}
	}
	d, err := scanNullDate(lastDate)
	if err != nil {
		return core.ShoppingItem{}, err
	}
	it.LastPurchaseDate = d
	it.CreatedAt = parseTime(created)
	return it, nil
}

func nullMoney(m *core.Money) sql.NullInt64 {
	if m == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: m.Cents, Valid: true}
}

// nameKey is the case-folded lookup form of a category or item name.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ListItems implements store.ShoppingStore
func (r *SQLiteRepository) ListItems(ctx context.Context) ([]core.ShoppingItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM shopping_items ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query shopping items: %w", err)
	}
	defer rows.Close()

	var out []core.ShoppingItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// GetItem implements store.ShoppingStore
func (r *SQLiteRepository) GetItem(ctx context.Context, id string) (core.ShoppingItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM shopping_items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ShoppingItem{}, store.ErrNotFound
	}
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("get shopping item: %w", err)
	}
	return it, nil
}

// CreateItem implements store.ShoppingStore
func (r *SQLiteRepository) CreateItem(ctx context.Context, it core.ShoppingItem) (core.ShoppingItem, error) {
	if err := it.Validate(); err != nil {
		return core.ShoppingItem{}, err
	}
	it.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx, `INSERT INTO shopping_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, strings.TrimSpace(it.Name), it.CurrentPrice.Cents, it.Quantity, it.Checked,
		nullMoney(it.LastPrice), nullDate(it.LastPurchaseDate), r.stamp())
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("insert shopping item: %w", err)
	}
	return r.GetItem(ctx, it.ID)
}

// UpdateItem implements store.ShoppingStore
func (r *SQLiteRepository) UpdateItem(ctx context.Context, it core.ShoppingItem) (core.ShoppingItem, error) {
	if err := it.Validate(); err != nil {
		return core.ShoppingItem{}, err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE shopping_items SET
		name = ?, current_price_cents = ?, quantity = ?, checked = ?,
		last_price_cents = ?, last_purchase_date = ?
		WHERE id = ?`,
		strings.TrimSpace(it.Name), it.CurrentPrice.Cents, it.Quantity, it.Checked,
		nullMoney(it.LastPrice), nullDate(it.LastPurchaseDate), it.ID)
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("update shopping item: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return core.ShoppingItem{}, err
	}
	return r.GetItem(ctx, it.ID)
}

// DeleteItem implements store.ShoppingStore
func (r *SQLiteRepository) DeleteItem(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shopping_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shopping item: %w", err)
	}
	return affectedOne(res)
}

// LastPurchase implements store.ShoppingStore
func (r *SQLiteRepository) LastPurchase(ctx context.Context, name string) (*core.PurchaseRecord, error) {
	var (
		rec  core.PurchaseRecord
		date string
	)
	err := r.db.QueryRowContext(ctx, `SELECT item_name, price_cents, quantity, purchase_date
		FROM purchase_history WHERE name_key = ?
		ORDER BY purchase_date DESC, id DESC LIMIT 1`, nameKey(name)).
		Scan(&rec.ItemName, &rec.Price.Cents, &rec.Quantity, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last purchase: %w", err)
	}
	if rec.PurchaseDate, err = parseDate(date); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ItemSuggestions implements store.ShoppingStore
func (r *SQLiteRepository) ItemSuggestions(ctx context.Context) ([]string, error) {
	bought, err := r.names(ctx, `SELECT item_name FROM purchase_history ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query purchase history names: %w", err)
	}
	listed, err := r.names(ctx, `SELECT name FROM shopping_items ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query shopping item names: %w", err)
	}
	return core.ItemSuggestions(bought, listed), nil
}

func (r *SQLiteRepository) names(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// FinishList implements store.ShoppingStore
func (r *SQLiteRepository) FinishList(ctx context.Context, items []core.ShoppingItem, day core.Date) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, it := range items {
			res, err := tx.ExecContext(ctx, `DELETE FROM shopping_items WHERE id = ?`, it.ID)
			if err != nil {
				return fmt.Errorf("delete shopping item: %w", err)
			}
			if err := affectedOne(res); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO purchase_history
				(item_name, name_key, price_cents, quantity, purchase_date)
				VALUES (?, ?, ?, ?, ?)`,
				strings.TrimSpace(it.Name), nameKey(it.Name), it.CurrentPrice.Cents, it.Quantity, day.String()); err != nil {
				return fmt.Errorf("insert purchase history: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Shopping list finished", "items", len(items), "date", day.String())
	return nil
}
