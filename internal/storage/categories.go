package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"casa/internal/core"
	"casa/internal/store"

	"github.com/google/uuid"
)

func scanCategory(row scanner) (core.Category, error) {
	var (
		c                core.Category
		created, updated string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Icon, &created, &updated); err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

// ListCategories implements store.CategoryStore
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, icon, created_at, updated_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) getCategory(ctx context.Context, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, icon, created_at, updated_at FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, store.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// CreateCategory implements store.CategoryStore
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.ID = uuid.NewString()
	now := r.stamp()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, name_key, icon, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, strings.TrimSpace(c.Name), nameKey(c.Name), c.Icon, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, store.ErrDuplicateName
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return r.getCategory(ctx, c.ID)
}

// UpdateCategory implements store.CategoryStore
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, name_key = ?, icon = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(c.Name), nameKey(c.Name), c.Icon, r.stamp(), c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, store.ErrDuplicateName
		}
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return core.Category{}, err
	}
	return r.getCategory(ctx, c.ID)
}

// DeleteCategory implements store.CategoryStore. Categories still referenced
// by transactions are kept.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var used int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions WHERE category_id = ?`, id).Scan(&used); err != nil {
			return fmt.Errorf("count category usage: %w", err)
		}
		if used > 0 {
			return store.ErrCategoryInUse
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return store.ErrCategoryInUse
			}
			return fmt.Errorf("delete category: %w", err)
		}
		return affectedOne(res)
	})
}
