package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"casa/internal/core"
	"casa/internal/store"

	"github.com/google/uuid"
)

const countdownColumns = `id, title, target_date, background_image_url, created_at, updated_at`

func scanCountdown(row scanner) (core.Countdown, error) {
	var (
		c                core.Countdown
		target           string
		created, updated string
	)
	if err := row.Scan(&c.ID, &c.Title, &target, &c.BackgroundImageURL, &created, &updated); err != nil {
		return core.Countdown{}, err
	}
	d, err := parseDate(target)
	if err != nil {
		return core.Countdown{}, err
	}
	c.TargetDate = d
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

// ListCountdowns implements store.CountdownStore
func (r *SQLiteRepository) ListCountdowns(ctx context.Context) ([]core.Countdown, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+countdownColumns+` FROM countdowns ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query countdowns: %w", err)
	}
	defer rows.Close()

	var out []core.Countdown
	for rows.Next() {
		c, err := scanCountdown(rows)
		if err != nil {
			return nil, fmt.Errorf("scan countdown: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) getCountdown(ctx context.Context, id string) (core.Countdown, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+countdownColumns+` FROM countdowns WHERE id = ?`, id)
	c, err := scanCountdown(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Countdown{}, store.ErrNotFound
	}
	if err != nil {
		return core.Countdown{}, fmt.Errorf("get countdown: %w", err)
	}
	return c, nil
}

// CreateCountdown implements store.CountdownStore
func (r *SQLiteRepository) CreateCountdown(ctx context.Context, c core.Countdown) (core.Countdown, error) {
	if err := c.Validate(); err != nil {
		return core.Countdown{}, err
	}
	c.ID = uuid.NewString()
	now := r.stamp()
	if _, err := r.db.ExecContext(ctx, `INSERT INTO countdowns (`+countdownColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.TargetDate.String(), c.BackgroundImageURL, now, now); err != nil {
		return core.Countdown{}, fmt.Errorf("insert countdown: %w", err)
	}
	return r.getCountdown(ctx, c.ID)
}

// UpdateCountdown implements store.CountdownStore
func (r *SQLiteRepository) UpdateCountdown(ctx context.Context, c core.Countdown) (core.Countdown, error) {
	if err := c.Validate(); err != nil {
		return core.Countdown{}, err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE countdowns SET
		title = ?, target_date = ?, background_image_url = ?, updated_at = ?
		WHERE id = ?`,
		c.Title, c.TargetDate.String(), c.BackgroundImageURL, r.stamp(), c.ID)
	if err != nil {
		return core.Countdown{}, fmt.Errorf("update countdown: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return core.Countdown{}, err
	}
	return r.getCountdown(ctx, c.ID)
}

// DeleteCountdown implements store.CountdownStore
func (r *SQLiteRepository) DeleteCountdown(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM countdowns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete countdown: %w", err)
	}
	return affectedOne(res)
}
