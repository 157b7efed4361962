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

const taskColumns = `id, owner_id, title, anchor_date, all_day, start_minute, end_minute,
	repeat_type, repeat_until, created_at, updated_at`

func scanTask(row scanner) (core.Task, error) {
	var (
		t                core.Task
		anchor, repeat   string
		created, updated string
		allDay           bool
		startMin, endMin sql.NullInt64
		until            sql.NullString
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &anchor, &allDay, &startMin, &endMin,
		&repeat, &until, &created, &updated); err != nil {
		return core.Task{}, err
	}
	var err error
	if t.Anchor, err = parseDate(anchor); err != nil {
		return core.Task{}, err
	}
	if t.RepeatUntil, err = scanNullDate(until); err != nil {
		return core.Task{}, err
	}
	t.Repeat = core.RepeatType(repeat)
	t.Window = core.AllDay{}
	if !allDay && startMin.Valid && endMin.Valid {
		t.Window = core.TimedWindow{Start: core.ClockTime(startMin.Int64), End: core.ClockTime(endMin.Int64)}
	}
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

func windowColumns(w core.Window) (allDay bool, start, end sql.NullInt64) {
	tw, ok := w.(core.TimedWindow)
	if !ok {
		return true, start, end
	}
	return false, sql.NullInt64{Int64: int64(tw.Start), Valid: true}, sql.NullInt64{Int64: int64(tw.End), Valid: true}
}

// ListTasks implements store.TaskRepository
func (r *SQLiteRepository) ListTasks(ctx context.Context, ownerID string) ([]core.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = ? ORDER BY anchor_date, rowid`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []core.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) getTask(ctx context.Context, ownerID, id string) (core.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Task{}, store.ErrNotFound
	}
	if err != nil {
		return core.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// CreateTask implements store.TaskRepository
func (r *SQLiteRepository) CreateTask(ctx context.Context, t core.Task) (core.Task, error) {
	if err := t.Validate(); err != nil {
		return core.Task{}, err
	}
	t.ID = uuid.NewString()
	now := r.stamp()
	allDay, start, end := windowColumns(t.Window)

	_, err := r.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Title, t.Anchor.String(), allDay, start, end,
		string(t.Repeat), nullDate(t.RepeatUntil), now, now)
	if err != nil {
		return core.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return r.getTask(ctx, t.OwnerID, t.ID)
}

// UpdateTask implements store.TaskRepository
func (r *SQLiteRepository) UpdateTask(ctx context.Context, t core.Task) (core.Task, error) {
	if err := t.Validate(); err != nil {
		return core.Task{}, err
	}
	allDay, start, end := windowColumns(t.Window)
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET
		title = ?, anchor_date = ?, all_day = ?, start_minute = ?, end_minute = ?,
		repeat_type = ?, repeat_until = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		t.Title, t.Anchor.String(), allDay, start, end,
		string(t.Repeat), nullDate(t.RepeatUntil), r.stamp(), t.ID, t.OwnerID)
	if err != nil {
		return core.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return core.Task{}, err
	}
	return r.getTask(ctx, t.OwnerID, t.ID)
}

// DeleteTask implements store.TaskRepository
func (r *SQLiteRepository) DeleteTask(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return affectedOne(res)
}

// ListTaskOwners implements store.TaskRepository
func (r *SQLiteRepository) ListTaskOwners(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM tasks ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("query task owners: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		out = append(out, owner)
	}
	return out, rows.Err()
}
