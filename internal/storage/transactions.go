package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"casa/internal/core"
	"casa/internal/store"

	"github.com/google/uuid"
)

const (
	syncPending = "pending"
	syncDone    = "synced"
	syncError   = "error"
)

const transactionColumns = `id, amount_cents, category_id, description, tx_date, responsible`

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		tx   core.Transaction
		date string
	)
	if err := row.Scan(&tx.ID, &tx.Amount.Cents, &tx.CategoryID, &tx.Description, &date, &tx.Responsible); err != nil {
		return core.Transaction{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Date = d
	return tx, nil
}

// ListTransactions implements store.TransactionStore
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY tx_date DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// GetTransaction implements store.TransactionStore
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// CreateTransaction implements store.TransactionStore
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = uuid.NewString()
	now := r.stamp()
	_, err := r.db.ExecContext(ctx, `INSERT INTO transactions
		(`+transactionColumns+`, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Amount.Cents, tx.CategoryID, tx.Description, tx.Date.String(), tx.Responsible,
		syncPending, now, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Transaction{}, store.ErrUnknownCategory
		}
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"amount_cents", tx.Amount.Cents,
		"date", tx.Date.String())
	return tx, nil
}

// UpdateTransaction implements store.TransactionStore. The row is queued for
// export again.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET
		amount_cents = ?, category_id = ?, description = ?, tx_date = ?, responsible = ?,
		sync_status = ?, updated_at = ?
		WHERE id = ?`,
		tx.Amount.Cents, tx.CategoryID, tx.Description, tx.Date.String(), tx.Responsible,
		syncPending, r.stamp(), tx.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Transaction{}, store.ErrUnknownCategory
		}
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// DeleteTransaction implements store.TransactionStore
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return affectedOne(res)
}

// PendingSync implements store.SyncTracker
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM transactions WHERE sync_status IN (?, ?) ORDER BY rowid LIMIT ?`, syncPending, syncError, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending sync: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkSynced implements store.SyncTracker
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if err := r.setSyncStatus(ctx, id, syncDone); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

// MarkSyncError implements store.SyncTracker
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if err := r.setSyncStatus(ctx, id, syncError); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

// SyncStatus returns the export state of a transaction.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT sync_status FROM transactions WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get sync status: %w", err)
	}
	return status, nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	return affectedOne(res)
}
