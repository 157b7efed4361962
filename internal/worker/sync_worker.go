package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"casa/internal/amqp"
	"casa/internal/cache"
	"casa/internal/core"
	"casa/internal/sheets"
	"casa/internal/store"

	"golang.org/x/sync/errgroup"
)

// Source is the slice of the backend the worker reads from.
type Source interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	store.SyncTracker
}

// Consumer delivers sync messages until ctx is done.
type Consumer interface {
	ConsumeTransactionSync(ctx context.Context, handler func(context.Context, *amqp.TransactionSyncMessage) error) error
}

// SyncWorker exports transactions from the store to the spreadsheet ledger.
type SyncWorker struct {
	source     Source
	ledger     sheets.LedgerWriter
	categories *cache.Loading[string]
	batchSize  int
}

func NewSyncWorker(source Source, ledger sheets.LedgerWriter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	w := &SyncWorker{source: source, ledger: ledger, batchSize: batchSize}
	names := cache.NewLRUCache[string](256, 10*time.Minute)
	w.categories = cache.NewLoading(names, func(ctx context.Context, id string) (string, error) {
		cats, err := source.ListCategories(ctx)
		if err != nil {
			return "", err
		}
		found := ""
		for _, c := range cats {
			names.Set(c.ID, c.Name)
			if c.ID == id {
				found = c.Name
			}
		}
		if found == "" {
			return "", store.ErrNotFound
		}
		return found, nil
	})
	return w
}

// Cache exposes the category name cache for periodic cleanup.
func (w *SyncWorker) Cache() cache.Cleaner { return w.categories.LRUCache }

// HandleMessage processes a single sync message from AMQP
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "id", msg.ID, "op", msg.Op)

	switch msg.Op {
	case amqp.OpDelete:
		return w.deleteRow(ctx, msg.ID)
	case amqp.OpUpsert:
		tx, err := w.source.GetTransaction(ctx, msg.ID)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted before the worker caught up; the delete message follows.
			slog.WarnContext(ctx, "Transaction vanished before sync", "id", msg.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get transaction from storage: %w", err)
		}
		return w.syncTransaction(ctx, tx)
	default:
		return fmt.Errorf("unknown sync op %q", msg.Op)
	}
}

// ProcessPending exports up to batchSize transactions that are still
// pending or failed. It is the backup path for lost AMQP messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced int, err error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger backlog once when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	ids, err := w.source.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	slog.InfoContext(ctx, "Processing pending transactions", "count", len(ids))

	synced := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		tx, err := w.source.GetTransaction(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get transaction", "id", id, "error", err)
			continue
		}
		if err := w.syncTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction", "id", id, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// Run consumes sync messages and retries pending transactions every
// interval until ctx is cancelled. consumer may be nil, leaving only the
// periodic pass.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	if err := w.StartupSyncCheck(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup sync check failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeTransactionSync(ctx, w.HandleMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	if interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if _, err := w.ProcessPending(ctx); err != nil {
						slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
					}
				}
			}
		})
	}
	return g.Wait()
}

func (w *SyncWorker) syncTransaction(ctx context.Context, tx core.Transaction) error {
	row := sheets.LedgerRow{
		ID:          tx.ID,
		Date:        tx.Date,
		Description: tx.Description,
		Category:    w.categoryName(ctx, tx.CategoryID),
		Responsible: tx.Responsible,
		Amount:      tx.Amount,
	}

	ref, err := w.ledger.UpsertTransaction(ctx, row)
	if err != nil {
		if markErr := w.source.MarkSyncError(ctx, tx.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", tx.ID, "error", markErr)
		}
		return fmt.Errorf("upsert ledger row: %w", err)
	}

	if err := w.source.MarkSynced(ctx, tx.ID); err != nil {
		// The row is exported; a stale state only causes a harmless re-upsert.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", tx.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced transaction",
		"id", tx.ID,
		"sheets_ref", ref,
		"amount_cents", tx.Amount.Cents)
	return nil
}

func (w *SyncWorker) deleteRow(ctx context.Context, id string) error {
	err := w.ledger.DeleteTransaction(ctx, id)
	if errors.Is(err, sheets.ErrRowNotFound) {
		slog.InfoContext(ctx, "Ledger row already absent", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete ledger row: %w", err)
	}
	slog.InfoContext(ctx, "Successfully deleted ledger row", "id", id)
	return nil
}

// categoryName resolves a category id, falling back to the id itself.
func (w *SyncWorker) categoryName(ctx context.Context, id string) string {
	name, err := w.categories.Fetch(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "Unknown category for ledger row", "category_id", id, "error", err)
		return id
	}
	return name
}
