package services

import (
	"context"
	"fmt"
	"log/slog"

	"casa/internal/amqp"
	"casa/internal/core"
	applog "casa/internal/log"
	"casa/internal/store"
)

// SyncPublisher announces ledger changes to the sync worker.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id string, op amqp.SyncOp) error
}

// TransactionService orchestrates transaction writes across the store and AMQP
type TransactionService struct {
	store     store.TransactionStore
	publisher SyncPublisher
	dashboard *DashboardService
}

// NewTransactionService wires the service. publisher and dashboard may be nil.
func NewTransactionService(st store.TransactionStore, publisher SyncPublisher, dashboard *DashboardService) *TransactionService {
	return &TransactionService{store: st, publisher: publisher, dashboard: dashboard}
}

func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// Create saves a transaction locally and publishes a sync message
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	created, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	logSaved(ctx, applog.OpCreate, created)
	s.changed(ctx, created.ID, amqp.OpUpsert)
	return created, nil
}

func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	logSaved(ctx, applog.OpUpdate, updated)
	s.changed(ctx, updated.ID, amqp.OpUpsert)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.changed(ctx, id, amqp.OpDelete)
	return nil
}

// changed never fails the request: the write is already stored and the
// periodic sync pass picks up anything a lost message missed.
func (s *TransactionService) changed(ctx context.Context, id string, op amqp.SyncOp) {
	if s.dashboard != nil {
		s.dashboard.Invalidate()
	}
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message", "id", id, "op", op)
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, id, op); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "op", op, "error", err)
	}
}

func logSaved(ctx context.Context, op string, tx core.Transaction) {
	fields := applog.NewFields().
		WithEntity("transaction", tx.ID).
		WithTransaction(tx.Amount.Cents, tx.CategoryID).
		WithOperation(op)
	applog.FromContext(ctx).WithComponent(applog.ComponentLedger).DebugContext(ctx, "Transaction saved", fields.ToSlice()...)
}
