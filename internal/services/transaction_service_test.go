package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"casa/internal/amqp"
	"casa/internal/core"
	"casa/internal/store"
	"casa/internal/store/memory"
)

type published struct {
	id string
	op amqp.SyncOp
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) PublishTransactionSync(_ context.Context, id string, op amqp.SyncOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{id, op})
	return f.err
}

func newLedger(t *testing.T) (*memory.Store, string) {
	t.Helper()
	st := memory.New([]string{"Mercado"})
	cats, err := st.ListCategories(context.Background())
	if err != nil || len(cats) == 0 {
		t.Fatalf("ListCategories = %v, %v", cats, err)
	}
	return st, cats[0].ID
}

func TestTransactionServicePublishesChanges(t *testing.T) {
	ctx := context.Background()
	st, cat := newLedger(t)
	pub := &fakePublisher{}
	svc := NewTransactionService(st, pub, nil)

	tx, err := svc.Create(ctx, core.Transaction{Amount: core.Money{Cents: -1000}, CategoryID: cat, Description: "Pão", Date: core.NewDate(2024, 1, 2)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tx.Description = "Pão francês"
	if _, err := svc.Update(ctx, tx); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := svc.Delete(ctx, tx.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := []published{{tx.ID, amqp.OpUpsert}, {tx.ID, amqp.OpUpsert}, {tx.ID, amqp.OpDelete}}
	if len(pub.msgs) != len(want) {
		t.Fatalf("published %v, want %v", pub.msgs, want)
	}
	for i := range want {
		if pub.msgs[i] != want[i] {
			t.Errorf("message %d = %v, want %v", i, pub.msgs[i], want[i])
		}
	}
}

func TestTransactionServiceToleratesPublisherFailure(t *testing.T) {
	ctx := context.Background()
	st, cat := newLedger(t)

	for name, pub := range map[string]SyncPublisher{
		"nil publisher":     nil,
		"failing publisher": &fakePublisher{err: errors.New("broker down")},
	} {
		t.Run(name, func(t *testing.T) {
			svc := NewTransactionService(st, pub, nil)
			if _, err := svc.Create(ctx, core.Transaction{Amount: core.Money{Cents: 500}, CategoryID: cat, Description: "Pix", Date: core.NewDate(2024, 1, 3)}); err != nil {
				t.Fatalf("Create should not fail: %v", err)
			}
		})
	}
}

func TestTransactionServiceReturnsStoreErrors(t *testing.T) {
	ctx := context.Background()
	st, cat := newLedger(t)
	pub := &fakePublisher{}
	svc := NewTransactionService(st, pub, nil)

	_, err := svc.Create(ctx, core.Transaction{CategoryID: cat, Description: "zero", Date: core.NewDate(2024, 1, 1)})
	if err == nil {
		t.Fatal("expected validation error for zero amount")
	}
	if err := svc.Delete(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete(missing) = %v, want ErrNotFound", err)
	}
	if len(pub.msgs) != 0 {
		t.Errorf("failed writes published %v", pub.msgs)
	}
}

func TestDashboardCacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	st, cat := newLedger(t)
	dash := NewDashboardService(st, 16, time.Minute)
	svc := NewTransactionService(st, nil, dash)

	if _, err := svc.Create(ctx, core.Transaction{Amount: core.Money{Cents: 10000}, CategoryID: cat, Description: "Salário", Date: core.NewDate(2024, 2, 1), Responsible: "Ana"}); err != nil {
		t.Fatal(err)
	}
	sum, err := dash.Summary(ctx, core.TransactionFilter{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Balance.Cents != 10000 {
		t.Fatalf("Balance = %d, want 10000", sum.Balance.Cents)
	}

	if _, err := svc.Create(ctx, core.Transaction{Amount: core.Money{Cents: -2500}, CategoryID: cat, Description: "Feira", Date: core.NewDate(2024, 2, 2), Responsible: "João"}); err != nil {
		t.Fatal(err)
	}
	sum, _ = dash.Summary(ctx, core.TransactionFilter{}, 0)
	if sum.Balance.Cents != 7500 || sum.Expenses.Cents != -2500 || sum.Income.Cents != 10000 {
		t.Errorf("summary after write = %+v", sum)
	}

	ana, _ := dash.Summary(ctx, core.TransactionFilter{Responsible: "Ana"}, 0)
	if ana.Balance.Cents != 10000 || len(ana.Recent) != 1 {
		t.Errorf("filtered summary = %+v", ana)
	}

	names, err := dash.Responsibles(ctx)
	if err != nil || len(names) != 2 {
		t.Errorf("Responsibles() = %v, %v", names, err)
	}
}

type countingLister struct {
	calls int
	txs   []core.Transaction
}

func (c *countingLister) ListTransactions(context.Context) ([]core.Transaction, error) {
	c.calls++
	return c.txs, nil
}

func TestDashboardSummaryIsCachedPerFilter(t *testing.T) {
	ctx := context.Background()
	lister := &countingLister{txs: []core.Transaction{{ID: "1", Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 1)}}}
	dash := NewDashboardService(lister, 16, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := dash.Summary(ctx, core.TransactionFilter{}, 0); err != nil {
			t.Fatal(err)
		}
	}
	if lister.calls != 1 {
		t.Fatalf("ListTransactions called %d times, want 1", lister.calls)
	}
	if _, err := dash.Summary(ctx, core.TransactionFilter{Responsible: "x"}, 0); err != nil {
		t.Fatal(err)
	}
	if lister.calls != 2 {
		t.Errorf("new filter did not reload: calls = %d", lister.calls)
	}
}

// gatedLister blocks the first listing until release is closed.
type gatedLister struct {
	inner   TransactionLister
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedLister) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	txs, err := g.inner.ListTransactions(ctx)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return txs, err
}

func TestDashboardDoesNotCacheSummaryRacingAWrite(t *testing.T) {
	ctx := context.Background()
	st, cat := newLedger(t)
	lister := &gatedLister{inner: st, entered: make(chan struct{}), release: make(chan struct{})}
	dash := NewDashboardService(lister, 16, time.Minute)
	svc := NewTransactionService(st, nil, dash)

	done := make(chan error, 1)
	go func() {
		_, err := dash.Summary(ctx, core.TransactionFilter{}, 0)
		done <- err
	}()
	<-lister.entered

	if _, err := svc.Create(ctx, core.Transaction{Amount: core.Money{Cents: -500}, CategoryID: cat, Description: "Café", Date: core.NewDate(2024, 3, 1)}); err != nil {
		t.Fatal(err)
	}
	close(lister.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	sum, err := dash.Summary(ctx, core.TransactionFilter{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Balance.Cents != -500 {
		t.Fatalf("Balance = %d, want -500", sum.Balance.Cents)
	}
}
