// Package store declares the persistence ports the application talks to.
// Adapters live in internal/storage (SQLite) and internal/store/memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casa/internal/core"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateName = errors.New("name already exists")
	ErrCategoryInUse = errors.New("category is used by transactions")

	// ErrUnknownCategory matches ErrNotFound too.
	ErrUnknownCategory = fmt.Errorf("%w: unknown category", ErrNotFound)
)

// Ports for outbound adapters.
type (
	// TaskRepository persists agenda tasks keyed by their owning user.
	TaskRepository interface {
		// ListTasks returns the owner's tasks ordered by anchor date.
		ListTasks(ctx context.Context, ownerID string) ([]core.Task, error)
		// CreateTask assigns an id and timestamps and returns the stored task.
		CreateTask(ctx context.Context, t core.Task) (core.Task, error)
		UpdateTask(ctx context.Context, t core.Task) (core.Task, error)
		DeleteTask(ctx context.Context, ownerID, id string) error
		// ListTaskOwners returns every owner with at least one task.
		ListTaskOwners(ctx context.Context) ([]string, error)
	}

	// TransactionStore persists the household ledger.
	TransactionStore interface {
		// ListTransactions returns every transaction, newest first.
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
	}

	// SyncTracker records which transactions still need exporting.
	SyncTracker interface {
		// PendingSync returns ids in state pending or error, oldest first.
		PendingSync(ctx context.Context, limit int) ([]string, error)
		MarkSynced(ctx context.Context, id string) error
		MarkSyncError(ctx context.Context, id string) error
	}

	CategoryStore interface {
		// ListCategories returns categories ordered by name.
		ListCategories(ctx context.Context) ([]core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, id string) error
	}

	ShoppingStore interface {
		// ListItems returns the shopping list in insertion order.
		ListItems(ctx context.Context) ([]core.ShoppingItem, error)
		GetItem(ctx context.Context, id string) (core.ShoppingItem, error)
		CreateItem(ctx context.Context, item core.ShoppingItem) (core.ShoppingItem, error)
		UpdateItem(ctx context.Context, item core.ShoppingItem) (core.ShoppingItem, error)
		DeleteItem(ctx context.Context, id string) error
		// LastPurchase finds the most recent purchase of an item by
		// case-insensitive name. It returns nil when there is none.
		LastPurchase(ctx context.Context, name string) (*core.PurchaseRecord, error)
		// FinishList records the given items as purchased on day and removes
		// them from the list, all or nothing.
		FinishList(ctx context.Context, items []core.ShoppingItem, day core.Date) error
		// ItemSuggestions returns distinct item names, purchase history
		// newest first followed by the current list.
		ItemSuggestions(ctx context.Context) ([]string, error)
	}

	CountdownStore interface {
		// ListCountdowns returns countdowns, most recently created first.
		ListCountdowns(ctx context.Context) ([]core.Countdown, error)
		CreateCountdown(ctx context.Context, c core.Countdown) (core.Countdown, error)
		UpdateCountdown(ctx context.Context, c core.Countdown) (core.Countdown, error)
		DeleteCountdown(ctx context.Context, id string) error
	}

	// Backend bundles every port a running server needs.
	Backend interface {
		TaskRepository
		TransactionStore
		SyncTracker
		CategoryStore
		ShoppingStore
		CountdownStore
	}
)

// Clock returns the current time; adapters take one so tests can pin it.
type Clock func() time.Time
