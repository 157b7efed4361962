// Package memory implements every store port on mutex-guarded slices. It
// backs DATA_BACKEND=memory and the service tests.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"casa/internal/core"
	"casa/internal/store"

	"github.com/google/uuid"
)

var _ store.Backend = (*Store)(nil)

type Store struct {
	mu  sync.Mutex
	now store.Clock

	tasks        []core.Task
	transactions []core.Transaction
	syncState    map[string]string
	categories   []core.Category
	items        []core.ShoppingItem
	history      []core.PurchaseRecord
	countdowns   []core.Countdown
}

type Option func(*Store)

// WithClock pins the time used for CreatedAt and UpdatedAt stamps.
func WithClock(now store.Clock) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store seeded with the given category names.
func New(categories []string, opts ...Option) *Store {
	s := &Store{now: time.Now, syncState: make(map[string]string)}
	for _, o := range opts {
		o(s)
	}
	ts := s.now().UTC()
	for _, name := range dedupe(categories) {
		s.categories = append(s.categories, core.Category{
			ID: uuid.NewString(), Name: name, CreatedAt: ts, UpdatedAt: ts,
		})
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt, falling back
// to a small default set when the file is missing or empty.
func NewFromFiles(base string, opts ...Option) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = []string{"Alimentação", "Moradia", "Transporte"}
	}
	return New(cats, opts...)
}

func (s *Store) stamp() time.Time { return s.now().UTC() }

// Tasks

func (s *Store) ListTasks(_ context.Context, ownerID string) ([]core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Task
	for _, t := range s.tasks {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Anchor.Before(out[j].Anchor) })
	return out, nil
}

func (s *Store) CreateTask(_ context.Context, t core.Task) (core.Task, error) {
	if err := t.Validate(); err != nil {
		return core.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.NewString()
	t.CreatedAt = s.stamp()
	t.UpdatedAt = t.CreatedAt
	s.tasks = append(s.tasks, t)
	return t, nil
}

func (s *Store) UpdateTask(_ context.Context, t core.Task) (core.Task, error) {
	if err := t.Validate(); err != nil {
		return core.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.tasks {
		if cur.ID == t.ID && cur.OwnerID == t.OwnerID {
			t.CreatedAt = cur.CreatedAt
			t.UpdatedAt = s.stamp()
			s.tasks[i] = t
			return t, nil
		}
	}
	return core.Task{}, store.ErrNotFound
}

func (s *Store) DeleteTask(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.tasks {
		if cur.ID == id && cur.OwnerID == ownerID {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListTaskOwners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, t := range s.tasks {
		if _, ok := seen[t.OwnerID]; ok {
			continue
		}
		seen[t.OwnerID] = struct{}{}
		out = append(out, t.OwnerID)
	}
	sort.Strings(out)
	return out, nil
}

// Transactions

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(s.transactions))
	// newest insert first, then stable sort by date desc
	for i, tx := range s.transactions {
		out[len(out)-1-i] = tx
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, store.ErrNotFound
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCategory(tx.CategoryID) {
		return core.Transaction{}, store.ErrUnknownCategory
	}
	tx.ID = uuid.NewString()
	s.transactions = append(s.transactions, tx)
	s.syncState[tx.ID] = "pending"
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCategory(tx.CategoryID) {
		return core.Transaction{}, store.ErrUnknownCategory
	}
	for i, cur := range s.transactions {
		if cur.ID == tx.ID {
			s.transactions[i] = tx
			s.syncState[tx.ID] = "pending"
			return tx, nil
		}
	}
	return core.Transaction{}, store.ErrNotFound
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.transactions {
		if cur.ID == id {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			delete(s.syncState, id)
			return nil
		}
	}
	return store.ErrNotFound
}

// Sync tracking

func (s *Store) PendingSync(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, tx := range s.transactions {
		if limit > 0 && len(out) == limit {
			break
		}
		if state := s.syncState[tx.ID]; state == "pending" || state == "error" {
			out = append(out, tx.ID)
		}
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id string) error {
	return s.setSyncState(id, "synced")
}

func (s *Store) MarkSyncError(_ context.Context, id string) error {
	return s.setSyncState(id, "error")
}

// SyncState reports the export state of a transaction, or "" when unknown.
func (s *Store) SyncState(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncState[id]
}

func (s *Store) setSyncState(id, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.syncState[id]; !ok {
		return store.ErrNotFound
	}
	s.syncState[id] = state
	return nil
}

// Categories

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Category(nil), s.categories...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(c.Name, "") {
		return core.Category{}, store.ErrDuplicateName
	}
	c.ID = uuid.NewString()
	c.CreatedAt = s.stamp()
	c.UpdatedAt = c.CreatedAt
	s.categories = append(s.categories, c)
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(c.Name, c.ID) {
		return core.Category{}, store.ErrDuplicateName
	}
	for i, cur := range s.categories {
		if cur.ID == c.ID {
			c.CreatedAt = cur.CreatedAt
			c.UpdatedAt = s.stamp()
			s.categories[i] = c
			return c, nil
		}
	}
	return core.Category{}, store.ErrNotFound
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.transactions {
		if tx.CategoryID == id {
			return store.ErrCategoryInUse
		}
	}
	for i, cur := range s.categories {
		if cur.ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) hasCategory(id string) bool {
	for _, c := range s.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) nameTaken(name, exceptID string) bool {
	name = strings.TrimSpace(name)
	for _, c := range s.categories {
		if c.ID != exceptID && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// Shopping list

func (s *Store) ListItems(_ context.Context) ([]core.ShoppingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ShoppingItem(nil), s.items...), nil
}

func (s *Store) GetItem(_ context.Context, id string) (core.ShoppingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, nil
		}
	}
	return core.ShoppingItem{}, store.ErrNotFound
}

func (s *Store) CreateItem(_ context.Context, item core.ShoppingItem) (core.ShoppingItem, error) {
	if err := item.Validate(); err != nil {
		return core.ShoppingItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = uuid.NewString()
	item.CreatedAt = s.stamp()
	s.items = append(s.items, item)
	return item, nil
}

func (s *Store) UpdateItem(_ context.Context, item core.ShoppingItem) (core.ShoppingItem, error) {
	if err := item.Validate(); err != nil {
		return core.ShoppingItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.items {
		if cur.ID == item.ID {
			item.CreatedAt = cur.CreatedAt
			s.items[i] = item
			return item, nil
		}
	}
	return core.ShoppingItem{}, store.ErrNotFound
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.items {
		if cur.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) LastPurchase(_ context.Context, name string) (*core.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.TrimSpace(name)
	var last *core.PurchaseRecord
	for i := range s.history {
		rec := s.history[i]
		if !strings.EqualFold(rec.ItemName, name) {
			continue
		}
		if last == nil || !rec.PurchaseDate.Before(last.PurchaseDate) {
			last = &rec
		}
	}
	return last, nil
}

func (s *Store) ItemSuggestions(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bought := make([]string, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		bought = append(bought, s.history[i].ItemName)
	}
	listed := make([]string, 0, len(s.items))
	for _, it := range s.items {
		listed = append(listed, it.Name)
	}
	return core.ItemSuggestions(bought, listed), nil
}

func (s *Store) FinishList(_ context.Context, items []core.ShoppingItem, day core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]struct{}, len(items))
	for _, it := range items {
		if s.itemIndex(it.ID) < 0 {
			return store.ErrNotFound
		}
		drop[it.ID] = struct{}{}
	}
	for _, it := range items {
		s.history = append(s.history, core.PurchaseRecord{
			ItemName:     it.Name,
			Price:        it.CurrentPrice,
			Quantity:     it.Quantity,
			PurchaseDate: day,
		})
	}
	kept := s.items[:0]
	for _, it := range s.items {
		if _, ok := drop[it.ID]; !ok {
			kept = append(kept, it)
		}
	}
	s.items = kept
	return nil
}

func (s *Store) itemIndex(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Countdowns

func (s *Store) ListCountdowns(_ context.Context) ([]core.Countdown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Countdown, len(s.countdowns))
	for i, c := range s.countdowns {
		out[len(out)-1-i] = c
	}
	return out, nil
}

func (s *Store) CreateCountdown(_ context.Context, c core.Countdown) (core.Countdown, error) {
	if err := c.Validate(); err != nil {
		return core.Countdown{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = s.stamp()
	c.UpdatedAt = c.CreatedAt
	s.countdowns = append(s.countdowns, c)
	return c, nil
}

func (s *Store) UpdateCountdown(_ context.Context, c core.Countdown) (core.Countdown, error) {
	if err := c.Validate(); err != nil {
		return core.Countdown{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.countdowns {
		if cur.ID == c.ID {
			c.CreatedAt = cur.CreatedAt
			c.UpdatedAt = s.stamp()
			s.countdowns[i] = c
			return c, nil
		}
	}
	return core.Countdown{}, store.ErrNotFound
}

func (s *Store) DeleteCountdown(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.countdowns {
		if cur.ID == id {
			s.countdowns = append(s.countdowns[:i], s.countdowns[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
