package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"casa/internal/core"
	"casa/internal/store"
)

// ShoppingService manages the shopping list and its purchase history.
type ShoppingService struct {
	store store.ShoppingStore
	now   store.Clock
}

func NewShoppingService(st store.ShoppingStore, now store.Clock) *ShoppingService {
	if now == nil {
		now = time.Now
	}
	return &ShoppingService{store: st, now: now}
}

// List returns the list with each item's last purchase filled in.
func (s *ShoppingService) List(ctx context.Context) ([]core.ShoppingItem, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	for i := range items {
		if items[i], err = s.enrich(ctx, items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (s *ShoppingService) Add(ctx context.Context, item core.ShoppingItem) (core.ShoppingItem, error) {
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	item.Checked = false
	created, err := s.store.CreateItem(ctx, item)
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("create item: %w", err)
	}
	return s.enrich(ctx, created)
}

// Edit changes name, price and quantity, keeping the checked flag.
func (s *ShoppingService) Edit(ctx context.Context, item core.ShoppingItem) (core.ShoppingItem, error) {
	cur, err := s.store.GetItem(ctx, item.ID)
	if err != nil {
		return core.ShoppingItem{}, err
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	cur.Name, cur.CurrentPrice, cur.Quantity = item.Name, item.CurrentPrice, item.Quantity
	updated, err := s.store.UpdateItem(ctx, cur)
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("update item: %w", err)
	}
	return s.enrich(ctx, updated)
}

func (s *ShoppingService) Toggle(ctx context.Context, id string) (core.ShoppingItem, error) {
	cur, err := s.store.GetItem(ctx, id)
	if err != nil {
		return core.ShoppingItem{}, err
	}
	cur.Checked = !cur.Checked
	updated, err := s.store.UpdateItem(ctx, cur)
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("toggle item: %w", err)
	}
	return s.enrich(ctx, updated)
}

func (s *ShoppingService) Remove(ctx context.Context, id string) error {
	return s.store.DeleteItem(ctx, id)
}

// Finish records every checked item as bought today and removes them from
// the list. It returns how many items were finished.
func (s *ShoppingService) Finish(ctx context.Context) (int, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("list items: %w", err)
	}
	var checked []core.ShoppingItem
	for _, it := range items {
		if it.Checked {
			checked = append(checked, it)
		}
	}
	if len(checked) == 0 {
		return 0, nil
	}
	if err := s.store.FinishList(ctx, checked, core.DateOf(s.now())); err != nil {
		return 0, fmt.Errorf("finish list: %w", err)
	}
	slog.InfoContext(ctx, "Shopping list finished", "items", len(checked))
	return len(checked), nil
}

// Suggestions lists item names for autocomplete.
func (s *ShoppingService) Suggestions(ctx context.Context) ([]string, error) {
	names, err := s.store.ItemSuggestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("item suggestions: %w", err)
	}
	return names, nil
}

func (s *ShoppingService) enrich(ctx context.Context, item core.ShoppingItem) (core.ShoppingItem, error) {
	last, err := s.store.LastPurchase(ctx, item.Name)
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("last purchase of %q: %w", item.Name, err)
	}
	item.LastPrice, item.LastPurchaseDate = nil, nil
	if last != nil {
		price, day := last.Price, last.PurchaseDate
		item.LastPrice, item.LastPurchaseDate = &price, &day
	}
	return item, nil
}
