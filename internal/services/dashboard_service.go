package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"casa/internal/cache"
	"casa/internal/core"
)

// TransactionLister is the read side the dashboard needs.
type TransactionLister interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
}

// DashboardService aggregates transactions, caching one summary per filter.
// A summary computed while Invalidate ran is returned but never cached.
type DashboardService struct {
	txs       TransactionLister
	summaries *cache.LRUCache[core.DashboardSummary]

	mu         sync.Mutex
	generation uint64
}

func NewDashboardService(txs TransactionLister, maxEntries int, ttl time.Duration) *DashboardService {
	return &DashboardService{
		txs:       txs,
		summaries: cache.NewLRUCache[core.DashboardSummary](maxEntries, ttl),
	}
}

// Summary returns the dashboard for f. recentLimit <= 0 uses core.DefaultRecentLimit.
func (s *DashboardService) Summary(ctx context.Context, f core.TransactionFilter, recentLimit int) (core.DashboardSummary, error) {
	if recentLimit <= 0 {
		recentLimit = core.DefaultRecentLimit
	}
	key := f.Key() + "|" + strconv.Itoa(recentLimit)
	if sum, ok := s.summaries.Get(key); ok {
		return sum, nil
	}
	gen := s.currentGeneration()
	txs, err := s.txs.ListTransactions(ctx)
	if err != nil {
		return core.DashboardSummary{}, fmt.Errorf("list transactions: %w", err)
	}
	sum := core.Summarize(txs, f, recentLimit)

	s.mu.Lock()
	if s.generation == gen {
		s.summaries.Set(key, sum)
	}
	s.mu.Unlock()
	return sum, nil
}

// Responsibles lists the household members that appear on transactions.
func (s *DashboardService) Responsibles(ctx context.Context) ([]string, error) {
	txs, err := s.txs.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return core.Responsibles(txs), nil
}

func (s *DashboardService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Invalidate drops every cached summary, including ones still being computed.
func (s *DashboardService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.summaries.Purge()
}

// Cache exposes the summary cache for periodic cleanup.
func (s *DashboardService) Cache() cache.Cleaner { return s.summaries }
