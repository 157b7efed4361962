package core

import (
	"sort"
	"strings"
)

// DefaultRecentLimit is how many transactions the dashboard lists when the
// caller does not ask for a specific amount.
const DefaultRecentLimit = 150

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID string
	Amount     Money
}

// TransactionFilter narrows a transaction list. Zero fields match everything.
// The date range only applies when both ends are set.
type TransactionFilter struct {
	From        *Date
	To          *Date
	Responsible string
	CategoryID  string
}

// DashboardSummary is the aggregated view of a filtered transaction list.
type DashboardSummary struct {
	Balance    Money
	Income     Money
	Expenses   Money
	ByCategory []CategoryAmount
	Recent     []Transaction
}

// Match reports whether tx passes the filter.
func (f TransactionFilter) Match(tx Transaction) bool {
	if f.From != nil && f.To != nil {
		if tx.Date.Before(*f.From) || tx.Date.After(*f.To) {
			return false
		}
	}
	if f.Responsible != "" && tx.Responsible != f.Responsible {
		return false
	}
	if f.CategoryID != "" && tx.CategoryID != f.CategoryID {
		return false
	}
	return true
}

// Key returns a stable string for caching results of this filter.
func (f TransactionFilter) Key() string {
	var b strings.Builder
	if f.From != nil {
		b.WriteString(f.From.String())
	}
	b.WriteByte('|')
	if f.To != nil {
		b.WriteString(f.To.String())
	}
	b.WriteByte('|')
	b.WriteString(f.Responsible)
	b.WriteByte('|')
	b.WriteString(f.CategoryID)
	return b.String()
}

// Filter returns the transactions matching f, preserving order.
func Filter(txs []Transaction, f TransactionFilter) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// Balance sums every transaction.
func Balance(txs []Transaction) Money {
	var total Money
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total
}

// Income sums the positive transactions.
func Income(txs []Transaction) Money {
	var total Money
	for _, tx := range txs {
		if tx.Amount.Cents > 0 {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// Expenses sums the negative transactions. The result is negative or zero.
func Expenses(txs []Transaction) Money {
	var total Money
	for _, tx := range txs {
		if tx.Amount.Cents < 0 {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// ByCategory totals expenses per category, largest spend first. Ties are
// broken by category id so the output is deterministic.
func ByCategory(txs []Transaction) []CategoryAmount {
	totals := make(map[string]int64)
	for _, tx := range txs {
		if tx.Amount.Cents < 0 {
			totals[tx.CategoryID] += tx.Amount.Cents
		}
	}
	out := make([]CategoryAmount, 0, len(totals))
	for id, cents := range totals {
		out = append(out, CategoryAmount{CategoryID: id, Amount: Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].Amount.Abs().Cents, out[j].Amount.Abs().Cents
		if ai != aj {
			return ai > aj
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// Recent returns up to limit transactions, newest first. A non-positive
// limit falls back to DefaultRecentLimit.
func Recent(txs []Transaction, limit int) []Transaction {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	out := append([]Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Responsibles lists the distinct non-empty responsible names in the order
// they first appear.
func Responsibles(txs []Transaction) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tx := range txs {
		name := strings.TrimSpace(tx.Responsible)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Summarize applies f and builds the dashboard view.
func Summarize(txs []Transaction, f TransactionFilter, recentLimit int) DashboardSummary {
	filtered := Filter(txs, f)
	return DashboardSummary{
		Balance:    Balance(filtered),
		Income:     Income(filtered),
		Expenses:   Expenses(filtered),
		ByCategory: ByCategory(filtered),
		Recent:     Recent(filtered, recentLimit),
	}
}
