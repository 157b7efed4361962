// Package memory is an in-process ledger used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"casa/internal/sheets"
)

var (
	_ sheets.LedgerWriter = (*Ledger)(nil)
	_ sheets.LedgerReader = (*Ledger)(nil)
)

type Ledger struct {
	mu   sync.Mutex
	rows []sheets.LedgerRow
	err  error
}

func New() *Ledger { return &Ledger{} }

// FailWith makes every following write return err until called with nil.
func (l *Ledger) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *Ledger) UpsertTransaction(_ context.Context, row sheets.LedgerRow) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	for i := range l.rows {
		if l.rows[i].ID == row.ID {
			l.rows[i] = row
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	l.rows = append(l.rows, row)
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

func (l *Ledger) DeleteTransaction(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	for i := range l.rows {
		if l.rows[i].ID == id {
			l.rows = append(l.rows[:i], l.rows[i+1:]...)
			return nil
		}
	}
	return sheets.ErrRowNotFound
}

func (l *Ledger) ReadLedger(_ context.Context, year int) ([]sheets.LedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []sheets.LedgerRow
	for _, r := range l.rows {
		if r.Date.Year() == year {
			out = append(out, r)
		}
	}
	return out, nil
}

// Rows returns every row regardless of year.
func (l *Ledger) Rows() []sheets.LedgerRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]sheets.LedgerRow(nil), l.rows...)
}
