// Package sheets exports the household ledger to a spreadsheet.
package sheets

import (
	"context"
	"errors"

	"casa/internal/core"
)

var ErrRowNotFound = errors.New("ledger row not found")

// LedgerRow is one transaction as it appears in the exported ledger.
type LedgerRow struct {
	ID          string
	Date        core.Date
	Description string
	Category    string
	Responsible string
	Amount      core.Money
}

// Kind labels the row for spreadsheet filters.
func (r LedgerRow) Kind() string {
	if r.Amount.Cents > 0 {
		return "income"
	}
	return "expense"
}

// Ports for outbound adapters.
type (
	// LedgerWriter keeps one row per transaction id.
	LedgerWriter interface {
		// UpsertTransaction writes the row, replacing any previous row with
		// the same id, and returns a reference to where it landed.
		UpsertTransaction(ctx context.Context, row LedgerRow) (rowRef string, err error)
		// DeleteTransaction removes the row with the given id. It returns
		// ErrRowNotFound when there is none.
		DeleteTransaction(ctx context.Context, id string) error
	}

	LedgerReader interface {
		// ReadLedger returns the rows exported for a year, in sheet order.
		ReadLedger(ctx context.Context, year int) ([]LedgerRow, error)
	}
)
