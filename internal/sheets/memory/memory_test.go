package memory

import (
	"context"
	"errors"
	"testing"

	"casa/internal/core"
	"casa/internal/sheets"
)

func TestLedgerUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	l := New()

	row := sheets.LedgerRow{ID: "a", Date: core.NewDate(2024, 1, 2), Description: "Rent", Amount: core.Money{Cents: -90000}}
	ref, err := l.UpsertTransaction(ctx, row)
	if err != nil || ref != "mem:1" {
		t.Fatalf("UpsertTransaction = %q, %v", ref, err)
	}

	row.Description = "Rent January"
	if ref, _ := l.UpsertTransaction(ctx, row); ref != "mem:1" {
		t.Errorf("second upsert landed on %q, want mem:1", ref)
	}
	if rows := l.Rows(); len(rows) != 1 || rows[0].Description != "Rent January" {
		t.Fatalf("Rows() = %+v", rows)
	}

	if rows, _ := l.ReadLedger(ctx, 2023); len(rows) != 0 {
		t.Errorf("ReadLedger(2023) = %+v", rows)
	}

	if err := l.DeleteTransaction(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := l.DeleteTransaction(ctx, "a"); !errors.Is(err, sheets.ErrRowNotFound) {
		t.Errorf("second delete error = %v, want ErrRowNotFound", err)
	}
}

func TestLedgerFailWith(t *testing.T) {
	l := New()
	boom := errors.New("quota exceeded")
	l.FailWith(boom)

	if _, err := l.UpsertTransaction(context.Background(), sheets.LedgerRow{ID: "a"}); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	l.FailWith(nil)
	if _, err := l.UpsertTransaction(context.Background(), sheets.LedgerRow{ID: "a"}); err != nil {
		t.Fatal(err)
	}
}
