package google

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"casa/internal/core"
	"casa/internal/sheets"
)

// sheetsEpoch is day zero of spreadsheet serial dates.
var sheetsEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// parseLedger converts a values matrix (as returned by Sheets API) into
// ledger rows. The header row and rows without an id or a readable date are skipped.
func parseLedger(values [][]any) []sheets.LedgerRow {
	if len(values) == 0 {
		return nil
	}
	start := 0
	cols := columnsFor(toStrings(values[0]))
	if cols.header {
		start = 1
	}

	out := make([]sheets.LedgerRow, 0, len(values)-start)
	for i := start; i < len(values); i++ {
		raw := values[i]
		row := toStrings(raw)
		id := safeGet(row, cols.id)
		if id == "" {
			continue
		}
		date, ok := parseSheetDate(safeGetAny(raw, cols.date))
		if !ok {
			continue
		}
		cents, _ := parseAmountToCents(safeGetAny(raw, cols.amount))
		out = append(out, sheets.LedgerRow{
			ID:          id,
			Date:        date,
			Description: safeGet(row, cols.description),
			Category:    safeGet(row, cols.category),
			Responsible: safeGet(row, cols.responsible),
			Amount:      core.Money{Cents: cents},
		})
	}
	return out
}

type ledgerColumns struct {
	header bool

	id, date, description, category, responsible, amount int
}

// columnsFor locates columns by header name, falling back to the fixed
// layout written by ensureSheet.
func columnsFor(first []string) ledgerColumns {
	cols := ledgerColumns{id: 0, date: 1, description: 2, category: 3, responsible: 4, amount: 5}
	if indexOf(first, "ID") == -1 || indexOf(first, "Date") == -1 {
		return cols
	}
	cols.header = true
	cols.id = indexOf(first, "ID")
	cols.date = indexOf(first, "Date")
	cols.description = indexOf(first, "Description")
	cols.category = indexOf(first, "Category")
	cols.responsible = indexOf(first, "Responsible")
	cols.amount = indexOf(first, "Amount")
	return cols
}

// parseSheetDate accepts ISO dates, day-first dates and serial day numbers.
func parseSheetDate(v any) (core.Date, bool) {
	switch x := v.(type) {
	case float64:
		return core.DateOf(sheetsEpoch.AddDate(0, 0, int(x))), true
	case nil:
		return core.Date{}, false
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if d, err := core.ParseDate(s); err == nil {
		return d, true
	}
	for _, layout := range []string{"02/01/2006", "2/1/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), true
		}
	}
	return core.Date{}, false
}

func parseAmountToCents(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(math.Round(x * 100)), true
	case nil:
		return 0, false
	}
	return parseEurosToCents(fmt.Sprint(v))
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func safeGetAny(arr []any, idx int) any {
	if idx < 0 || idx >= len(arr) {
		return nil
	}
	return arr[idx]
}

// parseEurosToCents reads a formatted amount such as "-45,90", "R$ 1.234,56"
// or "1234.5". A lone comma is the decimal separator; when both appear the
// last one is.
func parseEurosToCents(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimPrefix(s, "€")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return 0, false
	}
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot > comma && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(math.Round(f * 100)), true
}
