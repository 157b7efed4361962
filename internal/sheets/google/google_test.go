package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"casa/internal/core"
	"casa/internal/sheets"

	"google.golang.org/api/option"
)

// fakeSpreadsheet serves the subset of the Sheets v4 REST API the client uses.
type fakeSpreadsheet struct {
	mu     sync.Mutex
	nextID int64
	titles []string
	ids    map[string]int64
	rows   map[string][][]any
	calls  map[string]int
}

func newFakeSpreadsheet() *fakeSpreadsheet {
	return &fakeSpreadsheet{nextID: 0, ids: map[string]int64{}, rows: map[string][][]any{}, calls: map[string]int{}}
}

func (f *fakeSpreadsheet) addSheet(title string) int64 {
	id := f.nextID
	f.nextID++
	f.titles = append(f.titles, title)
	f.ids[title] = id
	return id
}

func (f *fakeSpreadsheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rest := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/")
	switch {
	case r.Method == http.MethodGet && !strings.Contains(rest, "/"):
		f.calls["get"]++
		var list []map[string]any
		for _, t := range f.titles {
			list = append(list, map[string]any{"properties": map[string]any{"title": t, "sheetId": f.ids[t]}})
		}
		writeJSON(w, map[string]any{"sheets": list})
	case strings.HasSuffix(rest, ":batchUpdate"):
		f.calls["batchUpdate"]++
		f.batchUpdate(w, r)
	case strings.HasSuffix(rest, ":append"):
		f.calls["append"]++
		title, _ := splitRange(strings.TrimSuffix(rest[strings.Index(rest, "/values/")+8:], ":append"))
		var body struct{ Values [][]any }
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.rows[title] = append(f.rows[title], body.Values...)
		n := len(f.rows[title])
		writeJSON(w, map[string]any{"updates": map[string]any{"updatedRange": fmt.Sprintf("'%s'!A%d:G%d", title, n, n)}})
	case r.Method == http.MethodPut:
		f.calls["update"]++
		title, cell := splitRange(rest[strings.Index(rest, "/values/")+8:])
		n := rowNumber(cell)
		var body struct{ Values [][]any }
		_ = json.NewDecoder(r.Body).Decode(&body)
		for len(f.rows[title]) < n {
			f.rows[title] = append(f.rows[title], nil)
		}
		f.rows[title][n-1] = body.Values[0]
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodGet:
		f.calls["values"]++
		title, cell := splitRange(rest[strings.Index(rest, "/values/")+8:])
		var out [][]any
		for _, row := range f.rows[title] {
			if cell == "A:A" && len(row) > 0 {
				row = row[:1]
			}
			out = append(out, row)
		}
		writeJSON(w, map[string]any{"values": out})
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
	}
}

func (f *fakeSpreadsheet) batchUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests []struct {
			AddSheet *struct {
				Properties struct{ Title string }
			}
			DeleteDimension *struct {
				Range struct {
					SheetId    int64
					StartIndex int
					EndIndex   int
				}
			}
		}
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var replies []map[string]any
	for _, req := range body.Requests {
		switch {
		case req.AddSheet != nil:
			title := req.AddSheet.Properties.Title
			id := f.addSheet(title)
			replies = append(replies, map[string]any{"addSheet": map[string]any{"properties": map[string]any{"title": title, "sheetId": id}}})
		case req.DeleteDimension != nil:
			rg := req.DeleteDimension.Range
			for title, id := range f.ids {
				if id != rg.SheetId {
					continue
				}
				rows := f.rows[title]
				f.rows[title] = append(rows[:rg.StartIndex:rg.StartIndex], rows[rg.EndIndex:]...)
			}
			replies = append(replies, map[string]any{})
		}
	}
	writeJSON(w, map[string]any{"replies": replies})
}

// splitRange splits "'2024 Ledger'!A:G" into title and cell reference.
func splitRange(rng string) (string, string) {
	i := strings.LastIndex(rng, "!")
	title := strings.ReplaceAll(strings.Trim(rng[:i], "'"), "''", "'")
	return title, rng[i+1:]
}

// rowNumber reads the row of "A5:G5".
func rowNumber(cell string) int {
	first := strings.SplitN(cell, ":", 2)[0]
	n, _ := strconv.Atoi(strings.TrimLeft(first, "ABCDEFG"))
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, fake *fakeSpreadsheet) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), "sheet-id", "Ledger",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestUpsertCreatesSheetAndUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSpreadsheet()
	fake.addSheet("Resumo")
	c := newTestClient(t, fake)

	row := sheets.LedgerRow{
		ID: "tx-1", Date: core.NewDate(2024, 3, 1), Description: "Feira",
		Category: "Mercado", Responsible: "Ana", Amount: core.Money{Cents: -4590},
	}
	ref, err := c.UpsertTransaction(ctx, row)
	if err != nil {
		t.Fatalf("UpsertTransaction: %v", err)
	}
	if ref != "'2024 Ledger'!A2:G2" {
		t.Errorf("ref = %q", ref)
	}
	if got := fake.rows["2024 Ledger"]; len(got) != 2 || fmt.Sprint(got[0][0]) != "ID" {
		t.Fatalf("sheet rows after first upsert = %v", got)
	}

	row.Description = "Feira livre"
	ref, err = c.UpsertTransaction(ctx, row)
	if err != nil {
		t.Fatalf("second UpsertTransaction: %v", err)
	}
	if ref != "'2024 Ledger'!A2:G2" {
		t.Errorf("in-place ref = %q", ref)
	}
	if fake.calls["append"] != 1 {
		t.Errorf("append calls = %d, want 1", fake.calls["append"])
	}

	rows, err := c.ReadLedger(ctx, 2024)
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if len(rows) != 1 || rows[0].Description != "Feira livre" || rows[0].Amount.Cents != -4590 {
		t.Fatalf("ReadLedger = %+v", rows)
	}
	if fake.calls["get"] != 1 {
		t.Errorf("spreadsheet metadata fetched %d times, want 1", fake.calls["get"])
	}
}

func TestUpsertMovesRowBetweenYears(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSpreadsheet()
	c := newTestClient(t, fake)

	row := sheets.LedgerRow{ID: "tx-1", Date: core.NewDate(2024, 12, 31), Description: "Ceia", Amount: core.Money{Cents: -10000}}
	if _, err := c.UpsertTransaction(ctx, row); err != nil {
		t.Fatal(err)
	}
	row.Date = core.NewDate(2025, 1, 1)
	if _, err := c.UpsertTransaction(ctx, row); err != nil {
		t.Fatal(err)
	}

	old, _ := c.ReadLedger(ctx, 2024)
	moved, _ := c.ReadLedger(ctx, 2025)
	if len(old) != 0 || len(moved) != 1 || moved[0].ID != "tx-1" {
		t.Fatalf("2024 = %+v, 2025 = %+v", old, moved)
	}
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSpreadsheet()
	c := newTestClient(t, fake)

	for i, id := range []string{"a", "b"} {
		row := sheets.LedgerRow{ID: id, Date: core.NewDate(2024, 1, i+1), Amount: core.Money{Cents: 100}}
		if _, err := c.UpsertTransaction(ctx, row); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.DeleteTransaction(ctx, "a"); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	rows, _ := c.ReadLedger(ctx, 2024)
	if len(rows) != 1 || rows[0].ID != "b" {
		t.Fatalf("rows after delete = %+v", rows)
	}
	if err := c.DeleteTransaction(ctx, "a"); !errors.Is(err, sheets.ErrRowNotFound) {
		t.Errorf("second delete error = %v, want ErrRowNotFound", err)
	}
}

func TestReadLedgerMissingYear(t *testing.T) {
	c := newTestClient(t, newFakeSpreadsheet())
	rows, err := c.ReadLedger(context.Background(), 1999)
	if err != nil || rows != nil {
		t.Fatalf("ReadLedger(1999) = %v, %v", rows, err)
	}
}

func TestUninitializedClient(t *testing.T) {
	c := &Client{spreadsheetID: "test", baseName: "Ledger"}
	if _, err := c.UpsertTransaction(context.Background(), sheets.LedgerRow{ID: "x"}); err == nil {
		t.Error("expected error without service")
	}
	if err := c.DeleteTransaction(context.Background(), "x"); err == nil {
		t.Error("expected error without service")
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	_, err := NewFromEnv(context.Background())
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}
