package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"casa/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// ledgerHeader is written to row 1 of every new year sheet.
var ledgerHeader = []any{"ID", "Date", "Description", "Category", "Responsible", "Amount", "Type"}

// Client writes one row per transaction into year sheets named
// "<year> <base>" (for example "2024 Ledger").
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	baseName      string

	mu       sync.Mutex
	sheetIDs map[string]int64 // title -> sheetId, nil until loaded
}

// Ensure interface conformance
var (
	_ sheets.LedgerWriter = (*Client)(nil)
	_ sheets.LedgerReader = (*Client)(nil)
)

// New creates a client over an existing spreadsheet. opts configure the
// underlying Sheets service (credentials, endpoint, HTTP client).
func New(ctx context.Context, spreadsheetID, baseName string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	baseName = strings.TrimSpace(baseName)
	if baseName == "" {
		baseName = "Ledger"
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, baseName: baseName}, nil
}

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID and one of GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "Ledger").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := serviceAccountCredentials(ctx)
	if err != nil {
		return nil, err
	}
	return New(ctx, spreadsheetID, os.Getenv("GOOGLE_SHEET_NAME"),
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// serviceAccountCredentials reads Service Account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func serviceAccountCredentials(ctx context.Context) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// UpsertTransaction implements sheets.LedgerWriter. A row that moved to a
// different year is removed from its old sheet.
func (c *Client) UpsertTransaction(ctx context.Context, row sheets.LedgerRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if row.ID == "" {
		return "", errors.New("ledger row without id")
	}
	target := yearPrefixedName(c.baseName, row.Date.Year())
	if err := c.ensureSheet(ctx, target); err != nil {
		return "", err
	}

	titles, err := c.ledgerTitles(ctx)
	if err != nil {
		return "", err
	}
	values := &gsheet.ValueRange{Values: [][]any{ledgerValues(row)}}

	for _, title := range titles {
		n, err := c.findRow(ctx, title, row.ID)
		if err != nil {
			return "", err
		}
		if n == 0 {
			continue
		}
		if title != target {
			if err := c.deleteRow(ctx, title, n); err != nil {
				return "", err
			}
			continue
		}
		rng := fmt.Sprintf("%s!A%d:G%d", quoteSheet(title), n, n)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, values).
			ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("update %s: %w", rng, err)
		}
		return rng, nil
	}

	rng := fmt.Sprintf("%s!A:G", quoteSheet(target))
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, values).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", target, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// DeleteTransaction implements sheets.LedgerWriter
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	titles, err := c.ledgerTitles(ctx)
	if err != nil {
		return err
	}
	for _, title := range titles {
		n, err := c.findRow(ctx, title, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return c.deleteRow(ctx, title, n)
		}
	}
	return sheets.ErrRowNotFound
}

// ReadLedger implements sheets.LedgerReader
func (c *Client) ReadLedger(ctx context.Context, year int) ([]sheets.LedgerRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	title := yearPrefixedName(c.baseName, year)
	known, err := c.sheetID(ctx, title)
	if err != nil {
		return nil, err
	}
	if known < 0 {
		return nil, nil
	}
	rng := fmt.Sprintf("%s!A:G", quoteSheet(title))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseLedger(resp.Values), nil
}

// findRow returns the 1-based row holding id in column A, or 0.
func (c *Client) findRow(ctx context.Context, title, id string) (int, error) {
	rng := fmt.Sprintf("%s!A:A", quoteSheet(title))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	for i, row := range resp.Values {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (c *Client) deleteRow(ctx context.Context, title string, row int) error {
	id, err := c.sheetID(ctx, title)
	if err != nil {
		return err
	}
	if id < 0 {
		return fmt.Errorf("sheet %q not found", title)
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    id,
			Dimension:  "ROWS",
			StartIndex: int64(row - 1),
			EndIndex:   int64(row),
			// sheetId 0 is the first sheet and must not be omitted
			ForceSendFields: []string{"SheetId", "StartIndex"},
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d of %s: %w", row, title, err)
	}
	slog.DebugContext(ctx, "Deleted ledger row", "sheet", title, "row", row)
	return nil
}

// ensureSheet creates the year sheet with its header when it is missing.
func (c *Client) ensureSheet(ctx context.Context, title string) error {
	id, err := c.sheetID(ctx, title)
	if err != nil {
		return err
	}
	if id >= 0 {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add sheet %q: %w", title, err)
	}
	var newID int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		newID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	c.mu.Lock()
	if c.sheetIDs == nil {
		c.sheetIDs = make(map[string]int64)
	}
	c.sheetIDs[title] = newID
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!A1:G1", quoteSheet(title))
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{ledgerHeader}}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header to %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Created ledger sheet", "sheet", title)
	return nil
}

// sheetID returns the numeric id of a sheet, or -1 when it does not exist.
func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	if err := c.loadSheets(ctx); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.sheetIDs[title]; ok {
		return id, nil
	}
	return -1, nil
}

// ledgerTitles lists the year sheets that belong to this ledger.
func (c *Client) ledgerTitles(ctx context.Context) ([]string, error) {
	if err := c.loadSheets(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for title := range c.sheetIDs {
		if isLedgerSheet(title, c.baseName) {
			out = append(out, title)
		}
	}
	sortDesc(out)
	return out, nil
}

func (c *Client) loadSheets(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.sheetIDs != nil
	c.mu.Unlock()
	if loaded {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	ids := make(map[string]int64, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			ids[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	c.mu.Lock()
	c.sheetIDs = ids
	c.mu.Unlock()
	return nil
}

// InvalidateSheetCache forgets the known sheets so they are listed again.
func (c *Client) InvalidateSheetCache() {
	c.mu.Lock()
	c.sheetIDs = nil
	c.mu.Unlock()
}

func ledgerValues(r sheets.LedgerRow) []any {
	return []any{r.ID, r.Date.String(), r.Description, r.Category, r.Responsible, r.Amount.Float(), r.Kind()}
}

// quoteSheet wraps a sheet title for A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if _, ok := leadingYear(base); ok {
		return base
	}
	return fmt.Sprintf("%d %s", year, base)
}

func leadingYear(title string) (int, bool) {
	if len(title) < 5 || title[4] != ' ' {
		return 0, false
	}
	y, err := strconv.Atoi(title[0:4])
	if err != nil || y <= 1900 || y >= 3000 {
		return 0, false
	}
	return y, true
}

func isLedgerSheet(title, base string) bool {
	if _, ok := leadingYear(title); !ok {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(title[5:]), strings.TrimSpace(base))
}

func sortDesc(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] > s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
