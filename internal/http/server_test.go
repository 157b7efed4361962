package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"casa/internal/agenda"
	"casa/internal/auth"
	"casa/internal/core"
	applog "casa/internal/log"
	"casa/internal/services"
	"casa/internal/store/memory"
)

var testNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	srv   *Server
	store *memory.Store
	token string
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	clock := func() time.Time { return testNow }
	st := memory.New([]string{"Mercado", "Salário"}, memory.WithClock(clock))
	dash := services.NewDashboardService(st, 16, time.Minute)
	tokens := auth.NewTokens([]byte("test-secret-that-is-long-enough"), time.Hour)

	srv := NewServer(":0", Deps{
		Backend:      st,
		Agenda:       agenda.NewRegistry(st, 8, time.Minute),
		Transactions: services.NewTransactionService(st, nil, dash),
		Dashboard:    dash,
		Shopping:     services.NewShoppingService(st, clock),
		Tokens:       tokens,
		Logger:       applog.New(applog.Config{Output: io.Discard}),
		Now:          clock,
	}, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	token, err := tokens.GenerateToken("ana")
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{srv: srv, store: st, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e *testEnv) categoryID(t *testing.T, name string) string {
	t.Helper()
	cats, _ := e.store.ListCategories(context.Background())
	for _, c := range cats {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("no category %q", name)
	return ""
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		env.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing middleware headers: %v", path, rec.Header())
		}
	}

	env.srv.deps.Ready = func(context.Context) error { return errors.New("db down") }
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with failing backend = %d", rec.Code)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t, Options{})
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		env.srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d", tt.name, rec.Code)
		}
	}
}

func TestTaskLifecycleAndAgenda(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"title": "Lixo", "date": "2024-03-01", "repeat": "weekly",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	weekly := decode[taskJSON](t, rec)
	if !weekly.AllDay || weekly.Repeat != core.RepeatWeekly {
		t.Errorf("created = %+v", weekly)
	}

	rec = env.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"title": "Dentista", "date": "2024-03-15", "start_time": "14:00", "end_time": "15:00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create timed: %d %s", rec.Code, rec.Body.String())
	}
	timed := decode[taskJSON](t, rec)
	if timed.AllDay || timed.StartTime == nil || timed.StartTime.String() != "14:00" {
		t.Errorf("timed = %+v", timed)
	}

	// 2024-03-15 is two weeks after the anchor and the dentist day.
	rec = env.do(t, http.MethodGet, "/api/agenda?date=2024-03-15", nil)
	day := decode[occurrencesJSON](t, rec)
	if len(day.Tasks) != 2 || day.Tasks[0].ID != weekly.ID || day.Tasks[1].ID != timed.ID {
		t.Fatalf("agenda = %+v", day)
	}

	// No date means today.
	rec = env.do(t, http.MethodGet, "/api/agenda", nil)
	if got := decode[occurrencesJSON](t, rec); got.Date.String() != "2024-03-15" || len(got.Tasks) != 2 {
		t.Errorf("agenda today = %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/agenda/month?year=2024&month=3", nil)
	month := decode[monthJSON](t, rec)
	for _, d := range []string{"2024-03-01", "2024-03-08", "2024-03-22", "2024-03-29"} {
		if ids := month.Days[d]; len(ids) != 1 || ids[0] != weekly.ID {
			t.Errorf("month[%s] = %v", d, ids)
		}
	}
	if len(month.Days["2024-03-15"]) != 2 || len(month.Days) != 5 {
		t.Errorf("month days = %v", month.Days)
	}

	// Bounding the repeat removes later occurrences; null clears it again.
	rec = env.do(t, http.MethodPatch, "/api/tasks/"+weekly.ID, map[string]any{"repeat_until": "2024-03-10"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/api/agenda?date=2024-03-15", nil)
	if got := decode[occurrencesJSON](t, rec); len(got.Tasks) != 1 {
		t.Errorf("after bound: %+v", got)
	}
	rec = env.do(t, http.MethodPatch, "/api/tasks/"+weekly.ID, map[string]any{"repeat_until": nil})
	if got := decode[taskJSON](t, rec); got.RepeatUntil != nil {
		t.Errorf("repeat_until not cleared: %+v", got)
	}

	if rec := env.do(t, http.MethodDelete, "/api/tasks/"+timed.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/tasks/"+timed.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
}

func TestTaskValidation(t *testing.T) {
	env := newTestEnv(t, Options{})
	tests := []struct {
		name string
		body any
		want int
	}{
		{"empty title", map[string]any{"title": " ", "date": "2024-03-01"}, http.StatusUnprocessableEntity},
		{"missing date", map[string]any{"title": "x"}, http.StatusUnprocessableEntity},
		{"bad repeat", map[string]any{"title": "x", "date": "2024-03-01", "repeat": "hourly"}, http.StatusUnprocessableEntity},
		{"until before anchor", map[string]any{"title": "x", "date": "2024-03-01", "repeat": "daily", "repeat_until": "2024-02-01"}, http.StatusUnprocessableEntity},
		{"end before start", map[string]any{"title": "x", "date": "2024-03-01", "start_time": "10:00", "end_time": "09:00"}, http.StatusUnprocessableEntity},
		{"only start", map[string]any{"title": "x", "date": "2024-03-01", "start_time": "10:00"}, http.StatusUnprocessableEntity},
		{"malformed date", map[string]any{"title": "x", "date": "1/3/2024"}, http.StatusBadRequest},
		{"unknown field", map[string]any{"title": "x", "date": "2024-03-01", "colour": "red"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, http.MethodPost, "/api/tasks", tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
	if rec := env.do(t, http.MethodPatch, "/api/tasks/nope", map[string]any{"title": "y"}); rec.Code != http.StatusNotFound {
		t.Errorf("patch unknown = %d", rec.Code)
	}
}

func TestTransactionsAndDashboard(t *testing.T) {
	env := newTestEnv(t, Options{})
	mercado := env.categoryID(t, "Mercado")
	salario := env.categoryID(t, "Salário")

	create := func(amount, cat, desc, date, who string) transactionJSON {
		t.Helper()
		rec := env.do(t, http.MethodPost, "/api/transactions", map[string]any{
			"amount": amount, "category_id": cat, "description": desc, "date": date, "responsible": who,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %s: %d %s", desc, rec.Code, rec.Body.String())
		}
		return decode[transactionJSON](t, rec)
	}
	pay := create("3000,00", salario, "Salário", "2024-03-05", "Ana")
	feira := create("-45,90", mercado, "Feira", "2024-03-02", "Bia")
	create("-10.10", mercado, "Pão", "2024-02-20", "Ana")

	if !pay.Income || feira.Income || feira.Amount.Cents != -4590 || feira.Amount.Value != "-45.90" {
		t.Errorf("created = %+v / %+v", pay, feira)
	}

	rec := env.do(t, http.MethodGet, "/api/dashboard?from=2024-03-01&to=2024-03-31", nil)
	dash := decode[dashboardJSON](t, rec)
	if dash.Balance.Cents != 295410 || dash.Income.Cents != 300000 || dash.Expenses.Cents != -4590 {
		t.Errorf("dashboard = %+v", dash)
	}
	if len(dash.Recent) != 2 || dash.Recent[0].ID != pay.ID {
		t.Errorf("recent = %+v", dash.Recent)
	}

	// Writes invalidate the cached summary.
	env.do(t, http.MethodDelete, "/api/transactions/"+pay.ID, nil)
	rec = env.do(t, http.MethodGet, "/api/dashboard?from=2024-03-01&to=2024-03-31", nil)
	if got := decode[dashboardJSON](t, rec); got.Balance.Cents != -4590 {
		t.Errorf("balance after delete = %d", got.Balance.Cents)
	}

	rec = env.do(t, http.MethodGet, "/api/transactions?responsible=Ana", nil)
	if got := decode[[]transactionJSON](t, rec); len(got) != 1 || got[0].Description != "Pão" {
		t.Errorf("filtered list = %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/responsibles", nil)
	if got := decode[[]string](t, rec); len(got) != 2 {
		t.Errorf("responsibles = %v", got)
	}

	rec = env.do(t, http.MethodPut, "/api/transactions/"+feira.ID, map[string]any{
		"amount": "-50", "category_id": mercado, "description": "Feira grande", "date": "2024-03-02",
	})
	if got := decode[transactionJSON](t, rec); rec.Code != http.StatusOK || got.Amount.Cents != -5000 {
		t.Errorf("update: %d %+v", rec.Code, got)
	}

	if rec := env.do(t, http.MethodGet, "/api/transactions/"+pay.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d", rec.Code)
	}
	for name, body := range map[string]map[string]any{
		"zero amount":      {"amount": "0", "category_id": mercado, "description": "x", "date": "2024-03-02"},
		"unknown category": {"amount": "1", "category_id": "nope", "description": "x", "date": "2024-03-02"},
		"no description":   {"amount": "1", "category_id": mercado, "description": "", "date": "2024-03-02"},
	} {
		if rec := env.do(t, http.MethodPost, "/api/transactions", body); rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: status = %d", name, rec.Code)
		}
	}
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Casa", "icon": "home"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	casa := decode[categoryJSON](t, rec)

	if rec := env.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Casa"}); rec.Code != http.StatusConflict {
		t.Errorf("duplicate = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/categories", nil)
	cats := decode[[]categoryJSON](t, rec)
	if len(cats) != 3 || cats[0].Name != "Casa" {
		t.Errorf("categories = %+v", cats)
	}

	env.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"amount": "-1", "category_id": casa.ID, "description": "Lâmpada", "date": "2024-03-02",
	})
	if rec := env.do(t, http.MethodDelete, "/api/categories/"+casa.ID, nil); rec.Code != http.StatusConflict {
		t.Errorf("delete in use = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPut, "/api/categories/nope", map[string]any{"name": "X"}); rec.Code != http.StatusNotFound {
		t.Errorf("update unknown = %d", rec.Code)
	}
}

func TestShoppingFlow(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/shopping", map[string]any{"name": "Leite", "price": "4,99", "quantity": 2})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rec.Code, rec.Body.String())
	}
	leite := decode[shoppingItemJSON](t, rec)
	if leite.Total.Cents != 998 || leite.Checked {
		t.Errorf("added = %+v", leite)
	}
	env.do(t, http.MethodPost, "/api/shopping", map[string]any{"name": "Café"})

	rec = env.do(t, http.MethodPost, "/api/shopping/"+leite.ID+"/toggle", nil)
	if got := decode[shoppingItemJSON](t, rec); !got.Checked {
		t.Errorf("toggle = %+v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/shopping/finish", nil)
	if got := decode[map[string]int](t, rec); got["finished"] != 1 {
		t.Errorf("finish = %v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/shopping", nil)
	items := decode[[]shoppingItemJSON](t, rec)
	if len(items) != 1 || items[0].Name != "Café" {
		t.Fatalf("list after finish = %+v", items)
	}

	rec = env.do(t, http.MethodGet, "/api/shopping/suggestions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("suggestions: %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[[]string](t, rec); len(got) != 2 || got[0] != "Leite" || got[1] != "Café" {
		t.Errorf("suggestions = %v", got)
	}

	// Adding the item again shows what it cost last time.
	rec = env.do(t, http.MethodPost, "/api/shopping", map[string]any{"name": "leite", "price": "5,20"})
	again := decode[shoppingItemJSON](t, rec)
	if again.LastPrice == nil || again.LastPrice.Cents != 499 || again.LastPurchaseDate.String() != "2024-03-15" {
		t.Errorf("enriched = %+v", again)
	}

	if rec := env.do(t, http.MethodPut, "/api/shopping/"+again.ID, map[string]any{"name": "Leite", "quantity": -1}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative quantity = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/shopping/"+again.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("remove = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/shopping/"+again.ID+"/toggle", nil); rec.Code != http.StatusNotFound {
		t.Errorf("toggle removed = %d", rec.Code)
	}
}

func TestCountdowns(t *testing.T) {
	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodPost, "/api/countdowns", map[string]any{"title": "Férias", "target_date": "2024-04-01"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	cd := decode[countdownJSON](t, rec)
	if cd.DaysLeft != 17 {
		t.Errorf("days_left = %d, want 17", cd.DaysLeft)
	}

	rec = env.do(t, http.MethodPut, "/api/countdowns/"+cd.ID, map[string]any{"title": "Férias", "target_date": "2024-03-10"})
	if got := decode[countdownJSON](t, rec); got.DaysLeft != -5 {
		t.Errorf("past target days_left = %d", got.DaysLeft)
	}

	rec = env.do(t, http.MethodGet, "/api/countdowns", nil)
	if got := decode[[]countdownJSON](t, rec); len(got) != 1 {
		t.Errorf("list = %+v", got)
	}
	if rec := env.do(t, http.MethodPost, "/api/countdowns", map[string]any{"title": ""}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/countdowns/"+cd.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 2})
	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodPost, "/api/categories", map[string]any{"name": string(rune('A' + i))}); rec.Code != http.StatusCreated {
			t.Fatalf("write %d = %d", i, rec.Code)
		}
	}
	rec := env.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "C"})
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Errorf("third write = %d, Retry-After %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if rec := env.do(t, http.MethodGet, "/api/categories", nil); rec.Code != http.StatusOK {
		t.Errorf("read after limit = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, Options{AllowedOrigins: []string{"https://casa.example"}})
	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "https://casa.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://casa.example" {
		t.Errorf("Allow-Origin = %q (status %d)", got, rec.Code)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}
