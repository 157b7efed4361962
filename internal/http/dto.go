package http

import (
	"encoding/json"
	"time"

	"casa/internal/core"
)

// Wire representations. Domain types stay free of JSON tags; money is sent
// as cents plus a decimal string and accepted as a decimal string.

type moneyJSON struct {
	Cents int64  `json:"cents"`
	Value string `json:"value"`
}

func money(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Value: m.Decimal()}
}

func moneyPtr(m *core.Money) *moneyJSON {
	if m == nil {
		return nil
	}
	v := money(*m)
	return &v
}

// optionalDate tells an explicit null apart from an absent field.
type optionalDate struct {
	Set   bool
	Value *core.Date
}

func (o *optionalDate) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var d core.Date
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	o.Value = &d
	return nil
}

type taskJSON struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Date        core.Date       `json:"date"`
	AllDay      bool            `json:"all_day"`
	StartTime   *core.ClockTime `json:"start_time,omitempty"`
	EndTime     *core.ClockTime `json:"end_time,omitempty"`
	Repeat      core.RepeatType `json:"repeat"`
	RepeatUntil *core.Date      `json:"repeat_until,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toTaskJSON(t core.Task) taskJSON {
	out := taskJSON{
		ID:          t.ID,
		Title:       t.Title,
		Date:        t.Anchor,
		AllDay:      t.IsAllDay(),
		Repeat:      t.Repeat,
		RepeatUntil: t.EffectiveUntil(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if w, ok := t.Window.(core.TimedWindow); ok {
		start, end := w.Start, w.End
		out.StartTime, out.EndTime = &start, &end
	}
	return out
}

func toTasksJSON(ts []core.Task) []taskJSON {
	out := make([]taskJSON, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTaskJSON(t))
	}
	return out
}

// taskRequest is used for both create and patch; nil fields are absent.
type taskRequest struct {
	Title       *string          `json:"title"`
	Date        *core.Date       `json:"date"`
	AllDay      *bool            `json:"all_day"`
	StartTime   *core.ClockTime  `json:"start_time"`
	EndTime     *core.ClockTime  `json:"end_time"`
	Repeat      *core.RepeatType `json:"repeat"`
	RepeatUntil optionalDate     `json:"repeat_until"`
}

// window resolves the requested window. It returns nil when the request
// does not touch it.
func (req taskRequest) window() (core.Window, error) {
	switch {
	case req.StartTime != nil && req.EndTime != nil:
		w := core.TimedWindow{Start: *req.StartTime, End: *req.EndTime}
		if err := w.Validate(); err != nil {
			return nil, err
		}
		return w, nil
	case req.StartTime != nil || req.EndTime != nil:
		return nil, core.ErrInvalidWindow
	case req.AllDay != nil && *req.AllDay:
		return core.AllDay{}, nil
	default:
		return nil, nil
	}
}

type occurrencesJSON struct {
	Date  core.Date  `json:"date"`
	Tasks []taskJSON `json:"tasks"`
}

type monthJSON struct {
	Year  int                 `json:"year"`
	Month int                 `json:"month"`
	Days  map[string][]string `json:"days"`
}

type transactionJSON struct {
	ID          string    `json:"id"`
	Amount      moneyJSON `json:"amount"`
	Income      bool      `json:"income"`
	CategoryID  string    `json:"category_id"`
	Description string    `json:"description"`
	Date        core.Date `json:"date"`
	Responsible string    `json:"responsible,omitempty"`
}

func toTransactionJSON(tx core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          tx.ID,
		Amount:      money(tx.Amount),
		Income:      tx.IsIncome(),
		CategoryID:  tx.CategoryID,
		Description: tx.Description,
		Date:        tx.Date,
		Responsible: tx.Responsible,
	}
}

func toTransactionsJSON(txs []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionJSON(tx))
	}
	return out
}

type transactionRequest struct {
	Amount      string    `json:"amount"`
	CategoryID  string    `json:"category_id"`
	Description string    `json:"description"`
	Date        core.Date `json:"date"`
	Responsible string    `json:"responsible"`
}

func (req transactionRequest) transaction() (core.Transaction, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Amount:      amount,
		CategoryID:  sanitizeInput(req.CategoryID),
		Description: sanitizeInput(req.Description),
		Date:        req.Date,
		Responsible: sanitizeInput(req.Responsible),
	}, nil
}

type categoryAmountJSON struct {
	CategoryID string    `json:"category_id"`
	Amount     moneyJSON `json:"amount"`
}

type dashboardJSON struct {
	Balance    moneyJSON            `json:"balance"`
	Income     moneyJSON            `json:"income"`
	Expenses   moneyJSON            `json:"expenses"`
	ByCategory []categoryAmountJSON `json:"by_category"`
	Recent     []transactionJSON    `json:"recent"`
}

func toDashboardJSON(s core.DashboardSummary) dashboardJSON {
	out := dashboardJSON{
		Balance:    money(s.Balance),
		Income:     money(s.Income),
		Expenses:   money(s.Expenses),
		ByCategory: make([]categoryAmountJSON, 0, len(s.ByCategory)),
		Recent:     toTransactionsJSON(s.Recent),
	}
	for _, c := range s.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryAmountJSON{CategoryID: c.CategoryID, Amount: money(c.Amount)})
	}
	return out
}

type categoryJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

type categoryRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

func toCategoriesJSON(cs []core.Category) []categoryJSON {
	out := make([]categoryJSON, 0, len(cs))
	for _, c := range cs {
		out = append(out, categoryJSON{ID: c.ID, Name: c.Name, Icon: c.Icon})
	}
	return out
}

type shoppingItemJSON struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	CurrentPrice     moneyJSON  `json:"current_price"`
	Quantity         int        `json:"quantity"`
	Total            moneyJSON  `json:"total"`
	Checked          bool       `json:"checked"`
	LastPrice        *moneyJSON `json:"last_price,omitempty"`
	LastPurchaseDate *core.Date `json:"last_purchase_date,omitempty"`
}

func toShoppingItemJSON(it core.ShoppingItem) shoppingItemJSON {
	return shoppingItemJSON{
		ID:               it.ID,
		Name:             it.Name,
		CurrentPrice:     money(it.CurrentPrice),
		Quantity:         it.Quantity,
		Total:            money(it.Total()),
		Checked:          it.Checked,
		LastPrice:        moneyPtr(it.LastPrice),
		LastPurchaseDate: it.LastPurchaseDate,
	}
}

type shoppingRequest struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

func (req shoppingRequest) item() (core.ShoppingItem, error) {
	price, err := parsePrice(req.Price)
	if err != nil {
		return core.ShoppingItem{}, err
	}
	if req.Quantity < 0 {
		return core.ShoppingItem{}, core.ErrInvalidQuantity
	}
	return core.ShoppingItem{
		Name:         sanitizeInput(req.Name),
		CurrentPrice: price,
		Quantity:     req.Quantity,
	}, nil
}

type countdownJSON struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	TargetDate         core.Date `json:"target_date"`
	BackgroundImageURL string    `json:"background_image_url,omitempty"`
	DaysLeft           int       `json:"days_left"`
}

func toCountdownJSON(c core.Countdown, now time.Time) countdownJSON {
	return countdownJSON{
		ID:                 c.ID,
		Title:              c.Title,
		TargetDate:         c.TargetDate,
		BackgroundImageURL: c.BackgroundImageURL,
		DaysLeft:           c.DaysLeft(now),
	}
}

type countdownRequest struct {
	Title              string    `json:"title"`
	TargetDate         core.Date `json:"target_date"`
	BackgroundImageURL string    `json:"background_image_url"`
}

func (req countdownRequest) countdown() core.Countdown {
	return core.Countdown{
		Title:              sanitizeInput(req.Title),
		TargetDate:         req.TargetDate,
		BackgroundImageURL: sanitizeInput(req.BackgroundImageURL),
	}
}
