package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	RepeatNone    RepeatType = "none"
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
	RepeatYearly  RepeatType = "yearly"
)

const maxTextLength = 200

type (
	RepeatType string

	// Window says when during the day a task happens. It is either AllDay or
	// a TimedWindow and never affects recurrence.
	Window interface {
		isWindow()
	}

	AllDay struct{}

	TimedWindow struct {
		Start ClockTime
		End   ClockTime
	}

	Task struct {
		ID          string
		OwnerID     string
		Title       string
		Anchor      Date // first occurrence
		Window      Window
		Repeat      RepeatType
		RepeatUntil *Date // inclusive; ignored when Repeat is none
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Category struct {
		ID        string
		Name      string
		Icon      string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Transaction amounts are signed: income is positive, expenses negative.
	Transaction struct {
		ID          string
		Amount      Money
		CategoryID  string
		Description string
		Date        Date
		Responsible string // household member who paid or received it
	}

	ShoppingItem struct {
		ID               string
		Name             string
		CurrentPrice     Money
		Quantity         int
		Checked          bool
		LastPrice        *Money
		LastPurchaseDate *Date
		CreatedAt        time.Time
	}

	PurchaseRecord struct {
		ItemName     string
		Price        Money
		Quantity     int
		PurchaseDate Date
	}

	Countdown struct {
		ID                 string
		Title              string
		TargetDate         Date
		BackgroundImageURL string
		CreatedAt          time.Time
		UpdatedAt          time.Time
	}
)

func (AllDay) isWindow()      {}
func (TimedWindow) isWindow() {}

var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrEmptyDescription        = errors.New("empty description")
	ErrDescriptionTooLong      = errors.New("description too long (max 200 characters)")
	ErrEmptyTitle              = errors.New("empty title")
	ErrTitleTooLong            = errors.New("title too long (max 200 characters)")
	ErrEmptyName               = errors.New("empty name")
	ErrEmptyCategory           = errors.New("empty category")
	ErrInvalidRepeat           = errors.New("invalid repeat type")
	ErrRepeatUntilBeforeAnchor = errors.New("repeat until must not be before the task date")
	ErrInvalidWindow           = errors.New("end time must be after start time")
	ErrInvalidQuantity         = errors.New("quantity must be at least 1")
	ErrNameTooLong             = errors.New("name too long (max 200 characters)")
)

var validationErrors = []error{
	ErrInvalidAmount, ErrEmptyDescription, ErrDescriptionTooLong, ErrEmptyTitle,
	ErrTitleTooLong, ErrEmptyName, ErrEmptyCategory, ErrInvalidRepeat,
	ErrRepeatUntilBeforeAnchor, ErrInvalidWindow, ErrInvalidQuantity, ErrNameTooLong,
	ErrInvalidDay, ErrInvalidMonth, ErrZeroDate,
}

// IsValidation reports whether err stems from rejected input rather than a
// failing dependency.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Valid reports whether r is one of the known repeat types.
func (r RepeatType) Valid() bool {
	switch r {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		return true
	default:
		return false
	}
}

// IsAllDay reports whether the task has no time window.
func (t Task) IsAllDay() bool {
	_, timed := t.Window.(TimedWindow)
	return !timed
}

// EffectiveUntil returns the repeat bound that applies to occurrence
// decisions, which is nil for one-off tasks.
func (t Task) EffectiveUntil() *Date {
	if t.Repeat == RepeatNone {
		return nil
	}
	return t.RepeatUntil
}

func (w TimedWindow) Validate() error {
	if w.Start < 0 || w.End >= 24*60 || w.End <= w.Start {
		return ErrInvalidWindow
	}
	return nil
}

func (t Task) Validate() error {
	if err := validateText(t.Title, ErrEmptyTitle, ErrTitleTooLong); err != nil {
		return err
	}
	if err := t.Anchor.Validate(); err != nil {
		return fmt.Errorf("invalid task date: %w", err)
	}
	if !t.Repeat.Valid() {
		return ErrInvalidRepeat
	}
	if tw, ok := t.Window.(TimedWindow); ok {
		if err := tw.Validate(); err != nil {
			return err
		}
	}
	if until := t.EffectiveUntil(); until != nil {
		if err := until.Validate(); err != nil {
			return fmt.Errorf("invalid repeat until: %w", err)
		}
		if until.Before(t.Anchor) {
			return ErrRepeatUntilBeforeAnchor
		}
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > maxTextLength {
		return ErrNameTooLong
	}
	return nil
}

func (tx Transaction) Validate() error {
	if err := tx.Date.Validate(); err != nil {
		return err
	}
	if err := validateText(tx.Description, ErrEmptyDescription, ErrDescriptionTooLong); err != nil {
		return err
	}
	if tx.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(tx.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// IsIncome reports whether the transaction adds money to the household.
func (tx Transaction) IsIncome() bool { return tx.Amount.Cents > 0 }

func (i ShoppingItem) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrEmptyName
	}
	if i.CurrentPrice.Cents < 0 {
		return ErrInvalidAmount
	}
	if i.Quantity < 1 {
		return ErrInvalidQuantity
	}
	return nil
}

// Total returns price times quantity.
func (i ShoppingItem) Total() Money {
	return Money{Cents: i.CurrentPrice.Cents * int64(i.Quantity)}
}

// ItemSuggestions merges name lists in order, keeping the first spelling of
// each name. Names compare trimmed and case-insensitively.
func ItemSuggestions(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, names := range lists {
		for _, name := range names {
			name = strings.TrimSpace(name)
			key := strings.ToLower(name)
			if name == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

func (c Countdown) Validate() error {
	if err := validateText(c.Title, ErrEmptyTitle, ErrTitleTooLong); err != nil {
		return err
	}
	return c.TargetDate.Validate()
}

// DaysLeft returns how many calendar days remain until the target date.
// Past targets yield negative values.
func (c Countdown) DaysLeft(now time.Time) int {
	return DaysBetween(DateOf(now), c.TargetDate)
}

func validateText(s string, empty, tooLong error) error {
	if len(strings.TrimSpace(s)) == 0 {
		return empty
	}
	if len(s) > maxTextLength {
		return tooLong
	}
	return nil
}
