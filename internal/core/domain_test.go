package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTaskValidate(t *testing.T) {
	good := Task{
		Title:  "Pay rent",
		Anchor: NewDate(2025, 1, 5),
		Window: AllDay{},
		Repeat: RepeatMonthly,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	before := NewDate(2025, 1, 1)
	tests := []struct {
		name   string
		mutate func(*Task)
		want   error
	}{
		{"empty title", func(t *Task) { t.Title = "  " }, ErrEmptyTitle},
		{"long title", func(t *Task) { t.Title = strings.Repeat("x", 201) }, ErrTitleTooLong},
		{"unknown repeat", func(t *Task) { t.Repeat = "hourly" }, ErrInvalidRepeat},
		{"until before anchor", func(t *Task) { t.RepeatUntil = &before }, ErrRepeatUntilBeforeAnchor},
		{"inverted window", func(t *Task) { t.Window = TimedWindow{Start: 600, End: 540} }, ErrInvalidWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := good
			tt.mutate(&task)
			if err := task.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	// A stale bound on a one-off task is ignored.
	oneOff := good
	oneOff.Repeat = RepeatNone
	oneOff.RepeatUntil = &before
	if err := oneOff.Validate(); err != nil {
		t.Errorf("one-off task with stale repeat until: %v", err)
	}
}

func TestTaskIsAllDay(t *testing.T) {
	if !(Task{Window: AllDay{}}).IsAllDay() {
		t.Error("AllDay window should be all day")
	}
	if !(Task{}).IsAllDay() {
		t.Error("nil window should be all day")
	}
	if (Task{Window: TimedWindow{Start: 60, End: 120}}).IsAllDay() {
		t.Error("timed window should not be all day")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Amount:      Money{Cents: -1250},
		CategoryID:  "food",
		Description: "groceries",
		Date:        NewDate(2025, 1, 1),
		Responsible: "Ana",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if good.IsIncome() {
		t.Error("negative amount should not be income")
	}

	bads := []Transaction{
		{Amount: Money{Cents: 1}, CategoryID: "c", Description: "a"}, // zero date
		{Amount: Money{Cents: 1}, CategoryID: "c", Description: "", Date: NewDate(2025, 1, 1)},
		{Amount: Money{Cents: 0}, CategoryID: "c", Description: "a", Date: NewDate(2025, 1, 1)},
		{Amount: Money{Cents: 1}, CategoryID: "", Description: "a", Date: NewDate(2025, 1, 1)},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestShoppingItemValidateAndTotal(t *testing.T) {
	item := ShoppingItem{Name: "Milk", CurrentPrice: Money{Cents: 199}, Quantity: 3}
	if err := item.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if got := item.Total().Cents; got != 597 {
		t.Errorf("Total() = %d, want 597", got)
	}
	item.Quantity = 0
	if err := item.Validate(); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("Validate() = %v, want ErrInvalidQuantity", err)
	}
}

func TestItemSuggestions(t *testing.T) {
	got := ItemSuggestions([]string{"Pão", " café", "PÃO"}, []string{"Café", "", "Leite"})
	want := []string{"Pão", "café", "Leite"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("ItemSuggestions() = %q, want %q", got, want)
	}
	if got := ItemSuggestions(); got == nil || len(got) != 0 {
		t.Errorf("ItemSuggestions() with no lists = %#v, want empty slice", got)
	}
}

func TestCountdownDaysLeft(t *testing.T) {
	c := Countdown{Title: "Trip", TargetDate: NewDate(2025, 8, 1)}
	now := time.Date(2025, 7, 25, 22, 0, 0, 0, time.UTC)
	if got := c.DaysLeft(now); got != 7 {
		t.Errorf("DaysLeft() = %d, want 7", got)
	}
	if got := c.DaysLeft(time.Date(2025, 8, 3, 1, 0, 0, 0, time.UTC)); got != -2 {
		t.Errorf("DaysLeft() after target = %d, want -2", got)
	}
}

func TestIsValidation(t *testing.T) {
	bad := Task{Title: "x", Anchor: Date{}, Repeat: RepeatNone}
	if err := bad.Validate(); !IsValidation(err) || !errors.Is(err, ErrZeroDate) {
		t.Errorf("zero anchor: IsValidation(%v) = false", err)
	}
	if !IsValidation(fmt.Errorf("create task: %w", ErrEmptyTitle)) {
		t.Error("wrapped sentinel not recognised")
	}
	if IsValidation(errors.New("disk full")) || IsValidation(nil) {
		t.Error("unrelated error classified as validation")
	}
}
