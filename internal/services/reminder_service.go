package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"casa/internal/agenda"
	"casa/internal/amqp"
	"casa/internal/core"
	"casa/internal/store"
)

// ReminderPublisher delivers agenda reminders.
type ReminderPublisher interface {
	PublishAgendaReminder(ctx context.Context, queue string, msg *amqp.AgendaReminderMessage) error
}

// OwnerLister lists owners that have tasks.
type OwnerLister interface {
	ListTaskOwners(ctx context.Context) ([]string, error)
}

// ReminderService tells each owner what their agenda holds for the day.
type ReminderService struct {
	owners    OwnerLister
	registry  *agenda.Registry
	publisher ReminderPublisher
	queue     string
	now       store.Clock
	loc       *time.Location
}

// NewReminderService wires the service. A nil publisher logs reminders instead.
func NewReminderService(owners OwnerLister, registry *agenda.Registry, publisher ReminderPublisher, queue string, loc *time.Location, now store.Clock) *ReminderService {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &ReminderService{owners: owners, registry: registry, publisher: publisher, queue: queue, now: now, loc: loc}
}

// SendDaily sends one reminder per owner with occurrences today and
// returns how many were sent. One owner failing does not stop the others.
func (s *ReminderService) SendDaily(ctx context.Context) (int, error) {
	owners, err := s.owners.ListTaskOwners(ctx)
	if err != nil {
		return 0, fmt.Errorf("list task owners: %w", err)
	}
	now := s.now().In(s.loc)
	day := core.DateOf(now)

	slog.InfoContext(ctx, "Processing agenda reminders", "owners", len(owners), "date", day.String())

	sent := 0
	for _, owner := range owners {
		st, err := s.registry.For(ctx, owner)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load agenda", "owner", owner, "error", err)
			continue
		}
		tasks := st.OccurrencesOn(now)
		if len(tasks) == 0 {
			continue
		}
		titles := make([]string, len(tasks))
		for i, t := range tasks {
			titles[i] = t.Title
		}
		msg := &amqp.AgendaReminderMessage{OwnerID: owner, Date: day.String(), Titles: titles, Timestamp: now}

		if s.publisher == nil {
			slog.InfoContext(ctx, "Agenda reminder", "owner", owner, "date", msg.Date, "titles", titles)
		} else if err := s.publisher.PublishAgendaReminder(ctx, s.queue, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish agenda reminder", "owner", owner, "error", err)
			continue
		}
		sent++
	}

	slog.InfoContext(ctx, "Agenda reminders complete", "sent", sent, "total_checked", len(owners))
	return sent, nil
}
