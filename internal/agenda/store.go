// Package agenda keeps each user's calendar tasks in memory and answers
// "what happens on this day" questions against the recurrence rules.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"casa/internal/core"
	"casa/internal/store"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskPatch lists the fields of an update. Nil fields are left unchanged.
type TaskPatch struct {
	Title            *string
	Anchor           *core.Date
	Window           core.Window
	Repeat           *core.RepeatType
	RepeatUntil      *core.Date
	ClearRepeatUntil bool
}

// Apply returns t with the patch applied.
func (p TaskPatch) Apply(t core.Task) core.Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Anchor != nil {
		t.Anchor = *p.Anchor
	}
	if p.Window != nil {
		t.Window = p.Window
	}
	if p.Repeat != nil {
		t.Repeat = *p.Repeat
	}
	if p.ClearRepeatUntil {
		t.RepeatUntil = nil
	}
	if p.RepeatUntil != nil {
		until := *p.RepeatUntil
		t.RepeatUntil = &until
	}
	return t
}

// Store is a read-through cache of one owner's tasks. The repository stays
// the source of truth: the cached slice only changes after a write succeeds.
type Store struct {
	repo  store.TaskRepository
	owner string

	// writeMu serializes writes so an update patches the latest version of
	// a task.
	writeMu sync.Mutex
	onWrite func(*Store)

	mu     sync.RWMutex
	tasks  []core.Task
	loaded bool
}

func NewStore(repo store.TaskRepository, ownerID string) *Store {
	return &Store{repo: repo, owner: ownerID}
}

// OnWrite registers fn to run after every persisted write.
func (s *Store) OnWrite(fn func(*Store)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.onWrite = fn
}

func (s *Store) written() {
	if s.onWrite != nil {
		s.onWrite(s)
	}
}

// Owner returns the id of the user whose tasks this store holds.
func (s *Store) Owner() string { return s.owner }

// Load replaces the cached tasks with the repository contents.
func (s *Store) Load(ctx context.Context) error {
	tasks, err := s.repo.ListTasks(ctx, s.owner)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	s.mu.Lock()
	s.tasks = tasks
	s.loaded = true
	s.mu.Unlock()

	slog.DebugContext(ctx, "Agenda loaded", "owner", s.owner, "count", len(tasks))
	return nil
}

// Loaded reports whether Load has succeeded at least once.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Add validates and persists a new task, then appends the stored record.
func (s *Store) Add(ctx context.Context, t core.Task) (core.Task, error) {
	t.OwnerID = s.owner
	if t.Window == nil {
		t.Window = core.AllDay{}
	}
	if err := t.Validate(); err != nil {
		return core.Task{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	created, err := s.repo.CreateTask(ctx, t)
	if err != nil {
		return core.Task{}, fmt.Errorf("create task: %w", err)
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, created)
	s.mu.Unlock()
	s.written()
	return created, nil
}

// Update applies patch to the task with the given id. The new rule fully
// replaces the old one.
func (s *Store) Update(ctx context.Context, id string, patch TaskPatch) (core.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, ok := s.Get(id)
	if !ok {
		return core.Task{}, ErrTaskNotFound
	}
	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return core.Task{}, err
	}
	updated, err := s.repo.UpdateTask(ctx, next)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return core.Task{}, ErrTaskNotFound
		}
		return core.Task{}, fmt.Errorf("update task: %w", err)
	}

	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i] = updated
			break
		}
	}
	s.mu.Unlock()
	s.written()
	return updated, nil
}

// Remove deletes the task and drops it from the cache.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, ok := s.Get(id); !ok {
		return ErrTaskNotFound
	}
	if err := s.repo.DeleteTask(ctx, s.owner, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}

	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.written()
	return nil
}

// Get returns the cached task with the given id.
func (s *Store) Get(id string) (core.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return core.Task{}, false
}

// Tasks returns a copy of every cached task in natural order.
func (s *Store) Tasks() []core.Task {
	return s.QueryBy(func(core.Task) bool { return true })
}

// QueryBy returns the tasks matching pred in natural order.
func (s *Store) QueryBy(pred func(core.Task) bool) []core.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// OccurrencesOn returns the tasks occurring on the calendar day of date.
func (s *Store) OccurrencesOn(date time.Time) []core.Task {
	day := core.DateOf(date)
	return s.QueryBy(func(t core.Task) bool {
		return core.OccursOnDate(t, day)
	})
}

// Calendar maps every day in [from, to] that has at least one occurrence to
// the tasks occurring on it. Keys use core.DateLayout.
func (s *Store) Calendar(from, to core.Date) map[string][]core.Task {
	tasks := s.Tasks()
	out := make(map[string][]core.Task)
	for d := from; !d.After(to); d = d.AddDays(1) {
		for _, t := range tasks {
			if core.OccursOnDate(t, d) {
				out[d.String()] = append(out[d.String()], t)
			}
		}
	}
	return out
}

// Month returns the calendar for one month of the given year.
func (s *Store) Month(year, month int) map[string][]core.Task {
	first := core.NewDate(year, month, 1)
	last := core.NewDate(year, month, core.DaysIn(year, month))
	return s.Calendar(first, last)
}
