package agenda

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"casa/internal/core"
)

func TestRegistry_LoadsEachOwnerOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.tasks["alice"] = []core.Task{{ID: "1", OwnerID: "alice", Title: "a", Anchor: core.NewDate(2024, 1, 1), Repeat: core.RepeatNone}}
	r := NewRegistry(repo, 10, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.For(context.Background(), "alice")
			if err != nil {
				t.Errorf("For: %v", err)
				return
			}
			if len(s.Tasks()) != 1 {
				t.Errorf("store has %d tasks, want 1", len(s.Tasks()))
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&repo.listCalls); n != 1 {
		t.Fatalf("ListTasks called %d times, want 1", n)
	}
}

func TestRegistry_OwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(newFakeRepo(), 10, time.Minute)

	alice, err := r.For(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := alice.Add(ctx, newTask("alice only", core.NewDate(2024, 1, 1), core.RepeatDaily)); err != nil {
		t.Fatal(err)
	}

	bob, err := r.For(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if n := len(bob.Tasks()); n != 0 {
		t.Fatalf("bob sees %d tasks, want 0", n)
	}
}

func TestRegistry_ErrorsAndForget(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	r := NewRegistry(repo, 10, time.Minute)

	if _, err := r.For(ctx, ""); !errors.Is(err, ErrNoOwner) {
		t.Errorf("For(\"\") error = %v, want ErrNoOwner", err)
	}

	repo.failList = errors.New("db down")
	if _, err := r.For(ctx, "alice"); err == nil {
		t.Fatal("expected load error")
	}

	repo.failList = nil
	if _, err := r.For(ctx, "alice"); err != nil {
		t.Fatalf("For after recovery: %v", err)
	}
	r.Forget("alice")
	if _, err := r.For(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&repo.listCalls); n != 3 {
		t.Fatalf("ListTasks called %d times, want 3", n)
	}
}

func TestRegistry_WriteThroughEvictedStoreIsVisible(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(newFakeRepo(), 1, time.Minute)

	held, err := r.For(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.For(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	reloaded, err := r.For(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded == held {
		t.Fatal("expected alice to be reloaded after eviction")
	}

	if _, err := held.Add(ctx, newTask("late write", core.NewDate(2024, 1, 1), core.RepeatNone)); err != nil {
		t.Fatal(err)
	}

	current, err := r.For(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if n := len(current.Tasks()); n != 1 {
		t.Fatalf("alice sees %d tasks, want 1", n)
	}
}
