package transcript

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestLoadOrCreateIsIdempotent(t *testing.T) {
	s := NewInMemoryStore()
	first, err := s.LoadOrCreate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	second, err := s.LoadOrCreate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	if !first.CreatedAt.Equal(second.CreatedAt) {
		t.Fatalf("second LoadOrCreate created a new record: %v vs %v", first.CreatedAt, second.CreatedAt)
	}
	if len(second.Turns) != 0 {
		t.Fatalf("new transcript has %d turns, want 0", len(second.Turns))
	}
}

func TestAppendAssignsIDsAndKeepsOrder(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.LoadOrCreate(context.Background(), "u1"); err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}

	updated, err := s.Append(context.Background(), "u1", []Turn{
		{Role: RoleUser, Content: "question"},
		{Role: RoleModel, Content: "answer"},
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if len(updated.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(updated.Turns))
	}
	if updated.Turns[0].Content != "question" || updated.Turns[1].Content != "answer" {
		t.Fatalf("turns out of order: %+v", updated.Turns)
	}
	for _, turn := range updated.Turns {
		if turn.ID == "" || turn.CreatedAt.IsZero() {
			t.Fatalf("turn missing ID or timestamp: %+v", turn)
		}
	}
	if updated.Turns[1].CreatedAt.Before(updated.Turns[0].CreatedAt) {
		t.Fatalf("timestamps not monotonic: %+v", updated.Turns)
	}
}

func TestAppendToMissingOwnerFails(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.Append(context.Background(), "ghost", []Turn{{Role: RoleUser, Content: "hi"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Append() error = %v, want ErrNotFound", err)
	}
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("Append() error = %T, want *StoreError", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.LoadOrCreate(context.Background(), "u1"); err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Delete(context.Background(), "u1"); err != nil {
			t.Fatalf("Delete() #%d error = %v", i+1, err)
		}
	}
	if _, err := s.Load(context.Background(), "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() after delete error = %v, want ErrNotFound", err)
	}
}

func TestSystemTurnsRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.LoadOrCreate(context.Background(), "u1"); err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	if _, err := s.Append(context.Background(), "u1", []Turn{{Role: RoleSystem, Content: "seed"}}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	tr, err := s.Load(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(tr.Turns) != 1 || tr.Turns[0].Role != RoleSystem || tr.Turns[0].Content != "seed" {
		t.Fatalf("system turn did not round-trip: %+v", tr.Turns)
	}
}

func TestSnapshotsAreDetached(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.LoadOrCreate(context.Background(), "u1"); err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	tr, err := s.Append(context.Background(), "u1", []Turn{{Role: RoleUser, Content: "original"}})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	tr.Turns[0].Content = "mutated"

	reloaded, err := s.Load(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.Turns[0].Content != "original" {
		t.Fatalf("store record was mutated through a snapshot")
	}
}

func TestConcurrentAppendsDoNotInterleavePairs(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.LoadOrCreate(context.Background(), "u1"); err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			marker := fmt.Sprintf("exchange-%d", i)
			_, err := s.Append(context.Background(), "u1", []Turn{
				{Role: RoleUser, Content: marker},
				{Role: RoleModel, Content: marker},
			})
			if err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	tr, err := s.Load(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(tr.Turns) != 2*writers {
		t.Fatalf("turns = %d, want %d", len(tr.Turns), 2*writers)
	}
	for i := 0; i < len(tr.Turns); i += 2 {
		user, model := tr.Turns[i], tr.Turns[i+1]
		if user.Role != RoleUser || model.Role != RoleModel {
			t.Fatalf("pair %d roles interleaved: %s then %s", i/2, user.Role, model.Role)
		}
		if user.Content != model.Content {
			t.Fatalf("pair %d split across exchanges: %q vs %q", i/2, user.Content, model.Content)
		}
	}
}
