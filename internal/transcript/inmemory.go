package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process transcript store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Transcript
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Transcript)}
}

func (s *InMemoryStore) LoadOrCreate(_ context.Context, owner string) (Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[owner]
	if !ok {
		now := time.Now().UTC()
		rec = &Transcript{Owner: owner, CreatedAt: now, UpdatedAt: now}
		s.records[owner] = rec
	}
	return snapshot(rec), nil
}

func (s *InMemoryStore) Load(_ context.Context, owner string) (Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[owner]
	if !ok {
		return Transcript{}, &StoreError{Op: "load", Err: ErrNotFound}
	}
	return snapshot(rec), nil
}

func (s *InMemoryStore) Append(_ context.Context, owner string, turns []Turn) (Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[owner]
	if !ok {
		return Transcript{}, &StoreError{Op: "append", Err: ErrNotFound}
	}
	now := time.Now().UTC()
	for _, t := range turns {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		rec.Turns = append(rec.Turns, t)
	}
	rec.UpdatedAt = now
	return snapshot(rec), nil
}

func (s *InMemoryStore) Delete(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, owner)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

func snapshot(rec *Transcript) Transcript {
	out := *rec
	out.Turns = make([]Turn, len(rec.Turns))
	copy(out.Turns, rec.Turns)
	return out
}
