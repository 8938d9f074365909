package profile

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process profile store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func (s *InMemoryStore) Get(_ context.Context, owner string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[owner]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.UpdatedAt = time.Now().UTC()
	s.records[rec.Owner] = rec
	return rec, nil
}

func (s *InMemoryStore) Close() error { return nil }
