package cache

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory returns the default in-process store. Expiry is enforced by the
// adapter on read, so the store itself keeps records until removed.
func NewMemory() Store {
	return &memoryStore{records: make(map[string]Record)}
}

func (s *memoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key]
	if !ok {
		return Record{}, false, nil
	}
	return cloneRecord(record), true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = cloneRecord(record)
	return nil
}

func (s *memoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}

func cloneRecord(in Record) Record {
	out := Record{StoredAt: in.StoredAt}
	if in.Offer != nil {
		offer := *in.Offer
		out.Offer = &offer
	}
	return out
}
