package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps encoded records in a map. Values are copied through the
// codec, so callers never share memory with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string, v any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	data, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := decode(data, v); err != nil {
		return false, fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	s.mu.Lock()
	s.records[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

// Keys returns the stored keys in no particular order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys
}
