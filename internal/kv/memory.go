package kv

import (
	"context"
	"sync"
)

// MemoryStore is a Store kept entirely in process memory.
// It is used for ephemeral sessions and as a test substitute.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]string
	writes   int
	writeErr error
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// NewMemoryStoreWith creates an in-memory store seeded with values.
// Seeding does not count as a write.
func NewMemoryStoreWith(values map[string]string) *MemoryStore {
	s := NewMemoryStore()
	for k, v := range values {
		s.data[k] = v
	}
	return s
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", false, ErrStoreClosed
	}

	v, ok := s.data[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if key == "" {
		return ErrEmptyKey
	}
	if s.writeErr != nil {
		return s.writeErr
	}

	s.data[key] = value
	s.writes++
	return nil
}

// Writes returns the number of successful Set calls.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// FailWrites makes every subsequent Set return err. Pass nil to recover.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
