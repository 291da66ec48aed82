// Package cache provides a stale-while-revalidate TTL cache over a pluggable
// key/value store. The store is a flat namespace shared with unrelated data,
// so every key the cache touches carries a distinguishing prefix.
package cache

import (
	"sort"
	"strings"
	"sync"
)

// Store is the minimal key/value contract the cache runs on.
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Get returns the raw value for key, with found=false on absence.
	Get(key string) (value []byte, found bool, err error)
	// Set stores value under key, overwriting any previous value.
	Set(key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Keys returns all keys starting with prefix.
	Keys(prefix string) ([]string, error)
}

// MemoryStore is an in-process Store backed by a mutex-guarded map.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key from the store.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Keys returns all keys starting with prefix, sorted for determinism.
func (s *MemoryStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
