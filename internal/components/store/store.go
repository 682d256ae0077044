// Package store holds per-chat state in process memory. Nothing in it is ever
// written to disk.
package store

import "sync"

// Store is a mutex guarded map with an explicit get/put/delete lifecycle.
type Store[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{items: make(map[K]V)}
}

func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return value, ok
}

// Put replaces whatever was stored under key.
func (s *Store[K, V]) Put(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

// GetOrPut returns the stored value for key, storing create() first if there is none.
func (s *Store[K, V]) GetOrPut(key K, create func() V) V {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.items[key]
	if !ok {
		value = create()
		s.items[key] = value
	}
	return value
}

// Delete removes key and returns the value it held.
func (s *Store[K, V]) Delete(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.items[key]
	delete(s.items, key)
	return value, ok
}

func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Drain empties the store and returns everything it held.
func (s *Store[K, V]) Drain() map[K]V {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.items
	s.items = make(map[K]V)
	return out
}
