package cache

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStorage keeps stores in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	order  []string
	stores map[string]map[string]*Entry
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		stores: make(map[string]map[string]*Entry),
	}
}

func (s *MemoryStorage) Open(_ context.Context, name string) (Store, error) {
	if name == "" {
		return nil, fmt.Errorf("store name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stores[name]; !ok {
		s.stores[name] = make(map[string]*Entry)
		s.order = append(s.order, name)
	}
	return &memoryStore{storage: s, name: name}, nil
}

func (s *MemoryStorage) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names, nil
}

func (s *MemoryStorage) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stores[name]
	return ok, nil
}

func (s *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stores[name]; !ok {
		return false, nil
	}
	delete(s.stores, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	StoresDeleted.Inc()
	return true, nil
}

func (s *MemoryStorage) Match(_ context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range s.order {
		if entry, ok := s.stores[name][key.String()]; ok {
			CacheHits.WithLabelValues(name).Inc()
			return copyEntry(entry), nil
		}
	}
	return nil, ErrCacheMiss
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(context.Context) error {
	return nil
}

type memoryStore struct {
	storage *MemoryStorage
	name    string
}

func (m *memoryStore) Name() string {
	return m.name
}

func (m *memoryStore) Match(_ context.Context, key Key) (*Entry, error) {
	m.storage.mu.RLock()
	defer m.storage.mu.RUnlock()
	entry, ok := m.storage.stores[m.name][key.String()]
	if !ok {
		CacheMisses.WithLabelValues(m.name).Inc()
		return nil, ErrCacheMiss
	}
	CacheHits.WithLabelValues(m.name).Inc()
	return copyEntry(entry), nil
}

func (m *memoryStore) Put(_ context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	m.storage.mu.Lock()
	defer m.storage.mu.Unlock()
	entries, ok := m.storage.stores[m.name]
	if !ok {
		return fmt.Errorf("put %s: %w", m.name, ErrStoreDeleted)
	}
	entries[key.String()] = copyEntry(entry)
	CacheWrites.WithLabelValues(m.name).Inc()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key Key) error {
	m.storage.mu.Lock()
	defer m.storage.mu.Unlock()
	delete(m.storage.stores[m.name], key.String())
	return nil
}

func (m *memoryStore) Len(_ context.Context) (int, error) {
	m.storage.mu.RLock()
	defer m.storage.mu.RUnlock()
	return len(m.storage.stores[m.name]), nil
}

func copyEntry(e *Entry) *Entry {
	c := *e
	c.Body = append([]byte(nil), e.Body...)
	c.Headers = e.Headers.Clone()
	return &c
}
