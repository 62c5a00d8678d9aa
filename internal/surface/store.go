package surface

import "sync"

// Store keeps the current table for each run key, shared between the paths
// that start runs (HTTP, Kafka) and the paths that read them (HTTP, health).
// A restarted run replaces the key's table outright.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

func NewStore() *Store {
	return &Store{tables: make(map[string]*Table)}
}

func (s *Store) Put(key string, t *Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[key] = t
}

func (s *Store) Get(key string) (*Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[key]
	return t, ok
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, key)
}
