package cache

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrQuotaExceeded is returned by a Store that has no room left for a new value.
var ErrQuotaExceeded = errors.New("cache quota exceeded")

// Store is a synchronous, string-keyed persistent store.
// Get reports false when the key is absent.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
	Keys(prefix string) ([]string, error)
}

type memoryStore struct {
	mu         sync.RWMutex
	maxEntries int
	values     map[string][]byte
}

var _ Store = (*memoryStore)(nil)

// NewMemoryStore returns a Store holding at most maxEntries values (unbounded if maxEntries <= 0).
func NewMemoryStore(maxEntries int) Store {
	return &memoryStore{
		maxEntries: maxEntries,
		values:     make(map[string][]byte),
	}
}

func (s *memoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *memoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.values[key]; !exists && s.maxEntries > 0 && len(s.values) >= s.maxEntries {
		return ErrQuotaExceeded
	}
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *memoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *memoryStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
