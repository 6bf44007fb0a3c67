package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps source content in process memory
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates a memory store. A zero defaultTTL keeps entries
// until the process exits.
func NewMemoryStore(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryStore {
	if defaultTTL == 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &MemoryStore{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves content from the store
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	if val, found := s.cache.Get(key); found {
		return val.([]byte), true
	}
	return nil, false
}

// Set stores content; ttl 0 uses the store default
func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	s.cache.Set(key, value, ttl)
	return nil
}

// Delete removes content from the store
func (s *MemoryStore) Delete(key string) error {
	s.cache.Delete(key)
	return nil
}

// Clear removes everything
func (s *MemoryStore) Clear() error {
	s.cache.Flush()
	return nil
}

// Len returns the number of live entries
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}
