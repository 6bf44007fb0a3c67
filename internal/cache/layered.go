package cache

import "time"

// LayeredStore checks memory first, then disk, promoting disk hits
type LayeredStore struct {
	memory Store
	disk   Store
}

// NewLayeredStore creates a memory + disk store
func NewLayeredStore(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredStore {
	return &LayeredStore{
		memory: NewMemoryStore(memoryTTL, 10*time.Minute),
		disk:   NewDiskStore(diskDir, diskTTL),
	}
}

// Get retrieves content from memory or disk
func (s *LayeredStore) Get(key string) ([]byte, bool) {
	if val, found := s.memory.Get(key); found {
		return val, true
	}

	if val, found := s.disk.Get(key); found {
		_ = s.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores content in both layers. A disk failure is returned, but the
// memory copy stays usable for the rest of the run.
func (s *LayeredStore) Set(key string, value []byte, ttl time.Duration) error {
	if err := s.memory.Set(key, value, 0); err != nil {
		return err
	}
	return s.disk.Set(key, value, ttl)
}

// Delete removes content from both layers
func (s *LayeredStore) Delete(key string) error {
	_ = s.memory.Delete(key)
	return s.disk.Delete(key)
}

// Clear empties both layers
func (s *LayeredStore) Clear() error {
	_ = s.memory.Clear()
	return s.disk.Clear()
}
