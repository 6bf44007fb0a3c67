// Package cache holds source content: a persistent content-addressed store
// and the run-scoped Source Cache that deduplicates fetches in front of it.
package cache

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// Store persists fetched source content keyed by ContentKey
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// ContentKey returns the store key for a full source hash. The hash already
// fingerprints the content, so it is used verbatim.
func ContentKey(sourceHash string) string {
	return "veracity:v1:" + strings.ToLower(sourceHash)
}

// DefaultDir is the on-disk store location when none is configured
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "veracity-cache")
	}
	return filepath.Join(home, ".veracity", "cache")
}

// NewStore builds the content store described by cfg. It returns nil when
// caching is disabled.
func NewStore(cfg model.CacheConfig) Store {
	if !cfg.Enabled {
		return nil
	}
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	if cfg.DiskTTL == 0 {
		return NewMemoryStore(cfg.MemoryTTL, 10*time.Minute)
	}
	return NewLayeredStore(cfg.MemoryTTL, dir, cfg.DiskTTL)
}
