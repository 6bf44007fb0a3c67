package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
)

func TestContentKey(t *testing.T) {
	assert.Equal(t, "veracity:v1:abcdef", ContentKey("ABCDEF"))
}

func TestDiskStore_SetGet(t *testing.T) {
	dir := t.TempDir()
	s := NewDiskStore(dir, time.Hour)
	key := ContentKey("abcdef0123")

	require.NoError(t, s.Set(key, []byte("content"), 0))

	got, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "content", string(got))

	_, err := os.Stat(filepath.Join(dir, "ab"))
	assert.NoError(t, err, "entries are sharded by hash prefix")

	require.NoError(t, s.Delete(key))
	_, ok = s.Get(key)
	assert.False(t, ok)
	assert.NoError(t, s.Delete(key), "deleting a missing entry is not an error")
}

func TestDiskStore_Expired(t *testing.T) {
	s := NewDiskStore(t.TempDir(), time.Hour)
	key := ContentKey("abcdef0123")

	require.NoError(t, s.Set(key, []byte("content"), -time.Second))
	_, ok := s.Get(key)
	assert.False(t, ok)
	_, err := os.Stat(s.path(key))
	assert.True(t, os.IsNotExist(err))
}

func TestDiskStore_CorruptedEntry(t *testing.T) {
	s := NewDiskStore(t.TempDir(), time.Hour)
	key := ContentKey("abcdef0123")
	require.NoError(t, s.Set(key, []byte("content"), 0))

	require.NoError(t, os.WriteFile(s.path(key), []byte(`{"data":"Ym9ndXM=","checksum":"00","expires_at":"2999-01-01T00:00:00Z"}`), 0644))
	_, ok := s.Get(key)
	assert.False(t, ok)
}

func TestLayeredStore_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	key := ContentKey("abcdef0123")
	require.NoError(t, NewDiskStore(dir, time.Hour).Set(key, []byte("on disk"), 0))

	s := NewLayeredStore(time.Minute, dir, time.Hour)
	got, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "on disk", string(got))

	mem, ok := s.memory.Get(key)
	require.True(t, ok)
	assert.Equal(t, "on disk", string(mem))

	require.NoError(t, s.Clear())
	_, ok = s.Get(key)
	assert.False(t, ok)
}

func TestNewStore(t *testing.T) {
	assert.Nil(t, NewStore(model.CacheConfig{Enabled: false}))

	_, isMemory := NewStore(model.CacheConfig{Enabled: true, MemoryTTL: time.Minute}).(*MemoryStore)
	assert.True(t, isMemory)

	_, isLayered := NewStore(model.CacheConfig{Enabled: true, Dir: t.TempDir(), DiskTTL: time.Hour}).(*LayeredStore)
	assert.True(t, isLayered)
}
