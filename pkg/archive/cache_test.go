package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	cache, err := NewCache(filepath.Join(t.TempDir(), "nested", "cache"))
	require.NoError(t, err)

	const u = "https://archive.test/static/2026/Index.json"
	_, ok := cache.Get(u)
	assert.False(t, ok)

	body := []byte(`{"Year":2026,"Meetings":[]}`)
	require.NoError(t, cache.Put(u, body))

	got, ok := cache.Get(u)
	require.True(t, ok)
	assert.Equal(t, body, got)

	_, ok = cache.Get(u + "?other")
	assert.False(t, ok)

	entries, err := os.ReadDir(cache.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, ".lz4", filepath.Ext(entries[0].Name()))
}

func TestCache_CorruptEntryIsAMiss(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	const u = "https://archive.test/static/StreamingStatus.json"
	require.NoError(t, os.WriteFile(cache.path(u), []byte("not lz4"), 0644))

	_, ok := cache.Get(u)
	assert.False(t, ok)
	_, err = os.Stat(cache.path(u))
	assert.True(t, os.IsNotExist(err), "corrupt entry should be removed")
}
