package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndLookup(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "cache"))

	_, ok := c.Lookup("vn-clannad")
	assert.False(t, ok)

	require.NoError(t, c.Store("vn-clannad", []byte("artifact")))
	data, ok := c.Lookup("vn-clannad")
	require.True(t, ok)
	assert.Equal(t, []byte("artifact"), data)
}

func TestStoreFirstWriteWins(t *testing.T) {
	c := New(t.TempDir())

	require.NoError(t, c.Store("k", []byte("first")))
	require.NoError(t, c.Store("k", []byte("second")))

	data, ok := c.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, []byte("first"), data)
}

func TestStoreSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	require.NoError(t, c.Store("report-group:1/../42", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "/")
	assert.NotContains(t, entries[0].Name(), ":")
	assert.NotContains(t, entries[0].Name(), "..")

	_, ok := c.Lookup("report-group:1/../42")
	assert.True(t, ok)
}

func TestAge(t *testing.T) {
	c := New(t.TempDir())

	_, ok := c.Age("missing")
	assert.False(t, ok)

	require.NoError(t, c.Store("k", []byte("x")))
	age, ok := c.Age("k")
	require.True(t, ok)
	assert.Less(t, age, time.Minute)
}

func TestEvictAllowsRefresh(t *testing.T) {
	c := New(t.TempDir())

	require.NoError(t, c.Store("report-42", []byte("stale")))
	c.Evict("report-42")
	require.NoError(t, c.Store("report-42", []byte("fresh")))

	data, ok := c.Lookup("report-42")
	require.True(t, ok)
	assert.Equal(t, []byte("fresh"), data)
}

func TestClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := New(dir)
	require.NoError(t, c.Store("k", []byte("x")))

	require.NoError(t, c.Clear())
	_, ok := c.Lookup("k")
	assert.False(t, ok)

	// clearing an already-missing namespace is fine
	require.NoError(t, c.Clear())
}
