package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetCache_StoreThenLookup(t *testing.T) {
	cache, err := NewAssetCache(t.TempDir())
	require.NoError(t, err)

	stored, err := cache.Store("guide-a-img-0", []byte("image-bytes"), "jpg")
	require.NoError(t, err)

	found, ok, err := cache.Lookup("guide-a-img-0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, stored, found)

	data, err := os.ReadFile(found)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
}

func TestAssetCache_LookupIsPrefixMatch(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewAssetCache(dir)
	require.NoError(t, err)

	// Timestamp suffixes vary run to run; lookups must match on the base.
	name := "guide-a-img-0-1700000000000.jpg"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))

	found, ok, err := cache.Lookup("guide-a-img-0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, name), found)
}

func TestAssetCache_LookupDoesNotMatchLongerBase(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewAssetCache(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "guide-a-img-10-1700000000000.jpg"), []byte("x"), 0o644))

	_, ok, err := cache.Lookup("guide-a-img-1")
	require.NoError(t, err)
	assert.False(t, ok, "base guide-a-img-1 must not match guide-a-img-10")
}

func TestAssetCache_MissOnEmptyDirectory(t *testing.T) {
	cache, err := NewAssetCache(t.TempDir())
	require.NoError(t, err)

	_, ok, err := cache.Lookup("never-stored")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAssetCache_StoreIsAppendOnly(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewAssetCache(dir)
	require.NoError(t, err)

	first, err := cache.Store("guide-b-img-0", []byte("one"), "png")
	require.NoError(t, err)
	second, err := cache.Store("guide-b-img-0", []byte("two"), "png")
	require.NoError(t, err)

	// Both files survive; the earlier one still wins the lookup.
	assert.NotEqual(t, first, second)
	_, err = os.Stat(first)
	assert.NoError(t, err)
	_, err = os.Stat(second)
	assert.NoError(t, err)

	found, ok, err := cache.Lookup("guide-b-img-0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first, found)
}

func TestAssetCache_IOFailuresCarrySentinel(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewAssetCache(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	_, _, err = cache.Lookup("guide-c-img-0")
	assert.ErrorIs(t, err, ErrCacheIO)

	_, err = cache.Store("guide-c-img-0", []byte("x"), "png")
	assert.ErrorIs(t, err, ErrCacheIO)
}

func TestNewAssetCache_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "assets")
	_, err := NewAssetCache(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewAssetCache_EmptyDirIsConfigurationError(t *testing.T) {
	_, err := NewAssetCache("")
	assert.Error(t, err)
}
