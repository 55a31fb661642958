package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrCacheIO marks filesystem failures inside the asset cache. The cache
// directory must stay usable for the pipeline to make progress at all, so
// callers treat these as run-aborting, unlike per-asset generation failures.
var ErrCacheIO = errors.New("asset cache I/O failure")

// AssetCache is the filesystem-backed idempotence layer for generated images.
// Filenames follow {filenameBase}-{unixMillis}.{ext}; the timestamp varies run
// to run, so lookups are prefix matches on the base. The directory is only
// ever appended to, never rewritten, so concurrent readers (future runs) are
// always safe without locking.
type AssetCache struct {
	dir string
}

// NewAssetCache opens (creating if needed) the asset directory. An unusable
// directory is a configuration-level failure: the pipeline cannot make
// progress without it and must abort before any network call.
func NewAssetCache(dir string) (*AssetCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("asset cache directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset cache directory %s: %w", dir, err)
	}
	return &AssetCache{dir: dir}, nil
}

// Dir returns the cache directory path.
func (c *AssetCache) Dir() string {
	return c.dir
}

// Lookup returns the path of any stored file whose name starts with
// filenameBase. A hit means a previous run already paid for this asset and no
// generation call is needed. When several timestamped files match, the oldest
// (first in sorted order) wins so repeat runs stay deterministic.
func (c *AssetCache) Lookup(filenameBase string) (string, bool, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to scan %s: %v", ErrCacheIO, c.dir, err)
	}

	var matches []string
	prefix := filenameBase + "-"
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			matches = append(matches, entry.Name())
		}
	}
	if len(matches) == 0 {
		return "", false, nil
	}

	sort.Strings(matches)
	return filepath.Join(c.dir, matches[0]), true, nil
}

// Store writes image bytes to a new timestamped file and returns its path.
// Existing files are never overwritten.
func (c *AssetCache) Store(filenameBase string, data []byte, ext string) (string, error) {
	if ext == "" {
		ext = "png"
	}
	millis := time.Now().UnixMilli()
	path := filepath.Join(c.dir, fmt.Sprintf("%s-%d.%s", filenameBase, millis, ext))
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		millis++
		path = filepath.Join(c.dir, fmt.Sprintf("%s-%d.%s", filenameBase, millis, ext))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: failed to store %s: %v", ErrCacheIO, filepath.Base(path), err)
	}
	return path, nil
}
