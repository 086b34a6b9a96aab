// Package cache stores rendered reply images as write-once blobs on disk,
// keyed by command fingerprint or caller-supplied tag.
package cache

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Cache struct {
	dir string
}

func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// sanitizeKey keeps keys usable as filenames. ':' is the volume separator on
// Windows and '/' would escape the cache directory.
func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, sanitizeKey(key)+".jpg")
}

// Lookup returns the stored artifact. Absence is not an error.
func (c *Cache) Lookup(key string) ([]byte, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Age reports how long ago the artifact for key was stored.
func (c *Cache) Age(key string) (time.Duration, bool) {
	info, err := os.Stat(c.path(key))
	if err != nil {
		return 0, false
	}
	return time.Since(info.ModTime()), true
}

// Store writes the artifact for key. First write wins: if the key already
// exists the call is a no-op, which keeps cached artifacts immutable under
// concurrent identical commands. The directory is created lazily.
func (c *Cache) Store(key string, data []byte) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(c.path(key), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}

	if _, werr := f.Write(data); werr != nil {
		f.Close()
		os.Remove(c.path(key))
		return werr
	}
	return f.Close()
}

// Evict removes one key so a refreshed artifact can be stored under it.
// Only the periodic-report path uses this; command artifacts stay immutable.
func (c *Cache) Evict(key string) {
	_ = os.Remove(c.path(key))
}

// Clear removes the whole cache namespace. Called at shutdown; a missing
// directory is a no-op, not an error.
func (c *Cache) Clear() error {
	err := os.RemoveAll(c.dir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
