package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BuildEntry is the on-disk record of a build-cache image.
type BuildEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// BuildCache stores rendered images between prerender runs as
// <dir>/<key>.<ext>.
type BuildCache struct {
	dir string
}

// NewBuildCache creates the cache directory if needed.
func NewBuildCache(dir string) (*BuildCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create build cache dir: %w", err)
	}
	return &BuildCache{dir: dir}, nil
}

// BuildKey derives the build-cache key from the options hash, the component
// source hash and the tool version. Any change to one of them invalidates
// the entry.
func BuildKey(optionsHash, componentHash, version string) string {
	return ShortHash([]string{optionsHash, componentHash, version}, 20)
}

// Path returns the file path of an entry.
func (b *BuildCache) Path(key, ext string) string {
	return filepath.Join(b.dir, key+"."+ext)
}

// Get returns the stored image, if present and not expired.
func (b *BuildCache) Get(key, ext string) ([]byte, bool, error) {
	path := b.Path(key, ext)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e BuildEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		_ = os.Remove(path)
		return nil, false, nil
	}
	if !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return e.Data, true, nil
}

// Set writes an entry. A ttl of zero never expires.
func (b *BuildCache) Set(key, ext string, data []byte, ttl time.Duration) error {
	now := time.Now()
	raw, err := json.Marshal(BuildEntry{Data: data, ExpiresAt: expiry(ttl), CreatedAt: now})
	if err != nil {
		return err
	}
	return writeFileAtomic(b.Path(key, ext), raw)
}

// Dir returns the cache directory.
func (b *BuildCache) Dir() string { return b.dir }

// Clear removes every entry.
func (b *BuildCache) Clear() error {
	if err := os.RemoveAll(b.dir); err != nil {
		return err
	}
	return os.MkdirAll(b.dir, 0755)
}
