package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ShortHash returns the first n hex characters of the SHA-256 of the JSON
// encoding of v. Map keys are sorted by encoding/json, so the result does
// not depend on insertion order.
func ShortHash(v any, n int) string {
	data, _ := json.Marshal(v)
	h := Hash(data)
	if n <= 0 || n > len(h) {
		return h
	}
	return h[:n]
}

// Keyer builds the keys of every cache tier.
type Keyer interface {
	// ImageKey identifies a rendered image: base path, site URL and query hash.
	ImageKey(basePath, siteURL, queryHash string) string
	// PayloadKey identifies an extracted page payload: base path, site URL
	// and query hash, like the image it feeds.
	PayloadKey(basePath, siteURL, queryHash string) string
	// PrerenderKey identifies options stored during a prerender run.
	PrerenderKey(id string) string
	// FontKey identifies a resolved font.
	FontKey(family string, weight int, style, src string) string
	// EmojiKey identifies a resolved emoji icon.
	EmojiKey(set, name string) string
}

// DefaultKeyer is the standard [Keyer].
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) ImageKey(basePath, siteURL, queryHash string) string {
	return hashKey("image", basePath, siteURL, queryHash)
}

func (DefaultKeyer) PayloadKey(basePath, siteURL, queryHash string) string {
	return hashKey("payload", basePath, siteURL, queryHash)
}

func (DefaultKeyer) PrerenderKey(id string) string {
	return "prerender:" + id
}

func (DefaultKeyer) FontKey(family string, weight int, style, src string) string {
	return hashKey("font", family, weight, style, src)
}

func (DefaultKeyer) EmojiKey(set, name string) string {
	return "emoji:" + set + ":" + name
}

// ScopedKeyer prefixes every key of an inner keyer so several sites can
// share one Redis or Mongo backend.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) ImageKey(basePath, siteURL, queryHash string) string {
	return k.prefix + k.inner.ImageKey(basePath, siteURL, queryHash)
}

func (k *ScopedKeyer) PayloadKey(basePath, siteURL, queryHash string) string {
	return k.prefix + k.inner.PayloadKey(basePath, siteURL, queryHash)
}

func (k *ScopedKeyer) PrerenderKey(id string) string {
	return k.prefix + k.inner.PrerenderKey(id)
}

func (k *ScopedKeyer) FontKey(family string, weight int, style, src string) string {
	return k.prefix + k.inner.FontKey(family, weight, style, src)
}

func (k *ScopedKeyer) EmojiKey(set, name string) string {
	return k.prefix + k.inner.EmojiKey(set, name)
}
