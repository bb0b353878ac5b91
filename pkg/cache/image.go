package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ImageEntry is the persisted form of a rendered image.
type ImageEntry struct {
	Data      string            `json:"data"` // base64
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Bytes decodes the image payload.
func (e *ImageEntry) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.Data)
}

// ImageRequest describes one cache-aware image lookup.
type ImageRequest struct {
	Key string
	// TTL is the shared-cache lifetime. TTL <= 0 disables caching.
	TTL time.Duration
	// Purge evicts any stored entry before rendering.
	Purge bool
	// Enabled is false outside production-like modes.
	Enabled bool
}

// ImageResult is returned by [ImageCache.Serve].
type ImageResult struct {
	Data    []byte
	Headers map[string]string
	Hit     bool
}

// ImageCache fronts the image tier.
type ImageCache struct {
	store Storage
	now   func() time.Time
}

// NewImageCache wraps the image tier storage.
func NewImageCache(store Storage) *ImageCache {
	return &ImageCache{store: store, now: time.Now}
}

// Serve returns a cached image for req.Key or calls render and stores the
// result. When caching is disabled the rendered bytes are returned with
// no-store headers and nothing is written.
func (c *ImageCache) Serve(ctx context.Context, req ImageRequest, render func(context.Context) ([]byte, error)) (*ImageResult, error) {
	enabled := req.Enabled && req.TTL > 0
	if enabled && req.Purge {
		if err := c.store.Remove(ctx, req.Key); err != nil {
			return nil, fmt.Errorf("purge %s: %w", req.Key, err)
		}
	}
	if enabled && !req.Purge {
		if e, ok := c.lookup(ctx, req.Key); ok {
			if data, err := e.Bytes(); err == nil {
				return &ImageResult{Data: data, Headers: e.Headers, Hit: true}, nil
			}
		}
	}

	data, err := render(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return &ImageResult{Data: data, Headers: NoStoreHeaders()}, nil
	}

	now := c.now()
	e := &ImageEntry{
		Data:      base64.StdEncoding.EncodeToString(data),
		Headers:   CacheHeaders(data, req.TTL, now),
		ExpiresAt: now.Add(req.TTL),
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, req.Key, raw, req.TTL); err != nil {
		return nil, fmt.Errorf("store %s: %w", req.Key, err)
	}
	return &ImageResult{Data: data, Headers: e.Headers}, nil
}

// lookup treats unreadable or expired entries as misses.
func (c *ImageCache) lookup(ctx context.Context, key string) (*ImageEntry, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var e ImageEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		_ = c.store.Remove(ctx, key)
		return nil, false
	}
	if !e.ExpiresAt.IsZero() && c.now().After(e.ExpiresAt) {
		_ = c.store.Remove(ctx, key)
		return nil, false
	}
	return &e, true
}

// CacheHeaders builds the validator and cache-control headers for data.
func CacheHeaders(data []byte, ttl time.Duration, now time.Time) map[string]string {
	return map[string]string{
		"ETag":          WeakETag(data),
		"Last-Modified": now.UTC().Format(http.TimeFormat),
		"Cache-Control": fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate", int(ttl.Seconds())),
	}
}

// NoStoreHeaders are sent when caching is disabled.
func NoStoreHeaders() map[string]string {
	return map[string]string{
		"Cache-Control": "no-cache, no-store, must-revalidate",
		"Pragma":        "no-cache",
		"Expires":       "0",
	}
}

// WeakETag returns a weak validator derived from the content hash.
func WeakETag(data []byte) string {
	return `W/"` + Hash(data)[:16] + `"`
}

// NotModified reports whether the request's conditional headers match the
// stored validators, in which case a 304 can be sent.
func NotModified(r *http.Request, headers map[string]string) bool {
	etag := headers["ETag"]
	if inm := r.Header.Get("If-None-Match"); inm != "" && etag != "" {
		for _, candidate := range strings.Split(inm, ",") {
			candidate = strings.TrimSpace(candidate)
			if candidate == "*" || strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
				return true
			}
		}
		return false
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		since, err := http.ParseTime(ims)
		if err != nil {
			return false
		}
		lm, err := http.ParseTime(headers["Last-Modified"])
		if err != nil {
			return false
		}
		return !lm.After(since)
	}
	return false
}
