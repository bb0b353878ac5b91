// Package emoji detects Unicode emoji in text and resolves them to inline SVG
// icons from an Iconify icon set.
//
// Resolution tries each candidate name in order and stops at the first hit:
// the emoji cache tier, then the icon set bundled with the binary (when
// enabled), then the remote Iconify API. A literal "404" body from the API
// is a miss. Hits are cached under (set, name) with no expiry.
package emoji

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ogforge/pkg/cache"
	"github.com/matzehuels/ogforge/pkg/httputil"
)

// =============================================================================
// Default Values - Single Source of Truth
// =============================================================================

const (
	DefaultSet        = "noto"
	DefaultAPIBase    = "https://api.iconify.design"
	DefaultRetries    = 3
	DefaultRetryDelay = 200 * time.Millisecond
	DefaultTimeout    = 10 * time.Second
)

// Config configures a [Resolver].
type Config struct {
	// Bundled enables the embedded icon sets.
	Bundled bool
	// Remote enables the Iconify API.
	Remote bool
	// APIBase overrides the Iconify endpoint.
	APIBase string
	// Storage is the emoji cache tier; nil uses a process-local map.
	Storage cache.Storage
	Keyer   cache.Keyer
	Client  *httputil.Client
	Retries int
	Logger  *log.Logger
}

// Resolver maps emoji to SVG documents.
type Resolver struct {
	cfg Config
}

// NewResolver applies defaults and returns a resolver.
func NewResolver(cfg Config) *Resolver {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Storage == nil {
		cfg.Storage = cache.NewMemoryStorage()
	}
	if cfg.Keyer == nil {
		cfg.Keyer = cache.NewDefaultKeyer()
	}
	if cfg.Client == nil {
		cfg.Client = httputil.NewClient(DefaultTimeout)
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Resolver{cfg: cfg}
}

// Resolve returns the SVG for emoji from set. ok is false when no candidate
// resolves; lookup failures never surface as errors.
func (r *Resolver) Resolve(ctx context.Context, set, emoji string) (svg string, ok bool) {
	if set == "" {
		set = DefaultSet
	}
	for _, name := range Candidates(emoji) {
		if svg, ok := r.resolveName(ctx, set, name); ok {
			return svg, true
		}
	}
	return "", false
}

func (r *Resolver) resolveName(ctx context.Context, set, name string) (string, bool) {
	key := r.cfg.Keyer.EmojiKey(set, name)
	if data, ok, err := r.cfg.Storage.Get(ctx, key); err == nil && ok {
		return string(data), true
	}

	svg, ok := "", false
	if r.cfg.Bundled {
		svg, ok = bundled.lookup(set, name)
	}
	if !ok && r.cfg.Remote {
		svg, ok = r.fetch(ctx, set, name)
	}
	if !ok {
		return "", false
	}
	if err := r.cfg.Storage.Set(ctx, key, []byte(svg), 0); err != nil {
		r.cfg.Logger.Warn("emoji cache write failed", "key", key, "error", err)
	}
	return svg, true
}

func (r *Resolver) fetch(ctx context.Context, set, name string) (string, bool) {
	url := fmt.Sprintf("%s/%s/%s.svg", strings.TrimSuffix(r.cfg.APIBase, "/"), set, name)
	resp, err := r.cfg.Client.FetchWithRetry(ctx, url, r.cfg.Retries, DefaultRetryDelay)
	if err != nil {
		r.cfg.Logger.Debug("emoji fetch failed", "url", url, "error", err)
		return "", false
	}
	body := strings.TrimSpace(string(resp.Body))
	if !resp.OK() || body == "404" || !strings.HasPrefix(body, "<svg") {
		return "", false
	}
	return body, true
}
