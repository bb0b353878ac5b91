package render

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ogforge/pkg/fonts"
	"github.com/matzehuels/ogforge/pkg/node"
	"github.com/matzehuels/ogforge/pkg/observability"
	"github.com/matzehuels/ogforge/pkg/options"
)

// Mode is the operating mode of the process.
type Mode string

const (
	ModeRuntime   Mode = "runtime"
	ModePrerender Mode = "prerender"
	ModeDev       Mode = "dev"
)

// ProductionLike reports whether image caching applies in this mode.
func (m Mode) ProductionLike() bool { return m != ModeDev }

// TreeBuilder produces the transformed node tree for a context.
type TreeBuilder func(ctx context.Context, rc *Context) (*node.Node, error)

// ErrNoBuilder is returned by Context.Tree when no builder was injected.
var ErrNoBuilder = errors.New("render context has no tree builder")

// Context carries everything one render needs.
type Context struct {
	Request   *http.Request
	RequestID string
	Key       string
	BasePath  string
	Extension string
	Options   *options.Options
	Renderer  Renderer
	Mode      Mode
	SiteURL   string
	// Static marks the prerendered route variant.
	Static bool
	// Purge forces eviction of the cached image.
	Purge bool

	Hooks  observability.RenderHooks
	Logger *log.Logger
	Fonts  []*fonts.Font
	Build  TreeBuilder

	emojiSeq atomic.Int64
	mu       sync.Mutex
	warnings []string
}

// Log returns the context logger, or a discard logger.
func (rc *Context) Log() *log.Logger {
	if rc.Logger == nil {
		rc.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return rc.Logger
}

// Emitter returns the hooks captured at creation, falling back to the
// registered ones.
func (rc *Context) Emitter() observability.RenderHooks {
	if rc.Hooks == nil {
		rc.Hooks = observability.Render()
	}
	return rc.Hooks
}

// Tree runs the injected builder.
func (rc *Context) Tree(ctx context.Context) (*node.Node, error) {
	if rc.Build == nil {
		return nil, ErrNoBuilder
	}
	return rc.Build(ctx, rc)
}

// NextEmojiID returns a render-local sequence number for emoji id namespaces.
func (rc *Context) NextEmojiID() int {
	return int(rc.emojiSeq.Add(1))
}

// Warn records a non-fatal diagnostic and relays it through the hooks.
func (rc *Context) Warn(ctx context.Context, msg string, keyvals ...any) {
	rc.mu.Lock()
	rc.warnings = append(rc.warnings, msg)
	rc.mu.Unlock()
	rc.Log().Warn(msg, append([]any{"path", rc.BasePath}, keyvals...)...)
	rc.Emitter().OnWarning(ctx, rc.BasePath, msg)
}

// Warnings returns the diagnostics recorded so far.
func (rc *Context) Warnings() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]string(nil), rc.warnings...)
}

// Width and Height are the final canvas size.
func (rc *Context) Width() int  { return rc.Options.Width }
func (rc *Context) Height() int { return rc.Options.Height }
