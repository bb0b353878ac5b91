// Package browser is the screenshot backend. It drives a headless Chromium
// through go-rod, loads either literal HTML, a URL, or a document built from
// the transformed tree, and captures the viewport or one element.
//
// The browser connection is a process-lifetime handle. It is created on the
// first render, shared by every later one, and dropped when the browser
// disconnects so the next render reconnects or relaunches.
package browser

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"

	"github.com/matzehuels/ogforge/pkg/render"
)

// Name is the registry name of this backend.
const Name = "browser"

// =============================================================================
// Default Values - Single Source of Truth
// =============================================================================

const (
	// DefaultNavigationTimeout bounds page load and network idle.
	DefaultNavigationTimeout = 15 * time.Second
	// DefaultCaptureTimeout bounds the screenshot call.
	DefaultCaptureTimeout = 15 * time.Second
	// JPEGQuality is the capture quality for jpeg output.
	JPEGQuality = 90
)

// idleWindow is how long the network must be quiet before capture.
const idleWindow = 500 * time.Millisecond

// Sentinel errors.
var (
	ErrBrowserConnect = errors.New("browser connection failed")
	ErrPageCreate     = errors.New("page creation failed")
	ErrPageLoad       = errors.New("page load failed")
	ErrCapture        = errors.New("screenshot failed")
)

// Config selects and tunes the browser driver.
type Config struct {
	// RemoteURL is a DevTools endpoint (http://host:9222 or ws://...). When
	// set it is used instead of launching a local browser.
	RemoteURL string
	// Bin is the local browser binary. Empty looks one up on the system.
	Bin string
	// NoSandbox disables the Chromium sandbox, needed in most containers.
	NoSandbox bool

	NavigationTimeout time.Duration
	CaptureTimeout    time.Duration
}

// Renderer implements [render.Renderer].
type Renderer struct {
	cfg     Config
	logger  *log.Logger
	browser *render.Lazy[*rod.Browser]
}

var _ render.Renderer = (*Renderer)(nil)

// New returns the screenshot backend. No browser is started until the
// first render.
func New(cfg Config, logger *log.Logger) *Renderer {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = DefaultCaptureTimeout
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	r := &Renderer{cfg: cfg, logger: logger}
	r.browser = render.NewLazy(r.connect).OnReady(func(b *rod.Browser) { go r.watch(b) })
	return r
}

func (r *Renderer) Name() string { return Name }

func (r *Renderer) SupportedFormats() []string { return []string{"png", "jpeg"} }

func (r *Renderer) CreateImage(ctx context.Context, rc *render.Context) ([]byte, error) {
	if err := render.CheckFormat(r, rc.Extension); err != nil {
		return nil, err
	}
	t, err := resolveTarget(ctx, rc)
	if err != nil {
		return nil, err
	}
	b, err := r.browser.Get(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	data, err := r.capture(ctx, b, t, rc)
	if err != nil {
		return nil, err
	}
	rc.Log().Debug("captured screenshot", "path", rc.BasePath, "source", t.source, "duration", time.Since(start))
	return data, nil
}

// Debug describes the capture without starting a browser.
func (r *Renderer) Debug(ctx context.Context, rc *render.Context) (*render.Diagnostics, error) {
	t, err := resolveTarget(ctx, rc)
	if err != nil {
		return nil, err
	}
	d := render.NewDiagnostics(rc)
	d.Tree = t.tree
	d.Output = t.info(rc)
	return d, nil
}

// Close shuts down the shared browser, if one is running.
func (r *Renderer) Close() error {
	if b, ok := r.browser.Reset(); ok {
		return b.Close()
	}
	return nil
}
