package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

var errNoDriver = errors.New("no remote endpoint configured and no local browser found")

// connect probes for a driver and connects to it. A configured remote
// endpoint wins; otherwise a local browser is launched.
func (r *Renderer) connect(context.Context) (*rod.Browser, error) {
	u, err := r.controlURL()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	return b, nil
}

func (r *Renderer) controlURL() (string, error) {
	if r.cfg.RemoteURL != "" {
		u, err := launcher.ResolveURL(r.cfg.RemoteURL)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", r.cfg.RemoteURL, err)
		}
		if !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
			return "", fmt.Errorf("resolve %s: no devtools websocket advertised", r.cfg.RemoteURL)
		}
		r.logger.Info("connecting to remote browser", "url", r.cfg.RemoteURL)
		return u, nil
	}

	bin := r.cfg.Bin
	if bin == "" {
		path, ok := launcher.LookPath()
		if !ok {
			return "", errNoDriver
		}
		bin = path
	}
	l := launcher.New().Bin(bin).Headless(true)
	if r.cfg.NoSandbox || os.Getenv("CI") == "true" {
		l = l.NoSandbox(true)
	}
	r.logger.Info("launching browser", "bin", bin)
	return l.Launch()
}

// watch blocks until the browser's event stream ends, then drops the shared
// handle if it still points at b.
func (r *Renderer) watch(b *rod.Browser) {
	for range b.Event() {
	}
	if r.browser.ResetIf(func(cur *rod.Browser) bool { return cur == b }) {
		r.logger.Warn("browser disconnected, will reconnect on next render")
	}
}
