package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ogforge/pkg/observability"
)

// logHooks reports pipeline events as debug log lines, so --verbose shows
// every cache tier hit and outgoing request.
type logHooks struct {
	logger *log.Logger
}

var (
	_ observability.RenderHooks = logHooks{}
	_ observability.CacheHooks  = logHooks{}
	_ observability.HTTPHooks   = logHooks{}
)

// registerHooks installs logHooks for every hook category.
func registerHooks(l *log.Logger) {
	h := logHooks{logger: l.WithPrefix("hooks")}
	observability.SetRenderHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

func (h logHooks) OnContextResolved(_ context.Context, path, renderer, key string) {
	h.logger.Debug("context resolved", "path", path, "renderer", renderer, "key", key)
}

func (h logHooks) OnRenderStart(_ context.Context, renderer, path string) {
	h.logger.Debug("render start", "path", path, "renderer", renderer)
}

func (h logHooks) OnRenderComplete(_ context.Context, renderer, path string, size int, duration time.Duration, err error) {
	if err != nil {
		h.logger.Debug("render failed", "path", path, "renderer", renderer, "duration", duration, "error", err)
		return
	}
	h.logger.Debug("render complete", "path", path, "renderer", renderer, "size", size, "duration", duration)
}

func (h logHooks) OnWarning(_ context.Context, path, message string) {
	h.logger.Debug("warning", "path", path, "message", message)
}

func (h logHooks) OnCacheHit(_ context.Context, tier string) {
	h.logger.Debug("cache hit", "tier", tier)
}

func (h logHooks) OnCacheMiss(_ context.Context, tier string) {
	h.logger.Debug("cache miss", "tier", tier)
}

func (h logHooks) OnCacheSet(_ context.Context, tier string, size int) {
	h.logger.Debug("cache set", "tier", tier, "size", size)
}

func (h logHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h logHooks) OnResponse(_ context.Context, method, host, path string, statusCode int, duration time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", statusCode, "duration", duration)
}

func (h logHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "error", err)
}
