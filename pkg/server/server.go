// Package server exposes the render pipeline over HTTP.
//
// Routes:
//
//	GET /<base>/image/<renderer>/og.<ext>   runtime image, cache-aware
//	GET /<base>/static/<renderer>/og.<ext>  prerendered variant
//	GET /<base>/debug.json                  diagnostics (dev or debug only)
//	GET /_og/<d|s>/<encoded>.<ext>          compact form
//	GET /healthz                            liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/ogforge/pkg/cache"
	ogerrors "github.com/matzehuels/ogforge/pkg/errors"
	"github.com/matzehuels/ogforge/pkg/pipeline"
	"github.com/matzehuels/ogforge/pkg/render"
	"github.com/matzehuels/ogforge/pkg/resolver"
)

// Debug headers, sent in dev and debug mode.
const (
	HeaderCacheKey = "X-OG-Image-Cache-Key"
	HeaderBase     = "X-OG-Image-Base"
	HeaderEnabled  = "X-OG-Image-Enabled"
)

// =============================================================================
// Default Values - Single Source of Truth
// =============================================================================

const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second
)

// Server serves images from a runner.
type Server struct {
	runner *pipeline.Runner
	logger *log.Logger
	// verbose exposes error messages, debug headers and debug.json.
	verbose bool
}

// New returns a server for runner.
func New(runner *pipeline.Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Server{runner: runner, logger: logger, verbose: runner.Config.ShowErrors()}
}

// Handler returns the router with its middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	r.Get(resolver.CompactPrefix+"*", s.image)
	r.Get("/*", s.route)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down", "addr", addr)
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, resolver.DebugSuffix) {
		s.debug(w, r)
		return
	}
	s.image(w, r)
}

func (s *Server) image(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc, err := s.runner.Resolve(ctx, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.runner.Render(ctx, rc)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	for k, v := range res.Headers {
		h.Set(k, v)
	}
	if s.verbose {
		s.debugHeaders(h, rc)
	}
	if cache.NotModified(r, res.Headers) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	_, _ = w.Write(res.Data)
}

func (s *Server) debug(w http.ResponseWriter, r *http.Request) {
	if !s.verbose {
		s.fail(w, r, ogerrors.NotFound("debug output is disabled"))
		return
	}
	ctx := r.Context()
	rc, err := s.runner.Resolve(ctx, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.runner.Debug(ctx, rc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	h := w.Header()
	s.debugHeaders(h, rc)
	for k, v := range cache.NoStoreHeaders() {
		h.Set(k, v)
	}
	h.Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(d)
}

func (s *Server) debugHeaders(h http.Header, rc *render.Context) {
	enabled := rc.Mode.ProductionLike() && rc.Options.CacheMaxAgeSeconds > 0
	h.Set(HeaderCacheKey, rc.Key)
	h.Set(HeaderBase, rc.BasePath)
	h.Set(HeaderEnabled, strconv.FormatBool(enabled))
}

// fail writes err with its mapped status. Outside dev and debug mode only
// the status text is sent.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := ogerrors.HTTPStatus(err)
	fields := []any{"path", r.URL.Path, "status", status, "request_id", w.Header().Get(resolver.RequestIDHeader), "error", err}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Warn("request rejected", fields...)
	}

	msg := http.StatusText(status)
	if s.verbose {
		msg = ogerrors.UserMessage(err)
	}
	h := w.Header()
	for k, v := range cache.NoStoreHeaders() {
		h.Set(k, v)
	}
	http.Error(w, msg, status)
}

// requestID ensures every request carries a uuid in X-Request-Id, on the
// request, the response and the chi request context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(resolver.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(resolver.RequestIDHeader, id)
		}
		w.Header().Set(resolver.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
