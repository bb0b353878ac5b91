package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ogforge/pkg/buildinfo"
	"github.com/matzehuels/ogforge/pkg/cache"
	"github.com/matzehuels/ogforge/pkg/config"
	"github.com/matzehuels/ogforge/pkg/emoji"
	ogerrors "github.com/matzehuels/ogforge/pkg/errors"
	"github.com/matzehuels/ogforge/pkg/fonts"
	"github.com/matzehuels/ogforge/pkg/httputil"
	"github.com/matzehuels/ogforge/pkg/islands"
	"github.com/matzehuels/ogforge/pkg/options"
	"github.com/matzehuels/ogforge/pkg/render"
	"github.com/matzehuels/ogforge/pkg/render/browser"
	"github.com/matzehuels/ogforge/pkg/render/raster"
	"github.com/matzehuels/ogforge/pkg/render/vector"
	"github.com/matzehuels/ogforge/pkg/resolver"
	"github.com/matzehuels/ogforge/pkg/transform"
)

// Runner encapsulates render execution with caching.
// Both the server and the CLI use it so caching behaves the same everywhere.
//
// The Runner holds only process-lifetime state (caches, backends, resolvers)
// and is safe for concurrent use.
type Runner struct {
	Config     *config.Config
	Tiers      *cache.Tiers
	Images     *cache.ImageCache
	Builds     *cache.BuildCache
	Registry   *render.Registry
	Resolver   *resolver.Resolver
	Islands    islands.Renderer
	Fonts      *fonts.Resolver
	Transforms *transform.Pipeline
	Logger     *log.Logger

	// hasher fingerprints components for build-cache keys.
	hasher  islands.Hasher
	preload []options.FontSpec
	closers []io.Closer
}

// NewRunner wires every collaborator from cfg: cache tiers, build cache,
// fonts, emoji, islands, transforms, backends and the resolver.
func NewRunner(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Runner, error) {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	tiers, err := cache.NewTiers(ctx, cfg.Tiers())
	if err != nil {
		return nil, err
	}
	builds, err := cache.NewBuildCache(cfg.BuildDir())
	if err != nil {
		tiers.Close()
		return nil, err
	}

	client := httputil.NewClient(httputil.DefaultTimeout)
	fontResolver := fonts.NewResolver(tiers.Fonts, logger, fonts.DirLoader{Dir: cfg.Fonts.Dir}, fonts.HTTPLoader{Client: client})
	fontResolver.Keyer = tiers.Keyer

	emojiResolver := emoji.NewResolver(emoji.Config{
		Bundled: cfg.Emoji.Bundled,
		Remote:  cfg.Emoji.Remote,
		APIBase: cfg.Emoji.APIBase,
		Storage: tiers.Emoji,
		Keyer:   tiers.Keyer,
		Client:  client,
		Logger:  logger,
	})

	classes := transform.BuiltinClasses()
	if cfg.Render.ClassMap != "" {
		loaded, err := transform.LoadClassMap(cfg.Render.ClassMap)
		if err != nil {
			tiers.Close()
			return nil, err
		}
		classes = classes.Merge(loaded)
	}
	breakpoints := transform.DefaultBreakpoints()
	for name, px := range cfg.Render.Breakpoints {
		breakpoints[name] = px
	}

	templates := islands.NewTemplateRenderer(cfg.Islands.TemplateDir, cfg.Mode == render.ModeDev)
	var components islands.Renderer = templates
	if cfg.Islands.Endpoint != "" {
		components = islands.Chain(islands.NewHTTPRenderer(cfg.Islands.Endpoint, client), templates)
	}

	r := &Runner{
		Config:   cfg,
		Tiers:    tiers,
		Images:   cache.NewImageCache(tiers.Image),
		Builds:   builds,
		Registry: render.NewRegistry(),
		Islands:  components,
		Fonts:    fontResolver,
		Transforms: transform.NewPipeline(
			transform.Sync(transform.Entities{}),
			transform.Sync(transform.NewDirectives(classes, breakpoints)),
			transform.Async(transform.NewImages(cfg.PublicDir, client)),
			transform.Async(transform.NewEmoji(emojiResolver)),
		),
		Logger:  logger,
		hasher:  templates,
		preload: cfg.Fonts.Preload,
	}

	preloaded := fontResolver.Resolve(ctx, cfg.Fonts.Preload)
	for _, name := range cfg.Render.Renderers {
		switch name {
		case vector.Name:
			r.Registry.Register(vector.New(client))
		case raster.Name:
			r.Registry.Register(raster.New(preloaded, client))
		case browser.Name:
			b := browser.New(browser.Config{
				RemoteURL: cfg.Browser.RemoteURL,
				Bin:       cfg.Browser.Bin,
				NoSandbox: cfg.Browser.NoSandbox,
			}, logger)
			r.Registry.Register(b)
			r.closers = append(r.closers, b)
		}
	}
	r.Resolver = resolver.New(cfg, r.Registry, tiers, client, logger)
	return r, nil
}

// Resolve builds the render context for req and attaches fonts and the
// tree builder.
func (r *Runner) Resolve(ctx context.Context, req *http.Request) (*render.Context, error) {
	rc, err := r.Resolver.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	r.Prepare(ctx, rc)
	return rc, nil
}

// Prepare attaches fonts and the tree builder to a resolved context.
func (r *Runner) Prepare(ctx context.Context, rc *render.Context) {
	specs := append(append([]options.FontSpec(nil), rc.Options.Fonts...), r.preload...)
	rc.Fonts = r.Fonts.Resolve(ctx, specs)
	rc.Build = r.BuildTree
}

// Render produces the image for rc through the image tier and
// the build cache.
func (r *Runner) Render(ctx context.Context, rc *render.Context) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	res := &Result{ContentType: options.ContentType(rc.Extension)}

	img, err := r.Images.Serve(ctx, cache.ImageRequest{
		Key:     rc.Key,
		TTL:     time.Duration(rc.Options.CacheMaxAgeSeconds) * time.Second,
		Purge:   rc.Purge,
		Enabled: rc.Mode.ProductionLike(),
	}, func(ctx context.Context) ([]byte, error) {
		data, hit, err := r.dispatch(ctx, rc)
		res.CacheInfo.BuildHit = hit
		return data, err
	})
	if err != nil {
		return nil, err
	}
	res.Data = img.Data
	res.Headers = img.Headers
	res.CacheInfo.ImageHit = img.Hit
	res.Stats.RenderTime = time.Since(start)
	res.Stats.Size = len(img.Data)

	rc.Log().Info("served image",
		"path", rc.BasePath,
		"renderer", rc.Renderer.Name(),
		"key", rc.Key,
		"cached", res.CacheInfo.Hit(),
		"size", res.Stats.Size,
		"duration", res.Stats.RenderTime)
	return res, nil
}

// Debug returns the diagnostics for rc without touching any cache.
func (r *Runner) Debug(ctx context.Context, rc *render.Context) (*render.Diagnostics, error) {
	d, err := rc.Renderer.Debug(context.WithoutCancel(ctx), rc)
	if err != nil {
		return nil, renderFailure(err, rc)
	}
	d.Warnings = rc.Warnings()
	return d, nil
}

// dispatch runs the backend, consulting the build cache for static routes
// and prerender runs. Purge skips the build-cache read.
func (r *Runner) dispatch(ctx context.Context, rc *render.Context) ([]byte, bool, error) {
	useBuild := r.Builds != nil && (rc.Static || rc.Mode == render.ModePrerender)
	var key string
	if useBuild {
		key = r.BuildKey(rc)
	}
	if useBuild && !rc.Purge {
		if data, ok, err := r.Builds.Get(key, rc.Extension); err != nil {
			rc.Log().Warn("build cache read failed", "path", rc.BasePath, "error", err)
		} else if ok {
			rc.Log().Debug("build cache hit", "path", rc.BasePath, "key", key)
			return data, true, nil
		}
	}

	name := rc.Renderer.Name()
	hooks := rc.Emitter()
	hooks.OnRenderStart(ctx, name, rc.BasePath)
	start := time.Now()
	data, err := rc.Renderer.CreateImage(ctx, rc)
	hooks.OnRenderComplete(ctx, name, rc.BasePath, len(data), time.Since(start), err)
	if err != nil {
		err = renderFailure(err, rc)
		rc.Log().Error("render failed", "path", rc.BasePath, "renderer", name, "error", err)
		return nil, false, err
	}

	if useBuild {
		ttl := time.Duration(rc.Options.CacheMaxAgeSeconds) * time.Second
		if err := r.Builds.Set(key, rc.Extension, data, ttl); err != nil {
			rc.Log().Warn("build cache write failed", "path", rc.BasePath, "error", err)
		}
	}
	return data, false, nil
}

// BuildKey is the build-cache key of rc: its options, the component source
// and the build's cache version.
func (r *Runner) BuildKey(rc *render.Context) string {
	var componentHash string
	if r.hasher != nil {
		componentHash = r.hasher.ComponentHash(component(rc.Options))
	}
	return cache.BuildKey(rc.Options.Hash(), componentHash, buildinfo.Get().CacheVersion())
}

// renderFailure keeps coded errors and wraps everything else as a render
// failure naming the page and backend.
func renderFailure(err error, rc *render.Context) error {
	if ogerrors.GetCode(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ogerrors.Wrap(ogerrors.ErrCodeRender, err, "render %s timed out", rc.BasePath)
	}
	name := "unknown"
	if rc.Renderer != nil {
		name = rc.Renderer.Name()
	}
	return ogerrors.Wrap(ogerrors.ErrCodeRender, err, "render %s with %s", rc.BasePath, name)
}

// Close releases backends and cache connections.
func (r *Runner) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	if r.Tiers != nil {
		errs = append(errs, r.Tiers.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close runner: %w", err)
	}
	return nil
}
