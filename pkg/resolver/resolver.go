// Package resolver turns an image request into a render context.
//
// Resolution parses the route variant from the path, collects the options
// layers and merges them, highest precedence first:
//
//  1. query overrides (individual parameters)
//  2. the options source: an explicit "options" query blob or compact
//     segment, else options stored by a prerender run, else the payload
//     embedded in the origin page
//  3. the route rule matching the page
//  4. the configured defaults, then the built-in defaults
//
// The renderer named by the path (or the options) must be registered and
// allowed on the deployment target.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/ogforge/pkg/cache"
	"github.com/matzehuels/ogforge/pkg/config"
	ogerrors "github.com/matzehuels/ogforge/pkg/errors"
	"github.com/matzehuels/ogforge/pkg/httputil"
	"github.com/matzehuels/ogforge/pkg/observability"
	"github.com/matzehuels/ogforge/pkg/options"
	"github.com/matzehuels/ogforge/pkg/render"
	"github.com/matzehuels/ogforge/pkg/urlcodec"
)

// Reserved query parameters; every other parameter is an override.
const (
	QueryOptions = "options"
	QueryPurge   = "purge"
	QueryPath    = "path"
)

// RequestIDHeader carries the request id set by the server.
const RequestIDHeader = "X-Request-Id"

// Resolver builds render contexts. It is safe for concurrent use.
type Resolver struct {
	cfg      *config.Config
	registry *render.Registry
	tiers    *cache.Tiers
	client   *httputil.Client
	logger   *log.Logger
}

// New creates a resolver. Nil tiers use memory storage, a nil client uses
// the default fetch timeout and a nil logger discards output.
func New(cfg *config.Config, registry *render.Registry, tiers *cache.Tiers, client *httputil.Client, logger *log.Logger) *Resolver {
	if tiers == nil {
		tiers = cache.MemoryTiers()
	}
	if client == nil {
		client = httputil.NewClient(httputil.DefaultTimeout)
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Resolver{cfg: cfg, registry: registry, tiers: tiers, client: client, logger: logger}
}

// Resolve parses req and returns its render context. The context has no
// fonts and no tree builder yet.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*render.Context, error) {
	target, err := ParsePath(requestPath(req.URL))
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	if target.Kind == KindCompact && q.Get(QueryPath) != "" {
		target.BasePath = cleanBase(q.Get(QueryPath))
	}

	// A renderer named by the path is checked before any option is fetched.
	if target.Renderer != "" {
		if _, err := r.formatRenderer(target.Renderer, target.Extension); err != nil {
			return nil, err
		}
	}

	rule, hasRule := r.cfg.Route(target.BasePath)
	if hasRule && rule.Disabled {
		return nil, ogerrors.NotFound("images are disabled for %s", target.BasePath)
	}

	source, err := r.source(ctx, target, q)
	if err != nil {
		return nil, err
	}
	if source == nil && !hasRule {
		return nil, ogerrors.BadRequest("no options for %s", target.BasePath)
	}

	merged := options.Merge(overrides(q), source, rule.Options, r.cfg.Defaults, options.Defaults())
	opts, err := options.FromRaw(merged)
	if err != nil {
		return nil, ogerrors.BadRequest("invalid options: %v", err)
	}
	if target.Renderer != "" {
		opts.Renderer = target.Renderer
	}
	if target.Extension != "" {
		opts.Extension = target.Extension
	}
	if err := opts.Validate(); err != nil {
		return nil, ogerrors.BadRequest("invalid options: %v", err)
	}

	var renderer render.Renderer
	if target.Kind == KindDebug {
		renderer, err = r.renderer(opts.Renderer)
	} else {
		renderer, err = r.formatRenderer(opts.Renderer, opts.Extension)
	}
	if err != nil {
		return nil, err
	}

	id := req.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	rc := &render.Context{
		Request:   req,
		RequestID: id,
		Key:       r.tiers.Keyer.ImageKey(target.BasePath, r.cfg.SiteURL, queryHash(target, opts, q)),
		BasePath:  target.BasePath,
		Extension: opts.Extension,
		Options:   opts,
		Renderer:  renderer,
		Mode:      r.cfg.Mode,
		SiteURL:   r.cfg.SiteURL,
		Static:    target.Static,
		Purge:     q.Has(QueryPurge),
		Hooks:     observability.Render(),
		Logger:    r.logger.With("request_id", id),
	}
	rc.Log().Debug("resolved context", "path", rc.BasePath, "renderer", opts.Renderer, "key", rc.Key, "route", target.Kind)
	rc.Emitter().OnContextResolved(ctx, rc.BasePath, opts.Renderer, rc.Key)
	return rc, nil
}

// requestPath is the path ParsePath should see. Compact segments keep their
// percent escapes because the codec owns them: a decoded "%2C" would read as
// a token separator.
func requestPath(u *url.URL) string {
	if escaped := u.EscapedPath(); strings.HasPrefix(escaped, CompactPrefix) {
		return escaped
	}
	return u.Path
}

// source returns the highest-precedence options source, or nil when there
// is none.
func (r *Resolver) source(ctx context.Context, t Target, q url.Values) (options.Raw, error) {
	if blob := q.Get(QueryOptions); blob != "" {
		raw, err := options.ParseJSON([]byte(blob))
		if err != nil {
			return nil, ogerrors.BadRequest("invalid options query: %v", err)
		}
		return raw, nil
	}
	if t.Kind == KindCompact {
		raw, hash, err := urlcodec.Decode(t.Segment)
		if err != nil {
			return nil, ogerrors.BadRequest("%v", err)
		}
		if hash == "" {
			return raw, nil
		}
		stored, ok, err := r.recalled(ctx, hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ogerrors.NotFound("unknown options hash %s", hash)
		}
		return stored, nil
	}

	if stored, ok, err := r.recalled(ctx, t.BasePath); err != nil {
		return nil, err
	} else if ok {
		return stored, nil
	}
	return r.payload(ctx, t.BasePath, q)
}

// payload returns the page payload, through the payload cache.
func (r *Resolver) payload(ctx context.Context, basePath string, q url.Values) (options.Raw, error) {
	if r.cfg.OriginURL() == "" {
		return nil, nil
	}
	key := r.tiers.Keyer.PayloadKey(basePath, r.cfg.SiteURL, urlcodec.Hash(map[string]any{"query": queryParams(q)}))
	if data, ok, err := r.tiers.Payload.Get(ctx, key); err == nil && ok {
		if raw, err := options.ParseJSON(data); err == nil {
			return raw, nil
		}
	}

	raw, err := r.fetchPayload(ctx, basePath)
	if errors.Is(err, ErrNoMarker) {
		if _, ok := r.cfg.Route(basePath); ok {
			r.logger.Warn("page has no options, using route rule", "path", basePath)
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(raw); err == nil {
		if err := r.tiers.Payload.Set(ctx, key, data, r.payloadTTL()); err != nil {
			r.logger.Warn("payload cache write failed", "path", basePath, "error", err)
		}
	}
	return raw, nil
}

func (r *Resolver) payloadTTL() time.Duration {
	if r.cfg.Mode == render.ModePrerender {
		return cache.PayloadTTLPrerender
	}
	return cache.PayloadTTLRuntime
}

// Remember stores options under id (a page path or an options hash) for
// the rest of the process, taking precedence over page payloads.
func (r *Resolver) Remember(ctx context.Context, id string, raw options.Raw) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return r.tiers.Prerender.Set(ctx, r.tiers.Keyer.PrerenderKey(id), data, 0)
}

func (r *Resolver) recalled(ctx context.Context, id string) (options.Raw, bool, error) {
	data, ok, err := r.tiers.Prerender.Get(ctx, r.tiers.Keyer.PrerenderKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	raw, err := options.ParseJSON(data)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// CompactURL returns the compact URL for raw. Options too long for a path
// segment are remembered under their hash so the URL stays resolvable.
func (r *Resolver) CompactURL(ctx context.Context, raw options.Raw, ext string, static bool) (string, error) {
	segment, hash := urlcodec.Encode(raw)
	if hash != "" {
		if err := r.Remember(ctx, hash, raw); err != nil {
			return "", err
		}
	}
	variant := "d"
	if static {
		variant = "s"
	}
	return CompactPrefix + variant + "/" + segment + "." + ext, nil
}

// formatRenderer returns the renderer called name if it can produce ext.
func (r *Resolver) formatRenderer(name, ext string) (render.Renderer, error) {
	renderer, err := r.renderer(name)
	if err != nil {
		return nil, err
	}
	if err := render.CheckFormat(renderer, ext); err != nil {
		return nil, err
	}
	return renderer, nil
}

func (r *Resolver) renderer(name string) (render.Renderer, error) {
	if !render.Compatible(r.cfg.Target, name) {
		return nil, ogerrors.BadRequest("renderer %q is not available on target %q", name, r.cfg.Target)
	}
	renderer, ok := r.registry.Get(name)
	if !ok {
		return nil, ogerrors.BadRequest("renderer %q is not enabled (enabled: %v)", name, r.registry.Names())
	}
	return renderer, nil
}

// optionParams are query parameters that set top-level options rather than
// props.
var optionParams = map[string]bool{
	"width": true, "height": true, "component": true, "renderer": true,
	"emojis": true, "colorMode": true, "cacheMaxAgeSeconds": true,
}

// overrides turns the non-reserved query parameters into a layer.
func overrides(q url.Values) options.Raw {
	out := options.Raw{}
	props := map[string]any{}
	for k, vs := range q {
		if k == QueryOptions || k == QueryPurge || k == QueryPath || len(vs) == 0 {
			continue
		}
		v := vs[len(vs)-1]
		if optionParams[k] {
			out[k] = coerce(v)
		} else {
			props[k] = v
		}
	}
	if len(props) > 0 {
		out["props"] = props
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func coerce(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}

// queryHash digests everything about the request that changes the image
// other than the page itself.
func queryHash(t Target, opts *options.Options, q url.Values) string {
	return urlcodec.Hash(map[string]any{
		"query":     queryParams(q),
		"renderer":  opts.Renderer,
		"extension": opts.Extension,
		"static":    t.Static,
		"segment":   t.Segment,
	})
}

// queryParams are the parameters that identify a request; purge only
// changes how it is served.
func queryParams(q url.Values) map[string]any {
	params := map[string]any{}
	for k, vs := range q {
		if k != QueryPurge {
			params[k] = vs
		}
	}
	return params
}
