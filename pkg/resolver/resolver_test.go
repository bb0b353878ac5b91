package resolver

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/ogforge/pkg/cache"
	"github.com/matzehuels/ogforge/pkg/config"
	"github.com/matzehuels/ogforge/pkg/errors"
	"github.com/matzehuels/ogforge/pkg/options"
	"github.com/matzehuels/ogforge/pkg/render"
)

type stubRenderer struct{ name string }

func (s stubRenderer) Name() string { return s.name }

func (s stubRenderer) SupportedFormats() []string {
	if s.name == "browser" {
		return []string{"png", "jpeg"}
	}
	return []string{"png", "jpeg", "svg"}
}
func (s stubRenderer) CreateImage(context.Context, *render.Context) ([]byte, error) {
	return nil, nil
}
func (s stubRenderer) Debug(context.Context, *render.Context) (*render.Diagnostics, error) {
	return nil, nil
}

func registry() *render.Registry {
	return render.NewRegistry(stubRenderer{"vector"}, stubRenderer{"raster"}, stubRenderer{"browser"})
}

const blogPage = `<!doctype html><html><head>
<script id="og-image-options" type="application/json">{"component":"BlogPost","props":{"title":"Hello","author":"Ada"}}</script>
<script id="og-image-overrides" type="application/json">{"props":{"title":"Hello, world"}}</script>
</head><body><h1>Hello</h1></body></html>`

// origin serves a small site and counts page fetches.
func origin(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/blog/hello", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, blogPage)
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>no marker</body></html>")
	})
	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>docs</body></html>")
	})
	mux.HandleFunc("/docs/og-image.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"component":"Docs"}`)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newResolver(t *testing.T, mutate func(*config.Config)) (*Resolver, *atomic.Int32) {
	t.Helper()
	srv, hits := origin(t)
	cfg := config.Defaults()
	cfg.SiteURL = srv.URL
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg, registry(), nil, nil, nil), hits
}

func resolve(t *testing.T, r *Resolver, target string) (*render.Context, error) {
	t.Helper()
	return r.Resolve(context.Background(), httptest.NewRequest(http.MethodGet, target, nil))
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		path string
		want Target
		code errors.Code
	}{
		{"/blog/hello/image/vector/og.png", Target{Kind: KindImage, BasePath: "/blog/hello", Renderer: "vector", Extension: "png"}, ""},
		{"/image/raster/og.jpg", Target{Kind: KindImage, BasePath: "/", Renderer: "raster", Extension: "jpeg"}, ""},
		{"/blog/static/browser/og.jpeg", Target{Kind: KindStatic, BasePath: "/blog", Renderer: "browser", Extension: "jpeg", Static: true}, ""},
		{"/image/gallery/image/vector/og.svg", Target{Kind: KindImage, BasePath: "/image/gallery", Renderer: "vector", Extension: "svg"}, ""},
		{"/blog/hello/debug.json", Target{Kind: KindDebug, BasePath: "/blog/hello"}, ""},
		{"/debug.json", Target{Kind: KindDebug, BasePath: "/"}, ""},
		{"/_og/d/w_800,c_Card.png", Target{Kind: KindCompact, BasePath: "/", Extension: "png", Segment: "w_800,c_Card"}, ""},
		{"/_og/s/o_abcdef0123.jpg", Target{Kind: KindCompact, BasePath: "/", Extension: "jpeg", Segment: "o_abcdef0123", Static: true}, ""},
		{"/blog/image/vector/og.gif", Target{}, errors.ErrCodeBadRequest},
		{"/_og/d/w_800.bmp", Target{}, errors.ErrCodeBadRequest},
		{"/_og/x/w_800.png", Target{}, errors.ErrCodeNotFound},
		{"/blog/hello", Target{}, errors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ParsePath(tt.path)
			if tt.code != "" {
				if !errors.Is(err, tt.code) {
					t.Fatalf("err = %v, want %s", err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestImageURL(t *testing.T) {
	if got := ImageURL("/blog/hello/", "vector", "png", false); got != "/blog/hello/image/vector/og.png" {
		t.Errorf("got %q", got)
	}
	if got := ImageURL("/", "raster", "jpeg", true); got != "/static/raster/og.jpeg" {
		t.Errorf("got %q", got)
	}
}

func TestExtract(t *testing.T) {
	raw, err := Extract([]byte(blogPage))
	if err != nil {
		t.Fatal(err)
	}
	props := raw["props"].(map[string]any)
	if raw["component"] != "BlogPost" || props["title"] != "Hello, world" || props["author"] != "Ada" {
		t.Errorf("raw = %v", raw)
	}

	if _, err := Extract([]byte("<html><body></body></html>")); !stderrors.Is(err, ErrNoMarker) {
		t.Errorf("err = %v, want ErrNoMarker", err)
	}
	bad := `<script id="og-image-options" type="application/json">{nope</script>`
	if _, err := Extract([]byte(bad)); err == nil || stderrors.Is(err, ErrNoMarker) {
		t.Errorf("err = %v, want a JSON error", err)
	}
}

func TestResolvePrecedence(t *testing.T) {
	r, _ := newResolver(t, func(c *config.Config) {
		c.Defaults = options.Raw{"emojis": "twemoji", "props": map[string]any{"siteName": "Default"}}
		c.Routes = []config.RouteRule{{
			Pattern: "/blog/**",
			Options: options.Raw{"width": 800, "component": "Route", "props": map[string]any{"siteName": "Blog"}},
		}}
	})
	rc, err := resolve(t, r, "/blog/hello/image/vector/og.png?title=Query")
	if err != nil {
		t.Fatal(err)
	}
	o := rc.Options
	checks := []struct{ name, got, want string }{
		{"component", o.Component, "BlogPost"},
		{"title", o.PropString("title"), "Query"},
		{"author", o.PropString("author"), "Ada"},
		{"siteName", o.PropString("siteName"), "Blog"},
		{"emojis", o.Emojis, "twemoji"},
		{"renderer", o.Renderer, "vector"},
		{"extension", rc.Extension, "png"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if o.Width != 800 || o.Height != options.DefaultHeight {
		t.Errorf("size = %dx%d", o.Width, o.Height)
	}
	if rc.BasePath != "/blog/hello" || rc.RequestID == "" || rc.Renderer.Name() != "vector" {
		t.Errorf("rc = %+v", rc)
	}
}

func TestResolveOptionsQueryBeatsPayload(t *testing.T) {
	r, hits := newResolver(t, nil)
	q := url.Values{QueryOptions: {`{"component":"Explicit","height":400}`}}
	rc, err := resolve(t, r, "/blog/hello/image/vector/og.png?"+q.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if rc.Options.Component != "Explicit" || rc.Options.Height != 400 {
		t.Errorf("options = %+v", rc.Options)
	}
	if hits.Load() != 0 {
		t.Error("explicit options should skip the origin fetch")
	}
}

func TestResolvePayloadCached(t *testing.T) {
	r, hits := newResolver(t, nil)
	tests := []struct {
		target    string
		wantFetch int32
	}{
		{"/blog/hello/image/vector/og.png", 1},
		{"/blog/hello/image/vector/og.png", 1},
		{"/blog/hello/image/raster/og.png", 1},
		{"/blog/hello/image/vector/og.png?purge", 1},
		{"/blog/hello/image/vector/og.png?title=Other", 2},
		{"/blog/hello/image/vector/og.png?title=Other", 2},
	}
	for _, tt := range tests {
		if _, err := resolve(t, r, tt.target); err != nil {
			t.Fatal(err)
		}
		if n := hits.Load(); n != tt.wantFetch {
			t.Errorf("after %s: origin fetched %d times, want %d", tt.target, n, tt.wantFetch)
		}
	}
}

func TestResolvePayloadKeyedBySite(t *testing.T) {
	srv, hits := origin(t)
	tiers := cache.MemoryTiers()
	for _, site := range []string{srv.URL, srv.URL + "/"} {
		cfg := config.Defaults()
		cfg.SiteURL = site
		r := New(cfg, registry(), tiers, nil, nil)
		if _, err := resolve(t, r, "/blog/hello/image/vector/og.png"); err != nil {
			t.Fatal(err)
		}
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("origin fetched %d times, want one per site", n)
	}
}

func TestResolveRemembered(t *testing.T) {
	r, hits := newResolver(t, nil)
	if err := r.Remember(context.Background(), "/blog/hello", options.Raw{"component": "Prerendered"}); err != nil {
		t.Fatal(err)
	}
	rc, err := resolve(t, r, "/blog/hello/static/vector/og.png")
	if err != nil {
		t.Fatal(err)
	}
	if rc.Options.Component != "Prerendered" || !rc.Static {
		t.Errorf("rc = %+v", rc.Options)
	}
	if hits.Load() != 0 {
		t.Error("remembered options should skip the origin fetch")
	}
}

func TestResolveFallbackFile(t *testing.T) {
	r, _ := newResolver(t, nil)
	rc, err := resolve(t, r, "/docs/image/vector/og.png")
	if err != nil {
		t.Fatal(err)
	}
	if rc.Options.Component != "Docs" {
		t.Errorf("component = %q", rc.Options.Component)
	}
}

func TestResolveFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		path   string
		code   errors.Code
		msg    string
	}{
		{"missing page", nil, "/nope/image/vector/og.png", errors.ErrCodeUpstream, "404"},
		{"redirect", nil, "/moved/image/vector/og.png", errors.ErrCodeUpstream, "/elsewhere"},
		{"no marker", nil, "/plain/image/vector/og.png", errors.ErrCodeUpstream, "og-image.json"},
		{"no origin", func(c *config.Config) { c.SiteURL = "" }, "/blog/hello/image/vector/og.png", errors.ErrCodeBadRequest, "no options"},
		{"edge target", func(c *config.Config) { c.Target = render.TargetEdge }, "/blog/hello/image/browser/og.png", errors.ErrCodeBadRequest, "edge"},
		{"unknown renderer", nil, "/blog/hello/image/pdf/og.png", errors.ErrCodeBadRequest, "pdf"},
		{"disabled", func(c *config.Config) {
			c.Routes = []config.RouteRule{{Pattern: "/blog/**", Disabled: true}}
		}, "/blog/hello/image/vector/og.png", errors.ErrCodeNotFound, "disabled"},
		{"unsupported format", nil, "/nope/image/browser/og.svg", errors.ErrCodeBadRequest, "does not support"},
		{"oversized", nil, "/blog/hello/image/vector/og.png?width=9000", errors.ErrCodeBadRequest, "4096"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newResolver(t, tt.mutate)
			_, err := resolve(t, r, tt.path)
			if !errors.Is(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("err = %v, want mention of %q", err, tt.msg)
			}
		})
	}
}

func TestResolveMissingMarkerUsesRouteRule(t *testing.T) {
	r, _ := newResolver(t, func(c *config.Config) {
		c.Routes = []config.RouteRule{{Pattern: "/plain", Options: options.Raw{"component": "Route"}}}
	})
	rc, err := resolve(t, r, "/plain/image/vector/og.png")
	if err != nil {
		t.Fatal(err)
	}
	if rc.Options.Component != "Route" {
		t.Errorf("component = %q", rc.Options.Component)
	}
}

func TestResolveCompact(t *testing.T) {
	r, hits := newResolver(t, nil)
	ctx := context.Background()

	short, err := r.CompactURL(ctx, options.Raw{"component": "Card", "width": 600, "props": map[string]any{"title": "Hi"}}, "png", false)
	if err != nil {
		t.Fatal(err)
	}
	rc, err := resolve(t, r, short)
	if err != nil {
		t.Fatal(err)
	}
	if rc.Options.Component != "Card" || rc.Options.Width != 600 || rc.Options.PropString("title") != "Hi" {
		t.Errorf("options = %+v", rc.Options)
	}

	long := options.Raw{"component": "Card", "props": map[string]any{"title": strings.Repeat("long title ", 30)}}
	hashed, err := r.CompactURL(ctx, long, "png", true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(hashed, "/_og/s/o_") {
		t.Fatalf("expected hash mode, got %q", hashed)
	}
	rc, err = resolve(t, r, hashed)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(rc.Options.PropString("title"), "long title") || !rc.Static {
		t.Errorf("options = %+v", rc.Options)
	}

	if _, err := resolve(t, r, "/_og/d/o_0000000000.png"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown hash: err = %v", err)
	}
	if hits.Load() != 0 {
		t.Error("compact URLs never fetch the origin")
	}
}

func TestResolveCompactReservedCharacters(t *testing.T) {
	r, _ := newResolver(t, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		title string
	}{
		{"comma", "Hello, World"},
		{"plus", "C++ tips"},
		{"percent", "100% done"},
		{"underscore", "snake_case_name"},
		{"mixed", "a_b, c+d 50%25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := r.CompactURL(ctx, options.Raw{"component": "Card", "props": map[string]any{"title": tt.title}}, "png", false)
			if err != nil {
				t.Fatal(err)
			}
			rc, err := resolve(t, r, u)
			if err != nil {
				t.Fatalf("resolve %s: %v", u, err)
			}
			if got := rc.Options.PropString("title"); got != tt.title {
				t.Errorf("title = %q, want %q (url %s)", got, tt.title, u)
			}
		})
	}
}

func TestCacheKey(t *testing.T) {
	r, _ := newResolver(t, nil)
	key := func(target string) string {
		t.Helper()
		rc, err := resolve(t, r, target)
		if err != nil {
			t.Fatal(err)
		}
		return rc.Key
	}
	base := key("/blog/hello/image/vector/og.png")
	if got := key("/blog/hello/image/vector/og.png?purge"); got != base {
		t.Error("purge must not change the key")
	}
	if got := key("/blog/hello/image/vector/og.png?title=Other"); got == base {
		t.Error("query overrides must change the key")
	}
	if got := key("/blog/hello/image/raster/og.png"); got == base {
		t.Error("renderer must change the key")
	}
	if got := key("/blog/hello/image/vector/og.jpeg"); got == base {
		t.Error("extension must change the key")
	}

	rc, err := resolve(t, r, "/blog/hello/image/vector/og.png?purge")
	if err != nil {
		t.Fatal(err)
	}
	if !rc.Purge {
		t.Error("purge flag not set")
	}
}
