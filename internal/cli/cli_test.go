package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/ogforge/pkg/config"
	ogerrors "github.com/matzehuels/ogforge/pkg/errors"
)

const blogTemplate = `<div class="flex flex-col justify-center bg-white p-16">
  <h1 class="text-6xl text-black">{{ .title }}</h1>
</div>`

// site starts an origin serving one blog page and writes a config file
// pointing at it. It returns the config path and the cache directory.
func site(t *testing.T) (string, string) {
	t.Helper()
	templates := t.TempDir()
	if err := os.WriteFile(filepath.Join(templates, "BlogPost.html"), []byte(blogTemplate), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blog/hello" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<script id="og-image-options" type="application/json">`+
			`{"component":"BlogPost","props":{"title":"Hello"}}</script>`)
	}))
	t.Cleanup(srv.Close)

	cacheDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "ogforge.toml")
	cfg := fmt.Sprintf(`site_url = %q
cache_dir = %q

[render]
renderers = ["vector"]

[islands]
template_dir = %q

[emoji]
remote = false
`, srv.URL, cacheDir, templates)
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, cacheDir
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	c.getenv = func(string) string { return "" }
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"serve", "render", "prerender", "cache", "version", "completion"} {
		if !slices.Contains(names, want) {
			t.Errorf("missing subcommand %q in %v", want, names)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("missing --config flag")
	}
}

func TestRenderQuery(t *testing.T) {
	tests := []struct {
		name    string
		options string
		props   []string
		want    string
		wantErr bool
	}{
		{name: "empty", want: ""},
		{name: "options", options: `{"component":"Card"}`, want: `options=%7B%22component%22%3A%22Card%22%7D`},
		{name: "props", props: []string{"title=Hello world", "width=800"}, want: "title=Hello+world&width=800"},
		{name: "value with equals", props: []string{"q=a=b"}, want: "q=a%3Db"},
		{name: "bad options", options: `[1,2]`, wantErr: true},
		{name: "bad prop", props: []string{"title"}, wantErr: true},
		{name: "empty key", props: []string{"=x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := renderQuery(tt.options, tt.props)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && q.Encode() != tt.want {
				t.Errorf("query = %q, want %q", q.Encode(), tt.want)
			}
		})
	}
}

func TestImageRequest(t *testing.T) {
	ctx := context.Background()
	req, err := imageRequest(ctx, "blog/hello/", "raster", "jpg", true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := req.URL.Path; got != "/blog/hello/static/raster/og.jpeg" {
		t.Errorf("path = %q", got)
	}

	q, _ := renderQuery("", []string{"title=Hi"})
	req, err = imageRequest(ctx, "/", "vector", "svg", false, q)
	if err != nil {
		t.Fatal(err)
	}
	if req.URL.Path != "/image/vector/og.svg" || req.URL.Query().Get("title") != "Hi" {
		t.Errorf("url = %s", req.URL)
	}

	if _, err := imageRequest(ctx, "/", "vector", "gif", false, nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestPrerenderRoutes(t *testing.T) {
	file := filepath.Join(t.TempDir(), "routes.txt")
	if err := os.WriteFile(file, []byte("# blog\n/blog/b\n\n  /blog/a  \n/blog/b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Defaults()
	cfg.Routes = []config.RouteRule{
		{Pattern: "/about"},
		{Pattern: "/docs/**"},
		{Pattern: "/private", Disabled: true},
	}

	tests := []struct {
		name string
		args []string
		from string
		want []string
	}{
		{name: "args", args: []string{"/z", "/a"}, want: []string{"/a", "/z"}},
		{name: "file", from: file, want: []string{"/blog/a", "/blog/b"}},
		{name: "args and file", args: []string{"/blog/a"}, from: file, want: []string{"/blog/a", "/blog/b"}},
		{name: "config fallback", want: []string{"/about"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := prerenderRoutes(tt.args, tt.from, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("routes = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := prerenderRoutes(nil, filepath.Join(t.TempDir(), "missing.txt"), cfg); err == nil {
		t.Error("expected error for missing routes file")
	}
}

func TestUserError(t *testing.T) {
	err := userError(ogerrors.BadRequest("unknown extension %q", "gif"))
	if err.Error() != `unknown extension "gif"` {
		t.Errorf("message = %q", err.Error())
	}
	if !ogerrors.Is(err, ogerrors.ErrCodeBadRequest) {
		t.Error("code lost")
	}

	err = userError(ogerrors.Wrap(ogerrors.ErrCodeRender, context.Canceled, "render /"))
	if !errors.Is(err, context.Canceled) {
		t.Error("cause lost")
	}
	if err.Error() != "render /: context canceled" {
		t.Errorf("message = %q", err.Error())
	}

	plain := errors.New("plain")
	if userError(plain) != plain {
		t.Error("uncoded errors should pass through")
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KiB"},
		{3 << 20, "3.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.n); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestRenderCommand(t *testing.T) {
	cfgPath, _ := site(t)
	out := filepath.Join(t.TempDir(), "nested", "hello.png")

	if _, err := execute(t, "--config", cfgPath, "render", "/blog/hello", "-o", out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if format != "png" || cfg.Width != 1200 || cfg.Height != 630 {
		t.Errorf("got %s %dx%d, want png 1200x630", format, cfg.Width, cfg.Height)
	}
}

func TestRenderCommandErrors(t *testing.T) {
	cfgPath, _ := site(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown page", args: []string{"render", "/nope"}, want: "404"},
		{name: "disabled renderer", args: []string{"render", "/blog/hello", "-r", "browser"}, want: "not enabled"},
		{name: "bad format", args: []string{"render", "/blog/hello", "-f", "gif"}, want: "unknown format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"--config", cfgPath}, tt.args...)...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestPrerenderCommand(t *testing.T) {
	cfgPath, cacheDir := site(t)
	out := t.TempDir()

	_, err := execute(t, "--config", cfgPath, "prerender", "/blog/hello", "/missing", "--out", out)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 routes failed") {
		t.Fatalf("err = %v", err)
	}

	img := filepath.Join(out, "blog", "hello", "static", "vector", "og.png")
	if _, err := os.Stat(img); err != nil {
		t.Errorf("image not written: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, ManifestFile))
	if err != nil {
		t.Fatal(err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("manifest has %d entries", len(entries))
	}
	// Routes are sorted: /blog/hello before /missing.
	if entries[0].Error != "" || !strings.HasPrefix(entries[0].Compact, "/_og/s/") || entries[0].Cached {
		t.Errorf("hello entry = %+v", entries[0])
	}
	if entries[1].Error == "" {
		t.Errorf("missing entry should carry an error: %+v", entries[1])
	}

	builds, err := os.ReadDir(filepath.Join(cacheDir, "build"))
	if err != nil || len(builds) == 0 {
		t.Errorf("build cache not filled: %v", err)
	}

	// A second run is served from the build cache.
	if _, err := execute(t, "--config", cfgPath, "prerender", "/blog/hello", "--out", out); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(filepath.Join(out, ManifestFile))
	entries = nil
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !entries[0].Cached {
		t.Errorf("second run = %+v, want a cached entry", entries)
	}
}

func TestCacheCommands(t *testing.T) {
	cfgPath, cacheDir := site(t)

	out, err := execute(t, "--config", cfgPath, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != cacheDir {
		t.Errorf("cache path = %q, want %q", out, cacheDir)
	}

	stale := filepath.Join(cacheDir, "build", "stale.png")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--config", cfgPath, "cache", "clear"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale build entry survived: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.toml"), "cache", "path")
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Errorf("err = %v", err)
	}
}

func TestCompletionCommand(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ogforge") {
		t.Error("completion script should name the command")
	}
	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("expected error for unsupported shell")
	}
}

func TestVersionCommand(t *testing.T) {
	buf := captureStdout(t)
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "ogforge ") {
		t.Errorf("output = %q", out)
	}
	for _, want := range []string{"commit", "renderers", "vector, raster, browser", "cache"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("version details missing %q:\n%s", want, buf.String())
		}
	}
}
