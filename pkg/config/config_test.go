package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/ogforge/pkg/cache"
	"github.com/matzehuels/ogforge/pkg/render"
)

func noEnv(string) string { return "" }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg, err := LoadWithEnv("", noEnv)
	if err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Mode != render.ModeRuntime || cfg.Target != render.TargetNode {
		t.Errorf("mode/target = %s/%s", cfg.Mode, cfg.Target)
	}
	if !cfg.ProductionLike() || cfg.ShowErrors() {
		t.Error("runtime mode should cache and hide errors")
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "ogforge.toml", `
site_url = "https://example.com"
mode = "prerender"
target = "static"

[defaults]
component = "Card"
width = 800

[defaults.props]
siteName = "Example"

[[routes]]
pattern = "/blog/**"
[routes.options]
component = "BlogPost"

[[routes]]
pattern = "/admin/**"
disabled = true

[render]
renderers = ["vector", "raster"]
[render.breakpoints]
sm = 500

[cache]
key_prefix = "example:"

[cache.shared]
driver = "fs"

[[fonts.preload]]
family = "Inter"
weight = 700
`)
	cfg, err := LoadWithEnv(path, noEnv)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SiteURL != "https://example.com" || cfg.Mode != render.ModePrerender {
		t.Errorf("site/mode = %q/%q", cfg.SiteURL, cfg.Mode)
	}
	if cfg.Defaults["component"] != "Card" {
		t.Errorf("defaults = %v", cfg.Defaults)
	}
	if len(cfg.Routes) != 2 || cfg.Routes[0].Options["component"] != "BlogPost" {
		t.Errorf("routes = %+v", cfg.Routes)
	}
	if cfg.Render.Breakpoints["sm"] != 500 {
		t.Errorf("breakpoints = %v", cfg.Render.Breakpoints)
	}
	if len(cfg.Fonts.Preload) != 1 || cfg.Fonts.Preload[0].Weight != 700 {
		t.Errorf("preload = %+v", cfg.Fonts.Preload)
	}
	if got := cfg.Tiers().Shared; got.Driver != cache.DriverFS || got.Dir != filepath.Join(DefaultCacheDir, "storage") {
		t.Errorf("shared storage = %+v", got)
	}
	if got := cfg.Tiers().KeyPrefix; got != "example:" {
		t.Errorf("key prefix = %q", got)
	}
	if cfg.Cache.Assets.Driver != cache.DriverMemory {
		t.Errorf("assets driver should keep its default, got %q", cfg.Cache.Assets.Driver)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "ogforge.yaml", `
siteUrl: https://example.com
mode: dev
browser:
  noSandbox: true
islands:
  endpoint: http://localhost:3000/render
`)
	cfg, err := LoadWithEnv(path, noEnv)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != render.ModeDev || !cfg.Browser.NoSandbox || cfg.Islands.Endpoint == "" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.ShowErrors() {
		t.Error("dev mode shows errors")
	}
}

func TestUnknownKeys(t *testing.T) {
	tests := []struct {
		name, file, content string
	}{
		{"toml", "c.toml", "site_url = \"x\"\nbogus = 1\n"},
		{"yaml", "c.yml", "siteUrl: x\nbogus: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithEnv(writeFile(t, tt.file, tt.content), noEnv)
			if !errors.Is(err, ErrParse) {
				t.Fatalf("err = %v, want ErrParse", err)
			}
			if tt.name == "toml" && !strings.Contains(err.Error(), "bogus") {
				t.Errorf("error should name the key: %v", err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"OGFORGE_SITE_URL":  "https://env.example",
		"OGFORGE_MODE":      "dev",
		"OGFORGE_TARGET":    "edge",
		"OGFORGE_REDIS_URL": "redis://localhost:6379/0",
		"OGFORGE_MONGO_URI": "mongodb://localhost:27017",
		"ROD_BROWSER_BIN":   "/usr/bin/chromium",
	}
	path := writeFile(t, "c.toml", "site_url = \"https://file.example\"\n[render]\nrenderers = [\"vector\"]\n")
	cfg, err := LoadWithEnv(path, func(k string) string { return env[k] })
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SiteURL != "https://env.example" || cfg.Mode != render.ModeDev || cfg.Target != render.TargetEdge {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Cache.Shared.Driver != cache.DriverRedis || cfg.Cache.Assets.Driver != cache.DriverMongo {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Browser.Bin != "/usr/bin/chromium" {
		t.Errorf("browser bin = %q", cfg.Browser.Bin)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"mode", func(c *Config) { c.Mode = "staging" }, "mode"},
		{"target", func(c *Config) { c.Target = "lambda" }, "target"},
		{"unknown renderer", func(c *Config) { c.Render.Renderers = []string{"pdf"} }, "unknown \"pdf\""},
		{"incompatible renderer", func(c *Config) { c.Target = render.TargetEdge }, "cannot run on target"},
		{"breakpoint", func(c *Config) { c.Render.Breakpoints = map[string]int{"sm": 0} }, "breakpoints.sm"},
		{"driver", func(c *Config) { c.Cache.Shared.Driver = "etcd" }, "unknown driver"},
		{"redis url", func(c *Config) { c.Cache.Shared.Driver = cache.DriverRedis }, "redis_url"},
		{"route", func(c *Config) { c.Routes = []RouteRule{{Pattern: "blog/**"}} }, "routes[0]"},
		{"defaults", func(c *Config) { c.Defaults = map[string]any{"width": 5000} }, "defaults"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestRoute(t *testing.T) {
	cfg := Defaults()
	cfg.Routes = []RouteRule{
		{Pattern: "/**", Options: map[string]any{"component": "Site"}},
		{Pattern: "/blog/**", Options: map[string]any{"component": "Blog"}},
		{Pattern: "/blog/special", Options: map[string]any{"component": "Special"}},
		{Pattern: "/private/**", Disabled: true},
	}
	tests := []struct {
		path, want string
		disabled   bool
	}{
		{"/", "Site", false},
		{"/about", "Site", false},
		{"/blog", "Blog", false},
		{"/blog/hello", "Blog", false},
		{"/blog/special", "Special", false},
		{"/blog/special/", "Special", false},
		{"/blogger", "Site", false},
		{"/private/x", "", true},
	}
	for _, tt := range tests {
		r, ok := cfg.Route(tt.path)
		if !ok {
			t.Errorf("%s: no route", tt.path)
			continue
		}
		if got, _ := r.Options["component"].(string); got != tt.want || r.Disabled != tt.disabled {
			t.Errorf("%s: component=%q disabled=%v, want %q/%v", tt.path, got, r.Disabled, tt.want, tt.disabled)
		}
	}

	cfg.Routes = cfg.Routes[1:]
	if _, ok := cfg.Route("/about"); ok {
		t.Error("/about should not match without a catch-all")
	}
}
