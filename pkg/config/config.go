// Package config loads the service configuration.
//
// A configuration file is TOML by default; files ending in .yaml or .yml
// are read as YAML. Unknown keys are rejected in both formats. Environment
// variables override file values:
//
//	OGFORGE_SITE_URL   site URL used to absolutize images and fetch pages
//	OGFORGE_MODE       runtime, prerender or dev
//	OGFORGE_TARGET     node, edge or static
//	OGFORGE_REDIS_URL  redis URL for the shared cache tiers
//	OGFORGE_MONGO_URI  mongo URI for the asset cache tiers
//	ROD_BROWSER_BIN    browser binary for the screenshot backend
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"

	"github.com/matzehuels/ogforge/pkg/cache"
	"github.com/matzehuels/ogforge/pkg/options"
	"github.com/matzehuels/ogforge/pkg/render"
)

// Sentinel errors.
var (
	ErrParse   = errors.New("failed to parse config")
	ErrInvalid = errors.New("invalid config")
)

// Renderer names known to the service.
var Renderers = []string{"vector", "raster", "browser"}

// =============================================================================
// Default Values - Single Source of Truth
// =============================================================================

const (
	DefaultMode     = render.ModeRuntime
	DefaultTarget   = render.TargetNode
	DefaultListen   = ":8080"
	DefaultCacheDir = ".ogforge"
)

// Config is the full service configuration.
type Config struct {
	// SiteURL is the public origin of the site whose pages are imaged.
	SiteURL string `toml:"site_url" yaml:"siteUrl"`
	// Origin is where page HTML is fetched from; defaults to SiteURL.
	Origin string      `toml:"origin" yaml:"origin"`
	Mode   render.Mode `toml:"mode" yaml:"mode"`
	Target string      `toml:"target" yaml:"target"`
	Listen string      `toml:"listen" yaml:"listen"`
	// Debug exposes error messages and debug headers outside dev mode.
	Debug bool `toml:"debug" yaml:"debug"`
	// PublicDir serves root-relative assets for image inlining.
	PublicDir string `toml:"public_dir" yaml:"publicDir"`
	// CacheDir holds the build cache and fs storage tiers.
	CacheDir string `toml:"cache_dir" yaml:"cacheDir"`

	// Defaults is the global options layer below route rules.
	Defaults options.Raw `toml:"defaults" yaml:"defaults"`
	Routes   []RouteRule `toml:"routes" yaml:"routes"`

	Render  RenderConfig  `toml:"render" yaml:"render"`
	Islands IslandsConfig `toml:"islands" yaml:"islands"`
	Fonts   FontsConfig   `toml:"fonts" yaml:"fonts"`
	Emoji   EmojiConfig   `toml:"emoji" yaml:"emoji"`
	Browser BrowserConfig `toml:"browser" yaml:"browser"`
	Cache   CacheConfig   `toml:"cache" yaml:"cache"`
}

// RenderConfig selects backends and style resolution inputs.
type RenderConfig struct {
	// Renderers enabled in this process; each must suit the target.
	Renderers []string `toml:"renderers" yaml:"renderers"`
	// ClassMap is a JSON file of utility classes merged over the builtins.
	ClassMap string `toml:"class_map" yaml:"classMap"`
	// Breakpoints override the responsive prefixes (name → min width px).
	Breakpoints map[string]int `toml:"breakpoints" yaml:"breakpoints"`
}

// IslandsConfig selects how components are rendered to HTML.
type IslandsConfig struct {
	// Endpoint of an external render server. Tried before templates.
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
	// TemplateDir holds <component>.html templates.
	TemplateDir string `toml:"template_dir" yaml:"templateDir"`
}

// FontsConfig configures font loading.
type FontsConfig struct {
	// Dir is searched for font files before remote sources.
	Dir string `toml:"dir" yaml:"dir"`
	// Preload fonts are resolved at startup and used by every render.
	Preload []options.FontSpec `toml:"preload" yaml:"preload"`
}

// EmojiConfig configures emoji icon lookup.
type EmojiConfig struct {
	Bundled bool   `toml:"bundled" yaml:"bundled"`
	Remote  bool   `toml:"remote" yaml:"remote"`
	APIBase string `toml:"api_base" yaml:"apiBase"`
}

// BrowserConfig configures the screenshot backend.
type BrowserConfig struct {
	RemoteURL string `toml:"remote_url" yaml:"remoteUrl"`
	Bin       string `toml:"bin" yaml:"bin"`
	NoSandbox bool   `toml:"no_sandbox" yaml:"noSandbox"`
}

// CacheConfig selects the storage behind each cache tier group.
type CacheConfig struct {
	// Shared backs the page payload and image tiers.
	Shared StorageConfig `toml:"shared" yaml:"shared"`
	// Assets backs the font and emoji tiers.
	Assets StorageConfig `toml:"assets" yaml:"assets"`
	// KeyPrefix scopes every cache key, for sites sharing a Redis or Mongo
	// backend.
	KeyPrefix string `toml:"key_prefix" yaml:"keyPrefix"`
}

// StorageConfig selects a storage driver.
type StorageConfig struct {
	Driver        string `toml:"driver" yaml:"driver"`
	RedisURL      string `toml:"redis_url" yaml:"redisUrl"`
	MongoURI      string `toml:"mongo_uri" yaml:"mongoUri"`
	MongoDatabase string `toml:"mongo_database" yaml:"mongoDatabase"`
	Prefix        string `toml:"prefix" yaml:"prefix"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Mode:     DefaultMode,
		Target:   DefaultTarget,
		Listen:   DefaultListen,
		CacheDir: DefaultCacheDir,
		Render:   RenderConfig{Renderers: slices.Clone(Renderers)},
		Emoji:    EmojiConfig{Bundled: true, Remote: true},
		Cache: CacheConfig{
			Shared: StorageConfig{Driver: cache.DriverMemory},
			Assets: StorageConfig{Driver: cache.DriverMemory},
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.decode(path, data); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalWithOptions(data, c, yaml.Strict()); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrParse, path, err)
		}
		return nil
	}
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(c)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return fmt.Errorf("%w: %s: unknown keys %s", ErrParse, path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("OGFORGE_SITE_URL"); v != "" {
		c.SiteURL = v
	}
	if v := getenv("OGFORGE_MODE"); v != "" {
		c.Mode = render.Mode(v)
	}
	if v := getenv("OGFORGE_TARGET"); v != "" {
		c.Target = v
	}
	if v := getenv("OGFORGE_REDIS_URL"); v != "" {
		c.Cache.Shared.Driver = cache.DriverRedis
		c.Cache.Shared.RedisURL = v
	}
	if v := getenv("OGFORGE_MONGO_URI"); v != "" {
		c.Cache.Assets.Driver = cache.DriverMongo
		c.Cache.Assets.MongoURI = v
	}
	if v := getenv("ROD_BROWSER_BIN"); v != "" {
		c.Browser.Bin = v
	}
}

// Validate checks names, sizes and references. Errors wrap [ErrInvalid].
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Mode {
	case render.ModeRuntime, render.ModePrerender, render.ModeDev:
	default:
		bad("mode: unknown %q", c.Mode)
	}
	if !slices.Contains(render.Targets(), c.Target) {
		bad("target: unknown %q (want one of %v)", c.Target, render.Targets())
	}
	if len(c.Render.Renderers) == 0 {
		bad("render.renderers: at least one renderer is required")
	}
	for _, r := range c.Render.Renderers {
		switch {
		case !slices.Contains(Renderers, r):
			bad("render.renderers: unknown %q", r)
		case !render.Compatible(c.Target, r):
			bad("render.renderers: %q cannot run on target %q", r, c.Target)
		}
	}
	for name, px := range c.Render.Breakpoints {
		if px <= 0 {
			bad("render.breakpoints.%s: must be positive, got %d", name, px)
		}
	}
	for name, s := range map[string]StorageConfig{"cache.shared": c.Cache.Shared, "cache.assets": c.Cache.Assets} {
		if err := s.validate(); err != nil {
			bad("%s: %v", name, err)
		}
	}
	for i, r := range c.Routes {
		if !strings.HasPrefix(r.Pattern, "/") {
			bad("routes[%d].pattern: must start with /, got %q", i, r.Pattern)
		}
	}
	if len(c.Defaults) > 0 {
		o, err := options.FromRaw(c.Defaults)
		if err == nil {
			err = o.Validate()
		}
		if err != nil {
			bad("defaults: %v", err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func (s StorageConfig) validate() error {
	switch s.Driver {
	case "", cache.DriverMemory, cache.DriverNull, cache.DriverFS:
	case cache.DriverRedis:
		if s.RedisURL == "" {
			return errors.New("redis driver requires redis_url")
		}
	case cache.DriverMongo:
		if s.MongoURI == "" {
			return errors.New("mongo driver requires mongo_uri")
		}
	default:
		return fmt.Errorf("unknown driver %q (want one of %v)", s.Driver, cache.Drivers)
	}
	return nil
}

// Storage converts s into the cache package's form. fs storages live under
// dir.
func (s StorageConfig) Storage(dir string) cache.StorageConfig {
	return cache.StorageConfig{
		Driver:        s.Driver,
		Dir:           dir,
		RedisURL:      s.RedisURL,
		MongoURI:      s.MongoURI,
		MongoDatabase: s.MongoDatabase,
		Prefix:        s.Prefix,
	}
}

// Tiers returns the storage configuration for every cache tier.
func (c *Config) Tiers() cache.TiersConfig {
	dir := filepath.Join(c.CacheDir, "storage")
	return cache.TiersConfig{
		Shared:    c.Cache.Shared.Storage(dir),
		Assets:    c.Cache.Assets.Storage(dir),
		KeyPrefix: c.Cache.KeyPrefix,
	}
}

// BuildDir is the build cache directory.
func (c *Config) BuildDir() string { return filepath.Join(c.CacheDir, "build") }

// OriginURL is where page HTML is fetched from.
func (c *Config) OriginURL() string {
	if c.Origin != "" {
		return c.Origin
	}
	return c.SiteURL
}

// ProductionLike reports whether image caching applies.
func (c *Config) ProductionLike() bool { return c.Mode.ProductionLike() }

// ShowErrors reports whether error messages reach clients.
func (c *Config) ShowErrors() bool { return c.Debug || c.Mode == render.ModeDev }
