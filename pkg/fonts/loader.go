package fonts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ogforge/pkg/cache"
	"github.com/matzehuels/ogforge/pkg/httputil"
	"github.com/matzehuels/ogforge/pkg/options"
)

// ErrNotFound is returned by a loader that cannot provide a font.
var ErrNotFound = errors.New("font not found")

// Loader fetches the binary data for one font spec.
type Loader interface {
	Load(ctx context.Context, spec options.FontSpec) ([]byte, string, error)
}

// DirLoader finds fonts in a local directory. For family "Inter" at weight
// 700 it tries Inter-700.ttf, Inter-Bold.ttf, Inter-700-italic.ttf and so on,
// then Inter.ttf, with .ttf and .otf extensions.
type DirLoader struct {
	Dir string
}

var weightNames = map[int]string{
	100: "Thin", 200: "ExtraLight", 300: "Light", 400: "Regular",
	500: "Medium", 600: "SemiBold", 700: "Bold", 800: "ExtraBold", 900: "Black",
}

func (l DirLoader) Load(ctx context.Context, spec options.FontSpec) ([]byte, string, error) {
	if spec.Src != "" && !isRemote(spec.Src) {
		path := spec.Src
		if !filepath.IsAbs(path) {
			path = filepath.Join(l.Dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return data, path, nil
	}

	family := strings.ReplaceAll(spec.Family, " ", "")
	w := strconv.Itoa(spec.Weight)
	var stems []string
	if spec.Style == "italic" {
		stems = append(stems, family+"-"+w+"-italic", family+"-"+weightNames[spec.Weight]+"Italic")
	}
	stems = append(stems, family+"-"+w, family+"-"+weightNames[spec.Weight])
	if spec.Weight == 400 {
		stems = append(stems, family)
	}
	for _, stem := range stems {
		for _, ext := range []string{".ttf", ".otf"} {
			path := filepath.Join(l.Dir, stem+ext)
			if data, err := os.ReadFile(path); err == nil {
				return data, path, nil
			}
		}
	}
	return nil, "", ErrNotFound
}

// HTTPLoader downloads fonts whose Src is an http(s) URL.
type HTTPLoader struct {
	Client *httputil.Client
}

func (l HTTPLoader) Load(ctx context.Context, spec options.FontSpec) ([]byte, string, error) {
	if !isRemote(spec.Src) {
		return nil, "", ErrNotFound
	}
	client := l.Client
	if client == nil {
		client = httputil.NewClient(10 * time.Second)
	}
	resp, err := client.FetchWithRetry(ctx, spec.Src, 3, 200*time.Millisecond)
	if err != nil {
		return nil, "", err
	}
	if !resp.OK() {
		return nil, "", fmt.Errorf("fetch %s: status %d", spec.Src, resp.StatusCode)
	}
	return resp.Body, spec.Src, nil
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Resolver turns font specs into fonts, consulting the font cache tier first.
type Resolver struct {
	Loaders []Loader
	Storage cache.Storage
	Keyer   cache.Keyer
	Logger  *log.Logger

	// resolved holds parsed fonts for the process lifetime, by cache key.
	resolved sync.Map
}

// NewResolver returns a resolver with defaults for nil fields.
func NewResolver(storage cache.Storage, logger *log.Logger, loaders ...Loader) *Resolver {
	if storage == nil {
		storage = cache.NewMemoryStorage()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Resolver{Loaders: loaders, Storage: storage, Keyer: cache.NewDefaultKeyer(), Logger: logger}
}

// Resolve loads every spec. A font that cannot be loaded, or whose data is
// not a parseable TrueType/OpenType font, is dropped with a warning. The
// bundled fonts are always appended.
func (r *Resolver) Resolve(ctx context.Context, specs []options.FontSpec) []*Font {
	var out []*Font
	for _, spec := range specs {
		if spec.Weight == 0 {
			spec.Weight = 400
		}
		if spec.Style == "" {
			spec.Style = "normal"
		}
		f, err := r.load(ctx, spec)
		if err != nil {
			r.Logger.Warn("font dropped", "family", spec.Family, "weight", spec.Weight, "error", err)
			continue
		}
		out = append(out, f)
	}
	return append(out, Builtin()...)
}

func (r *Resolver) load(ctx context.Context, spec options.FontSpec) (*Font, error) {
	key := r.Keyer.FontKey(spec.Family, spec.Weight, spec.Style, spec.Src)
	if f, ok := r.resolved.Load(key); ok {
		return f.(*Font), nil
	}
	f, err := r.fetch(ctx, key, spec)
	if err != nil {
		return nil, err
	}
	actual, _ := r.resolved.LoadOrStore(key, f)
	return actual.(*Font), nil
}

func (r *Resolver) fetch(ctx context.Context, key string, spec options.FontSpec) (*Font, error) {
	if data, ok, err := r.Storage.Get(ctx, key); err == nil && ok {
		cached := &Font{Family: spec.Family, Weight: spec.Weight, Style: spec.Style, Src: spec.Src, CacheKey: key, Data: data}
		if _, err := cached.Parsed(); err == nil {
			return cached, nil
		}
	}

	f := &Font{Family: spec.Family, Weight: spec.Weight, Style: spec.Style, Src: spec.Src, CacheKey: key}

	var lastErr error = ErrNotFound
	for _, l := range r.Loaders {
		data, src, err := l.Load(ctx, spec)
		if err != nil {
			lastErr = err
			continue
		}
		f.Data = data
		if f.Src == "" {
			f.Src = src
		}
		if _, err := f.Parsed(); err != nil {
			return nil, err
		}
		if err := r.Storage.Set(ctx, key, data, 0); err != nil {
			r.Logger.Warn("font cache write failed", "key", key, "error", err)
		}
		return f, nil
	}
	return nil, lastErr
}
