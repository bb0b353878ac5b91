package islands

import (
	"bytes"
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

//go:embed templates/*.html
var bundled embed.FS

var componentName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// TemplateRenderer executes <component>.html templates with the props as
// data. Templates are read from Dir first, then from the bundled set.
// Parsed templates are cached unless Reload is set.
type TemplateRenderer struct {
	Dir    string
	Reload bool

	mu    sync.RWMutex
	cache map[string]*template.Template
}

var _ Renderer = (*TemplateRenderer)(nil)

// NewTemplateRenderer returns a renderer for templates in dir. An empty dir
// serves only the bundled templates.
func NewTemplateRenderer(dir string, reload bool) *TemplateRenderer {
	return &TemplateRenderer{Dir: dir, Reload: reload, cache: map[string]*template.Template{}}
}

func (r *TemplateRenderer) Render(_ context.Context, component string, props map[string]any) (string, error) {
	if !componentName.MatchString(component) {
		return "", fmt.Errorf("%w: invalid name %q", ErrComponentNotFound, component)
	}
	t, err := r.template(component)
	if err != nil {
		return "", err
	}
	if props == nil {
		props = map[string]any{}
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, props); err != nil {
		return "", fmt.Errorf("render %s: %w", component, err)
	}
	return buf.String(), nil
}

func (r *TemplateRenderer) template(component string) (*template.Template, error) {
	if !r.Reload {
		r.mu.RLock()
		t, ok := r.cache[component]
		r.mu.RUnlock()
		if ok {
			return t, nil
		}
	}

	src, err := r.source(component)
	if err != nil {
		return nil, err
	}
	t, err := template.New(component).Funcs(funcs).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", component, err)
	}
	if !r.Reload {
		r.mu.Lock()
		r.cache[component] = t
		r.mu.Unlock()
	}
	return t, nil
}

func (r *TemplateRenderer) source(component string) (string, error) {
	name := component + ".html"
	if r.Dir != "" {
		data, err := os.ReadFile(filepath.Join(r.Dir, name))
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
	}
	data, err := fs.ReadFile(bundled, "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrComponentNotFound, component)
	}
	return string(data), nil
}

// ComponentHash fingerprints the template source of component, or returns
// "" when it has none.
func (r *TemplateRenderer) ComponentHash(component string) string {
	if !componentName.MatchString(component) {
		return ""
	}
	src, err := r.source(component)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])[:16]
}

// Components lists the names the renderer can serve.
func (r *TemplateRenderer) Components() []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		c, ok := strings.CutSuffix(name, ".html")
		if ok && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if r.Dir != "" {
		if entries, err := os.ReadDir(r.Dir); err == nil {
			for _, e := range entries {
				add(e.Name())
			}
		}
	}
	if entries, err := fs.ReadDir(bundled, "templates"); err == nil {
		for _, e := range entries {
			add(e.Name())
		}
	}
	return out
}

var funcs = template.FuncMap{
	// default returns fallback when v is empty.
	"default": func(fallback, v any) any {
		if v == nil || v == "" {
			return fallback
		}
		return v
	},
	"truncate": func(n int, v any) string {
		s := fmt.Sprint(v)
		if utf8.RuneCountInString(s) <= n {
			return s
		}
		return string([]rune(s)[:n-1]) + "…"
	},
	"upper": func(v any) string { return strings.ToUpper(fmt.Sprint(v)) },
}
