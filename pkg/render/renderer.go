package render

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/matzehuels/ogforge/pkg/errors"
	"github.com/matzehuels/ogforge/pkg/node"
	"github.com/matzehuels/ogforge/pkg/options"
)

// Renderer is a rendering backend.
type Renderer interface {
	Name() string
	SupportedFormats() []string
	CreateImage(ctx context.Context, rc *Context) ([]byte, error)
	Debug(ctx context.Context, rc *Context) (*Diagnostics, error)
}

// Diagnostics is the debug.json payload.
type Diagnostics struct {
	Renderer string           `json:"renderer"`
	Key      string           `json:"key"`
	BasePath string           `json:"basePath"`
	Options  *options.Options `json:"options"`
	Fonts    []string         `json:"fonts,omitempty"`
	Tree     *node.Node       `json:"tree,omitempty"`
	Output   any              `json:"output,omitempty"`
	Warnings []string         `json:"warnings"`
}

// CheckFormat returns a bad-request error when r cannot produce ext.
func CheckFormat(r Renderer, ext string) error {
	if slices.Contains(r.SupportedFormats(), ext) {
		return nil
	}
	return errors.BadRequest("renderer %q does not support %q (supported: %v)", r.Name(), ext, r.SupportedFormats())
}

// NewDiagnostics fills the fields common to every backend.
func NewDiagnostics(rc *Context) *Diagnostics {
	d := &Diagnostics{
		Key:      rc.Key,
		BasePath: rc.BasePath,
		Options:  rc.Options,
		Warnings: rc.Warnings(),
	}
	if rc.Renderer != nil {
		d.Renderer = rc.Renderer.Name()
	}
	for _, f := range rc.Fonts {
		d.Fonts = append(d.Fonts, f.CacheKey)
	}
	return d
}

// Registry maps renderer names to backends.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

// NewRegistry returns a registry holding rs.
func NewRegistry(rs ...Renderer) *Registry {
	reg := &Registry{renderers: map[string]Renderer{}}
	for _, r := range rs {
		reg.Register(r)
	}
	return reg
}

// Register adds or replaces a backend.
func (reg *Registry) Register(r Renderer) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.renderers[r.Name()] = r
}

// Get returns the backend named name.
func (reg *Registry) Get(name string) (Renderer, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.renderers[name]
	return r, ok
}

// Names returns the registered names, sorted.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.renderers))
	for n := range reg.renderers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Deployment targets and the renderers each can run.
const (
	TargetNode   = "node"
	TargetEdge   = "edge"
	TargetStatic = "static"
)

var compatibility = map[string][]string{
	TargetNode:   {"vector", "raster", "browser"},
	TargetEdge:   {"vector", "raster"},
	TargetStatic: {"vector", "raster", "browser"},
}

// Targets lists every deployment target.
func Targets() []string { return []string{TargetNode, TargetEdge, TargetStatic} }

// Compatible reports whether renderer may run on target.
func Compatible(target, renderer string) bool {
	return slices.Contains(compatibility[target], renderer)
}
