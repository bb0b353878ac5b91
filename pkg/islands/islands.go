// Package islands renders the component markup an image is built from.
//
// A component is named in the render options and receives the options'
// props. Two renderers are provided:
//
//   - [HTTPRenderer] asks an external render server for the fragment
//   - [TemplateRenderer] executes html/template files from a directory,
//     falling back to the templates bundled with this package
//
// Both return an HTML fragment; normalization into a node tree happens in
// package node.
package islands

import (
	"context"
	"errors"
)

// ErrComponentNotFound is returned when no renderer knows the component.
var ErrComponentNotFound = errors.New("component not found")

// Renderer produces the HTML fragment for a component and its props.
type Renderer interface {
	Render(ctx context.Context, component string, props map[string]any) (string, error)
}

// Hasher is implemented by renderers that can fingerprint a component's
// source, so cached images are invalidated when it changes.
type Hasher interface {
	ComponentHash(component string) string
}

// RendererFunc adapts a function to [Renderer].
type RendererFunc func(ctx context.Context, component string, props map[string]any) (string, error)

func (f RendererFunc) Render(ctx context.Context, component string, props map[string]any) (string, error) {
	return f(ctx, component, props)
}

// Chain tries each renderer in order and returns the first fragment. A
// renderer reporting [ErrComponentNotFound] passes to the next; any other
// error stops the chain.
func Chain(rs ...Renderer) Renderer {
	return RendererFunc(func(ctx context.Context, component string, props map[string]any) (string, error) {
		for _, r := range rs {
			html, err := r.Render(ctx, component, props)
			if errors.Is(err, ErrComponentNotFound) {
				continue
			}
			return html, err
		}
		return "", ErrComponentNotFound
	})
}
