// Package raster is the unified raster backend. The normalized tree is
// reduced to container, image and text boxes, laid out with package layout
// and painted with fogleman/gg. Styles the painter cannot resolve, such as
// custom properties and modern color functions, are dropped with a warning.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"slices"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/ogforge/pkg/fonts"
	"github.com/matzehuels/ogforge/pkg/httputil"
	"github.com/matzehuels/ogforge/pkg/layout"
	"github.com/matzehuels/ogforge/pkg/node"
	"github.com/matzehuels/ogforge/pkg/render"
)

// Name is the registry name of this backend.
const Name = "raster"

// JPEGQuality is the encoder quality for jpeg output.
const JPEGQuality = 90

// Renderer implements [render.Renderer].
type Renderer struct {
	painter *render.Lazy[*painter]
}

var _ render.Renderer = (*Renderer)(nil)

// New returns the raster backend. The painter is built on first use from
// set, which also serves as the fallback for requests that resolve no
// fonts; nil uses the builtin fonts. client fetches remote images; nil
// uses a default client.
func New(set []*fonts.Font, client *httputil.Client) *Renderer {
	if set == nil {
		set = fonts.Builtin()
	}
	if client == nil {
		client = httputil.NewClient(httputil.DefaultTimeout)
	}
	return &Renderer{
		painter: render.NewLazy(func(context.Context) (*painter, error) {
			return newPainter(set, client)
		}),
	}
}

func (r *Renderer) Name() string { return Name }

func (r *Renderer) SupportedFormats() []string { return []string{"png", "jpeg"} }

func (r *Renderer) CreateImage(ctx context.Context, rc *render.Context) ([]byte, error) {
	if err := render.CheckFormat(r, rc.Extension); err != nil {
		return nil, err
	}
	p, err := r.painter.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("init painter: %w", err)
	}
	box, _, err := build(ctx, rc, p)
	if err != nil {
		return nil, err
	}

	var bg color.Color
	format, opts := imaging.PNG, []imaging.EncodeOption(nil)
	if rc.Extension == "jpeg" {
		bg = color.White
		format = imaging.JPEG
		opts = append(opts, imaging.JPEGQuality(JPEGQuality))
	}
	img := p.paint(ctx, box, rc.Width(), rc.Height(), bg, func(msg string) { rc.Warn(ctx, msg) })
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, fmt.Errorf("encode %s: %w", rc.Extension, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) Debug(ctx context.Context, rc *render.Context) (*render.Diagnostics, error) {
	p, err := r.painter.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("init painter: %w", err)
	}
	box, tree, err := build(ctx, rc, p)
	if err != nil {
		return nil, err
	}
	d := render.NewDiagnostics(rc)
	d.Tree = tree
	d.Output = layout.Describe(box)
	return d, nil
}

// build converts and lays out the tree for rc. Request fonts take
// precedence over the painter's fallback set.
func build(ctx context.Context, rc *render.Context, p *painter) (*layout.Box, *node.Node, error) {
	tree, err := rc.Tree(ctx)
	if err != nil {
		return nil, nil, err
	}
	set := append(slices.Clone(rc.Fonts), p.fonts...)
	if _, ok := tree.StyleValue("font-family"); !ok {
		tree.SetStyleValue("font-family", set[0].Family+", sans-serif")
	}
	warn := func(msg string) { rc.Warn(ctx, msg) }
	box := convert(tree, func(msg string) { warn("raster: " + msg) })
	for _, w := range layout.New(set).Layout(box, float64(rc.Width()), float64(rc.Height())) {
		warn("layout: " + w)
	}
	return box, tree, nil
}
