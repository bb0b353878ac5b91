// Package vector is the layout-engine backend: the normalized tree is laid
// out with package layout and written as SVG with text converted to glyph
// outlines, so the output does not depend on fonts installed where it is
// viewed. PNG and JPEG are rasterized from the same document.
package vector

import (
	"bytes"
	"context"
	"fmt"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/ogforge/pkg/httputil"
	"github.com/matzehuels/ogforge/pkg/layout"
	"github.com/matzehuels/ogforge/pkg/node"
	"github.com/matzehuels/ogforge/pkg/render"
)

// Name is the registry name of this backend.
const Name = "vector"

// JPEGQuality is the encoder quality for jpeg output.
const JPEGQuality = 90

// Renderer implements [render.Renderer].
type Renderer struct {
	client *httputil.Client
}

var _ render.Renderer = (*Renderer)(nil)

// New returns the vector backend. client fetches remote images for raster
// output; nil uses a default client.
func New(client *httputil.Client) *Renderer {
	if client == nil {
		client = httputil.NewClient(httputil.DefaultTimeout)
	}
	return &Renderer{client: client}
}

func (r *Renderer) Name() string { return Name }

func (r *Renderer) SupportedFormats() []string { return []string{"png", "jpeg", "svg"} }

func (r *Renderer) CreateImage(ctx context.Context, rc *render.Context) ([]byte, error) {
	if err := render.CheckFormat(r, rc.Extension); err != nil {
		return nil, err
	}
	box, _, err := r.build(ctx, rc)
	if err != nil {
		return nil, err
	}
	doc := paint(box, rc.Width(), rc.Height())
	if rc.Extension == "svg" {
		return doc.SVG(), nil
	}

	var bg color.Color
	format, opts := imaging.PNG, []imaging.EncodeOption(nil)
	if rc.Extension == "jpeg" {
		bg = color.White
		format = imaging.JPEG
		opts = append(opts, imaging.JPEGQuality(JPEGQuality))
	}
	img, err := rasterize(ctx, doc, r.client, bg, func(msg string) { rc.Warn(ctx, msg) })
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, fmt.Errorf("encode %s: %w", rc.Extension, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) Debug(ctx context.Context, rc *render.Context) (*render.Diagnostics, error) {
	box, tree, err := r.build(ctx, rc)
	if err != nil {
		return nil, err
	}
	d := render.NewDiagnostics(rc)
	d.Tree = tree
	d.Output = layout.Describe(box)
	return d, nil
}

// build produces the laid-out box tree for rc.
func (r *Renderer) build(ctx context.Context, rc *render.Context) (*layout.Box, *node.Node, error) {
	tree, err := rc.Tree(ctx)
	if err != nil {
		return nil, nil, err
	}
	set := filterFonts(tree, rc.Fonts)
	if len(set) > 0 {
		if _, ok := tree.StyleValue("font-family"); !ok {
			tree.SetStyleValue("font-family", set[0].Family+", sans-serif")
		}
	}
	warn := func(msg string) { rc.Warn(ctx, msg) }
	box := layout.Build(tree, warn)
	for _, w := range layout.New(set).Layout(box, float64(rc.Width()), float64(rc.Height())) {
		warn("layout: " + w)
	}
	return box, tree, nil
}
