package vector

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/matzehuels/ogforge/pkg/httputil"
	"github.com/matzehuels/ogforge/pkg/render/bitmap"
)

// rasterize paints a document onto an RGBA canvas. Runs of vector elements
// are rasterized together with oksvg; images and inline SVGs are drawn in
// between them so paint order is preserved. Clip groups only apply to the
// SVG output.
func rasterize(ctx context.Context, d *document, client *httputil.Client, background color.Color, warn func(string)) (*image.RGBA, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	if background != nil {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	}

	var pending []string
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		var doc strings.Builder
		doc.WriteString(d.header())
		if d.defs.Len() > 0 {
			doc.WriteString("<defs>")
			doc.Write(d.defs.Bytes())
			doc.WriteString("</defs>")
		}
		for _, m := range pending {
			doc.WriteString(m)
		}
		doc.WriteString("</svg>")
		pending = pending[:0]
		return bitmap.DrawSVG(canvas, doc.String(), 1)
	}

	for _, e := range d.elems {
		switch e.kind {
		case elemVector:
			pending = append(pending, e.markup)
		case elemImage:
			if err := flush(); err != nil {
				return nil, err
			}
			w, h := int(e.w+0.5), int(e.h+0.5)
			if w <= 0 || h <= 0 {
				continue
			}
			img, err := bitmap.Load(ctx, client, e.src, w, h)
			if err != nil {
				warn(fmt.Sprintf("image %s: %v", truncate(e.src, 80), err))
				continue
			}
			fitted, offset := bitmap.Fit(img, w, h, e.fit)
			bitmap.Composite(canvas, fitted, image.Pt(int(e.x+0.5), int(e.y+0.5)).Add(offset), e.radius, e.opacity)
		case elemSVG:
			if err := flush(); err != nil {
				return nil, err
			}
			w, h := int(e.w+0.5), int(e.h+0.5)
			if w <= 0 || h <= 0 {
				continue
			}
			layer, err := bitmap.RasterizeSVG(e.src, w, h)
			if err != nil {
				warn(fmt.Sprintf("inline svg: %v", err))
				continue
			}
			bitmap.Composite(canvas, layer, image.Pt(int(e.x+0.5), int(e.y+0.5)), 0, e.opacity)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return canvas, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
