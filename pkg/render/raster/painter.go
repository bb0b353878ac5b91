package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/matzehuels/ogforge/pkg/fonts"
	"github.com/matzehuels/ogforge/pkg/httputil"
	"github.com/matzehuels/ogforge/pkg/layout"
	"github.com/matzehuels/ogforge/pkg/render/bitmap"
)

// ErrNoFonts is returned when none of the painter's fonts can be parsed.
var ErrNoFonts = errors.New("no usable fonts")

// painter holds the process-lifetime state of the backend: the fallback
// font set, parsed once, and the client used for remote images.
type painter struct {
	fonts  []*fonts.Font
	client *httputil.Client
}

func newPainter(set []*fonts.Font, client *httputil.Client) (*painter, error) {
	p := &painter{client: client}
	for _, f := range set {
		if _, err := f.Parsed(); err == nil {
			p.fonts = append(p.fonts, f)
		}
	}
	if len(p.fonts) == 0 {
		return nil, ErrNoFonts
	}
	return p, nil
}

// faceKey identifies a sized face within one paint call.
type faceKey struct {
	font *fonts.Font
	size float64
}

// canvas is the per-render drawing state. Faces are not safe for
// concurrent use, so each render gets its own.
type canvas struct {
	ctx    context.Context
	dc     *gg.Context
	client *httputil.Client
	faces  map[faceKey]font.Face
	warn   func(string)
}

// paint draws a laid-out tree onto a width x height canvas. A nil
// background leaves the canvas transparent.
func (p *painter) paint(ctx context.Context, root *layout.Box, width, height int, background color.Color, warn func(string)) image.Image {
	c := &canvas{
		ctx:    ctx,
		dc:     gg.NewContext(width, height),
		client: p.client,
		faces:  map[faceKey]font.Face{},
		warn:   warn,
	}
	defer c.close()
	if background != nil {
		c.dc.SetColor(background)
		c.dc.Clear()
	}
	c.box(root, 1)
	return c.dc.Image()
}

func (c *canvas) close() {
	for _, f := range c.faces {
		f.Close()
	}
}

func (c *canvas) box(b *layout.Box, parentOpacity float64) {
	opacity := parentOpacity * b.Style.Opacity
	if opacity <= 0 {
		return
	}
	c.background(b, opacity)
	c.border(b, opacity)

	switch b.Kind {
	case layout.KindText:
		c.text(b, opacity)
	case layout.KindImage:
		cx, cy, cw, ch := b.ContentBox()
		c.image(b.Src, b.Style.ObjectFit, cx, cy, cw, ch, b.RadiusPx(), opacity)
	}

	clip := b.Kind == layout.KindContainer && b.Style.Overflow == "hidden" && len(b.Children) > 0
	if clip {
		c.dc.Push()
		c.dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, b.RadiusPx())
		c.dc.Clip()
	}
	for _, child := range b.Children {
		if child.Style.Position != "absolute" {
			c.box(child, opacity)
		}
	}
	for _, child := range b.Children {
		if child.Style.Position == "absolute" {
			c.box(child, opacity)
		}
	}
	if clip {
		c.dc.Pop()
	}
}

func (c *canvas) background(b *layout.Box, opacity float64) {
	r := b.RadiusPx()
	if bg := b.Style.Background; bg.A > 0 {
		c.dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, r)
		c.dc.SetColor(fade(bg, opacity))
		c.dc.Fill()
	}
	img := b.Style.BackgroundImage
	if img == "" {
		return
	}
	if g, ok := layout.ParseLinearGradient(img); ok {
		x0, y0, x1, y1 := g.Vector(b.W, b.H)
		grad := gg.NewLinearGradient(b.X+x0, b.Y+y0, b.X+x1, b.Y+y1)
		for _, s := range g.Stops {
			grad.AddColorStop(s.Offset, fade(s.Color, opacity))
		}
		c.dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, r)
		c.dc.SetFillStyle(grad)
		c.dc.Fill()
		return
	}
	if src, ok := layout.URL(img); ok {
		fit := "fill"
		if s := b.Style.BackgroundSize; s == "cover" || s == "contain" {
			fit = s
		}
		c.image(src, fit, b.X, b.Y, b.W, b.H, r, opacity)
	}
}

func (c *canvas) border(b *layout.Box, opacity float64) {
	bw := b.BorderWidth()
	if bw == [4]float64{} {
		return
	}
	bc := b.Style.BorderColor
	if bc.A == 0 {
		bc = color.NRGBA{0, 0, 0, 255}
	}
	c.dc.SetColor(fade(bc, opacity))
	if bw[0] == bw[1] && bw[1] == bw[2] && bw[2] == bw[3] {
		w := bw[0]
		c.dc.SetLineWidth(w)
		c.dc.DrawRoundedRectangle(b.X+w/2, b.Y+w/2, b.W-w, b.H-w, max(0, b.RadiusPx()-w/2))
		c.dc.Stroke()
		return
	}
	sides := [4][4]float64{
		{b.X, b.Y, b.W, bw[0]},
		{b.X + b.W - bw[1], b.Y, bw[1], b.H},
		{b.X, b.Y + b.H - bw[2], b.W, bw[2]},
		{b.X, b.Y, bw[3], b.H},
	}
	for _, s := range sides {
		if s[2] > 0 && s[3] > 0 {
			c.dc.DrawRectangle(s[0], s[1], s[2], s[3])
			c.dc.Fill()
		}
	}
}

func (c *canvas) text(b *layout.Box, opacity float64) {
	if b.Font == nil || len(b.Lines) == 0 {
		return
	}
	face, err := c.face(b.Font, b.Style.FontSize)
	if err != nil {
		c.warn(err.Error())
		return
	}
	c.dc.SetFontFace(face)
	c.dc.SetColor(fade(b.Style.Color, opacity))
	cx, cy, _, _ := b.ContentBox()
	spacing := b.Style.LetterSpacing
	for _, ln := range b.Lines {
		x, y := cx+ln.X, cy+ln.Baseline
		if spacing == 0 {
			c.dc.DrawString(ln.Text, x, y)
			continue
		}
		for _, r := range ln.Text {
			s := string(r)
			c.dc.DrawString(s, x, y)
			adv, _ := c.dc.MeasureString(s)
			x += adv + spacing
		}
	}
}

func (c *canvas) face(f *fonts.Font, size float64) (font.Face, error) {
	key := faceKey{f, size}
	if face, ok := c.faces[key]; ok {
		return face, nil
	}
	face, err := fonts.Face(f, size)
	if err != nil {
		return nil, err
	}
	c.faces[key] = face
	return face, nil
}

// image draws src fitted into the given rectangle, clipped to radius.
func (c *canvas) image(src, fit string, x, y, w, h, radius, opacity float64) {
	iw, ih := int(w+0.5), int(h+0.5)
	if iw <= 0 || ih <= 0 || src == "" {
		return
	}
	img, err := bitmap.Load(c.ctx, c.client, src, iw, ih)
	if err != nil {
		c.warn(fmt.Sprintf("image %s: %v", truncate(src, 80), err))
		return
	}
	fitted, offset := bitmap.Fit(img, iw, ih, fit)
	if opacity < 1 {
		fadeImage(fitted, opacity)
	}
	c.dc.Push()
	if radius > 0 {
		c.dc.DrawRoundedRectangle(x, y, w, h, radius)
		c.dc.Clip()
	}
	c.dc.DrawImage(fitted, int(x+0.5)+offset.X, int(y+0.5)+offset.Y)
	c.dc.Pop()
}

func fade(c color.NRGBA, opacity float64) color.NRGBA {
	c.A = uint8(float64(c.A)*opacity + 0.5)
	return c
}

func fadeImage(img *image.NRGBA, opacity float64) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(float64(img.Pix[i])*opacity + 0.5)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
