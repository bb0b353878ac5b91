package vector

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/matzehuels/ogforge/pkg/layout"
	"github.com/matzehuels/ogforge/pkg/node"
)

type elemKind uint8

const (
	elemVector elemKind = iota
	elemGroupOpen
	elemGroupClose
	elemImage
	elemSVG
)

// element is one paint operation. Image and SVG elements also carry
// markup for the SVG output; the PNG path draws them itself.
type element struct {
	kind    elemKind
	markup  string
	box     *layout.Box
	src     string
	fit     string
	opacity float64
	x, y    float64
	w, h    float64
	radius  float64
}

// document is a painted tree: shared definitions plus ordered elements.
type document struct {
	width, height int
	defs          bytes.Buffer
	elems         []element
	nextID        int
	buf           sfnt.Buffer
}

func (d *document) id(prefix string) string {
	d.nextID++
	return fmt.Sprintf("%s%d", prefix, d.nextID)
}

func (d *document) add(e element) { d.elems = append(d.elems, e) }

func (d *document) header() string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%d" height="%d" viewBox="0 0 %d %d">`,
		d.width, d.height, d.width, d.height)
}

// SVG returns the complete document.
func (d *document) SVG() []byte {
	var buf bytes.Buffer
	buf.WriteString(d.header())
	if d.defs.Len() > 0 {
		buf.WriteString("<defs>")
		buf.Write(d.defs.Bytes())
		buf.WriteString("</defs>")
	}
	for _, e := range d.elems {
		buf.WriteString(e.markup)
	}
	buf.WriteString("</svg>")
	return buf.Bytes()
}

// paint converts a laid-out box tree into a document.
func paint(root *layout.Box, width, height int) *document {
	d := &document{width: width, height: height}
	d.paintBox(root, 1)
	return d
}

func (d *document) paintBox(b *layout.Box, parentOpacity float64) {
	opacity := parentOpacity * b.Style.Opacity
	if opacity <= 0 {
		return
	}
	d.background(b, opacity)
	d.border(b, opacity)

	switch b.Kind {
	case layout.KindText:
		d.text(b, opacity)
	case layout.KindImage:
		d.image(b, b.Src, b.Style.ObjectFit, opacity)
	case layout.KindSVG:
		d.inlineSVG(b, opacity)
	}

	clip := b.Kind == layout.KindContainer && b.Style.Overflow == "hidden" && len(b.Children) > 0
	if clip {
		id := d.id("clip")
		fmt.Fprintf(&d.defs, `<clipPath id="%s">%s</clipPath>`, id, rectMarkup(b.X, b.Y, b.W, b.H, b.RadiusPx(), ""))
		d.add(element{kind: elemGroupOpen, markup: fmt.Sprintf(`<g clip-path="url(#%s)">`, id)})
	}
	for _, c := range b.Children {
		if c.Style.Position != "absolute" {
			d.paintBox(c, opacity)
		}
	}
	for _, c := range b.Children {
		if c.Style.Position == "absolute" {
			d.paintBox(c, opacity)
		}
	}
	if clip {
		d.add(element{kind: elemGroupClose, markup: "</g>"})
	}
}

func (d *document) background(b *layout.Box, opacity float64) {
	r := b.RadiusPx()
	if bg := b.Style.Background; bg.A > 0 {
		d.add(element{markup: rectMarkup(b.X, b.Y, b.W, b.H, r, fill(bg, opacity))})
	}
	img := b.Style.BackgroundImage
	if img == "" {
		return
	}
	if g, ok := layout.ParseLinearGradient(img); ok {
		id := d.id("grad")
		x0, y0, x1, y1 := g.Vector(b.W, b.H)
		fmt.Fprintf(&d.defs, `<linearGradient id="%s" gradientUnits="userSpaceOnUse" x1="%s" y1="%s" x2="%s" y2="%s">`,
			id, num(b.X+x0), num(b.Y+y0), num(b.X+x1), num(b.Y+y1))
		for _, s := range g.Stops {
			fmt.Fprintf(&d.defs, `<stop offset="%s" stop-color="%s" stop-opacity="%s"/>`,
				num(s.Offset), layout.Hex(s.Color), num(float64(s.Color.A)/255))
		}
		d.defs.WriteString("</linearGradient>")
		attrs := fmt.Sprintf(`fill="url(#%s)"`, id)
		if opacity < 1 {
			attrs += fmt.Sprintf(` fill-opacity="%s"`, num(opacity))
		}
		d.add(element{markup: rectMarkup(b.X, b.Y, b.W, b.H, r, attrs)})
		return
	}
	if src, ok := layout.URL(img); ok {
		fit := "fill"
		switch b.Style.BackgroundSize {
		case "cover":
			fit = "cover"
		case "contain":
			fit = "contain"
		}
		d.imageAt(b, src, fit, opacity, b.X, b.Y, b.W, b.H, r)
	}
}

func (d *document) border(b *layout.Box, opacity float64) {
	bc := b.Style.BorderColor
	if bc.A == 0 {
		bc = color.NRGBA{0, 0, 0, 255}
	}
	bw := b.BorderWidth()
	if bw == [4]float64{} {
		return
	}
	if bw[0] == bw[1] && bw[1] == bw[2] && bw[2] == bw[3] {
		w := bw[0]
		r := max(0, b.RadiusPx()-w/2)
		attrs := fmt.Sprintf(`fill="none" stroke="%s" stroke-width="%s"`, layout.Hex(bc), num(w))
		if a := float64(bc.A) / 255 * opacity; a < 1 {
			attrs += fmt.Sprintf(` stroke-opacity="%s"`, num(a))
		}
		d.add(element{markup: rectMarkup(b.X+w/2, b.Y+w/2, b.W-w, b.H-w, r, attrs)})
		return
	}
	f := fill(bc, opacity)
	sides := [4][4]float64{
		{b.X, b.Y, b.W, bw[0]},
		{b.X + b.W - bw[1], b.Y, bw[1], b.H},
		{b.X, b.Y + b.H - bw[2], b.W, bw[2]},
		{b.X, b.Y, bw[3], b.H},
	}
	for _, s := range sides {
		if s[2] > 0 && s[3] > 0 {
			d.add(element{markup: rectMarkup(s[0], s[1], s[2], s[3], 0, f)})
		}
	}
}

func (d *document) text(b *layout.Box, opacity float64) {
	if b.Font == nil || len(b.Lines) == 0 {
		return
	}
	f, err := b.Font.Parsed()
	if err != nil {
		return
	}
	cx, cy, _, _ := b.ContentBox()
	attrs := fill(b.Style.Color, opacity)
	for _, ln := range b.Lines {
		if ln.Text == "" {
			continue
		}
		path := glyphPath(f, &d.buf, ln.Text, b.Style.FontSize, cx+ln.X, cy+ln.Baseline, b.Style.LetterSpacing)
		if path != "" {
			d.add(element{markup: fmt.Sprintf(`<path d="%s" %s/>`, path, attrs)})
		}
	}
}

func (d *document) image(b *layout.Box, src, fit string, opacity float64) {
	if src == "" {
		return
	}
	if fit == "" {
		fit = "fill"
	}
	cx, cy, cw, ch := b.ContentBox()
	d.imageAt(b, src, fit, opacity, cx, cy, cw, ch, b.RadiusPx())
}

func (d *document) imageAt(b *layout.Box, src, fit string, opacity, x, y, w, h, radius float64) {
	par := "none"
	switch fit {
	case "cover":
		par = "xMidYMid slice"
	case "contain", "scale-down":
		par = "xMidYMid meet"
	}
	var markup strings.Builder
	clip := ""
	if radius > 0 {
		id := d.id("clip")
		fmt.Fprintf(&d.defs, `<clipPath id="%s">%s</clipPath>`, id, rectMarkup(x, y, w, h, radius, ""))
		clip = fmt.Sprintf(` clip-path="url(#%s)"`, id)
	}
	fmt.Fprintf(&markup, `<image href="%s" x="%s" y="%s" width="%s" height="%s" preserveAspectRatio="%s"%s`,
		escapeAttr(src), num(x), num(y), num(w), num(h), par, clip)
	if opacity < 1 {
		fmt.Fprintf(&markup, ` opacity="%s"`, num(opacity))
	}
	markup.WriteString("/>")
	d.add(element{kind: elemImage, markup: markup.String(), box: b, src: src, fit: fit,
		opacity: opacity, x: x, y: y, w: w, h: h, radius: radius})
}

func (d *document) inlineSVG(b *layout.Box, opacity float64) {
	if b.Node == nil {
		return
	}
	cx, cy, cw, ch := b.ContentBox()
	svg := b.Node.Clone()
	svg.SetAttr("x", num(cx))
	svg.SetAttr("y", num(cy))
	svg.SetAttr("width", num(cw))
	svg.SetAttr("height", num(ch))
	svg.DelAttr("style")
	svg.DelAttr("class")
	if opacity < 1 {
		svg.SetAttr("opacity", num(opacity))
	}
	standalone := b.Node.Clone()
	standalone.DelAttr("style")
	standalone.DelAttr("class")
	standalone.SetAttr("width", num(cw))
	standalone.SetAttr("height", num(ch))
	if standalone.Attr("viewBox") == "" && b.IntrinsicW > 0 {
		standalone.SetAttr("viewBox", fmt.Sprintf("0 0 %s %s", num(b.IntrinsicW), num(b.IntrinsicH)))
	}
	d.add(element{kind: elemSVG, markup: node.Markup(svg), box: b, src: node.Markup(standalone),
		opacity: opacity, x: cx, y: cy, w: cw, h: ch})
}

// glyphPath returns the outline of text as SVG path data with the pen
// starting at (x, baseline).
func glyphPath(f *sfnt.Font, buf *sfnt.Buffer, text string, size, x, baseline, spacing float64) string {
	ppem := fixed.Int26_6(size * 64)
	var (
		b    strings.Builder
		pen  = x
		prev sfnt.GlyphIndex
	)
	for i, r := range text {
		idx, err := f.GlyphIndex(buf, r)
		if err != nil {
			continue
		}
		if i > 0 {
			if k, err := f.Kern(buf, prev, idx, ppem, font.HintingNone); err == nil {
				pen += float64(k) / 64
			}
		}
		segs, err := f.LoadGlyph(buf, idx, ppem, nil)
		if err == nil {
			open := false
			for _, s := range segs {
				pt := func(j int) string {
					return num(pen+float64(s.Args[j].X)/64) + " " + num(baseline+float64(s.Args[j].Y)/64)
				}
				switch s.Op {
				case sfnt.SegmentOpMoveTo:
					if open {
						b.WriteString("Z")
					}
					b.WriteString("M" + pt(0))
					open = true
				case sfnt.SegmentOpLineTo:
					b.WriteString("L" + pt(0))
				case sfnt.SegmentOpQuadTo:
					b.WriteString("Q" + pt(0) + " " + pt(1))
				case sfnt.SegmentOpCubeTo:
					b.WriteString("C" + pt(0) + " " + pt(1) + " " + pt(2))
				}
			}
			if open {
				b.WriteString("Z")
			}
		}
		if adv, err := f.GlyphAdvance(buf, idx, ppem, font.HintingNone); err == nil {
			pen += float64(adv) / 64
		}
		pen += spacing
		prev = idx
	}
	return b.String()
}

func rectMarkup(x, y, w, h, r float64, attrs string) string {
	if w <= 0 || h <= 0 {
		return ""
	}
	rx := ""
	if r > 0 {
		rx = fmt.Sprintf(` rx="%s" ry="%s"`, num(r), num(r))
	}
	if attrs != "" {
		attrs = " " + attrs
	}
	return fmt.Sprintf(`<rect x="%s" y="%s" width="%s" height="%s"%s%s/>`, num(x), num(y), num(w), num(h), rx, attrs)
}

func fill(c color.NRGBA, opacity float64) string {
	s := fmt.Sprintf(`fill="%s"`, layout.Hex(c))
	if a := float64(c.A) / 255 * opacity; a < 1 {
		s += fmt.Sprintf(` fill-opacity="%s"`, num(a))
	}
	return s
}

func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;")

func escapeAttr(s string) string { return attrEscaper.Replace(s) }
