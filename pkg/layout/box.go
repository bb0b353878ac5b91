package layout

import (
	"strconv"
	"strings"

	"github.com/matzehuels/ogforge/pkg/fonts"
	"github.com/matzehuels/ogforge/pkg/node"
)

// Kind is what a box paints.
type Kind uint8

const (
	KindContainer Kind = iota
	KindText
	KindImage
	KindSVG
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindSVG:
		return "svg"
	}
	return "container"
}

// Box is one node of the layout tree. X and Y are absolute after
// [Engine.Layout].
type Box struct {
	Kind     Kind
	Tag      string
	Style    Style
	Children []*Box

	// Text content for KindText.
	Text string
	// Src of a KindImage.
	Src string
	// Node is the source element of a KindSVG.
	Node *node.Node
	// IntrinsicW and IntrinsicH are the natural size of replaced content.
	IntrinsicW, IntrinsicH float64

	X, Y, W, H float64
	Lines      []Line
	Font       *fonts.Font
}

// ContentBox returns the box's content rectangle.
func (b *Box) ContentBox() (x, y, w, h float64) {
	pl, pt := b.inset(left), b.inset(top)
	return b.X + pl, b.Y + pt, b.W - pl - b.inset(right), b.H - pt - b.inset(bottom)
}

// inset is padding plus border on one side.
func (b *Box) inset(side int) float64 {
	return b.Style.Padding[side].or(b.W, 0) + b.Style.Border[side].or(-1, 0)
}

// BorderWidth returns the top, right, bottom and left border widths.
func (b *Box) BorderWidth() [4]float64 {
	var out [4]float64
	for i := range out {
		out[i] = b.Style.Border[i].or(-1, 0)
	}
	return out
}

// RadiusPx is the used border radius.
func (b *Box) RadiusPx() float64 {
	r := b.Style.Radius.or(min(b.W, b.H), 0)
	return max(0, min(r, min(b.W, b.H)/2))
}

// Flatten returns the boxes in paint order: parents before children,
// absolutely positioned children after their in-flow siblings.
func (b *Box) Flatten() []*Box {
	var out []*Box
	var walk func(*Box)
	walk = func(x *Box) {
		out = append(out, x)
		for _, c := range x.Children {
			if c.Style.Position != "absolute" {
				walk(c)
			}
		}
		for _, c := range x.Children {
			if c.Style.Position == "absolute" {
				walk(c)
			}
		}
	}
	walk(b)
	return out
}

// Walk visits b and its descendants in paint order, stopping descent
// into a subtree when fn returns false.
func (b *Box) Walk(fn func(*Box) bool) {
	if !fn(b) {
		return
	}
	for _, c := range b.Children {
		if c.Style.Position != "absolute" {
			c.Walk(fn)
		}
	}
	for _, c := range b.Children {
		if c.Style.Position == "absolute" {
			c.Walk(fn)
		}
	}
}

// Build converts a normalized node tree into boxes. Elements with
// display:none are dropped and whitespace-only text is skipped.
func Build(root *node.Node, warn func(string)) *Box {
	parent := RootStyle()
	b := build(root, &parent, warn)
	if b == nil {
		b = &Box{Style: Inherit(parent)}
	}
	return b
}

func build(n *node.Node, parent *Style, warn func(string)) *Box {
	if n.IsText() {
		if strings.TrimSpace(n.Text) == "" {
			return nil
		}
		return NewText(n.Text, parent)
	}
	style := ParseStyle(n.Style(), *parent, warn)
	if style.Display == "none" {
		return nil
	}
	switch n.Type {
	case "svg":
		return NewSVG(n, style)
	case "img":
		return NewImage(n.Attr("src"), n, style)
	case "br", "script", "style", "template":
		return nil
	}
	b := &Box{Kind: KindContainer, Tag: n.Type, Style: style}
	for _, c := range n.Children {
		if cb := build(c, &b.Style, warn); cb != nil {
			b.Children = append(b.Children, cb)
		}
	}
	return b
}

// NewText returns an anonymous text box inheriting from parent.
func NewText(text string, parent *Style) *Box {
	s := Inherit(*parent)
	// The anonymous box carries its container's overflow handling.
	s.TextOverflow = parent.TextOverflow
	s.LineClamp = parent.LineClamp
	return &Box{Kind: KindText, Tag: node.TextType, Style: s, Text: Transform(text, s.TextTransform)}
}

// NewImage returns a replaced image box. Width and height attributes act
// as the natural size and as the used size when the style sets none.
func NewImage(src string, n *node.Node, style Style) *Box {
	b := &Box{Kind: KindImage, Tag: "img", Style: style, Src: src}
	if n != nil {
		b.IntrinsicW, b.IntrinsicH = attrSize(n)
		applyAttrSize(b)
	}
	return b
}

// NewSVG returns an inline SVG box. The natural size comes from the
// width/height attributes, then the viewBox.
func NewSVG(n *node.Node, style Style) *Box {
	b := &Box{Kind: KindSVG, Tag: "svg", Style: style, Node: n}
	b.IntrinsicW, b.IntrinsicH = attrSize(n)
	if b.IntrinsicW == 0 || b.IntrinsicH == 0 {
		if vb := strings.Fields(strings.ReplaceAll(n.Attr("viewBox"), ",", " ")); len(vb) == 4 {
			b.IntrinsicW, _ = strconv.ParseFloat(vb[2], 64)
			b.IntrinsicH, _ = strconv.ParseFloat(vb[3], 64)
		}
	}
	// em-sized icons resolve against the inherited font size.
	for _, attr := range []string{"width", "height"} {
		if v, ok := strings.CutSuffix(n.Attr(attr), "em"); ok {
			px := parseFloat(v, 1) * style.FontSize
			if attr == "width" && style.Width.IsAuto() {
				b.Style.Width = Px(px)
			}
			if attr == "height" && style.Height.IsAuto() {
				b.Style.Height = Px(px)
			}
		}
	}
	applyAttrSize(b)
	return b
}

func attrSize(n *node.Node) (float64, float64) {
	w, _ := strconv.ParseFloat(strings.TrimSuffix(n.Attr("width"), "px"), 64)
	h, _ := strconv.ParseFloat(strings.TrimSuffix(n.Attr("height"), "px"), 64)
	return w, h
}

func applyAttrSize(b *Box) {
	if b.Style.Width.IsAuto() && b.Style.Height.IsAuto() && b.IntrinsicW > 0 && b.IntrinsicH > 0 {
		b.Style.Width, b.Style.Height = Px(b.IntrinsicW), Px(b.IntrinsicH)
	}
}

// Info is the debug view of a laid-out box.
type Info struct {
	Kind     string   `json:"kind"`
	Tag      string   `json:"tag,omitempty"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	W        float64  `json:"w"`
	H        float64  `json:"h"`
	Font     string   `json:"font,omitempty"`
	Src      string   `json:"src,omitempty"`
	Lines    []string `json:"lines,omitempty"`
	Children []Info   `json:"children,omitempty"`
}

// Describe returns the debug view of b and its descendants. Data URIs are
// abbreviated.
func Describe(b *Box) Info {
	info := Info{Kind: b.Kind.String(), Tag: b.Tag, X: b.X, Y: b.Y, W: b.W, H: b.H, Src: b.Src}
	if strings.HasPrefix(info.Src, "data:") {
		head, _, _ := strings.Cut(info.Src, ",")
		info.Src = head + ",…"
	}
	if b.Font != nil {
		info.Font = b.Font.CacheKey
	}
	for _, l := range b.Lines {
		info.Lines = append(info.Lines, l.Text)
	}
	for _, c := range b.Children {
		info.Children = append(info.Children, Describe(c))
	}
	return info
}
