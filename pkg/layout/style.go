package layout

import (
	"image/color"
	"strconv"
	"strings"

	"github.com/matzehuels/ogforge/pkg/node"
)

// Unit is the unit of a [Length].
type Unit uint8

const (
	UnitAuto Unit = iota
	UnitPx
	UnitPercent
)

// Length is a CSS length after em/rem conversion.
type Length struct {
	Value float64
	Unit  Unit
}

// Auto is the zero Length.
var Auto = Length{}

// Px returns a pixel length.
func Px(v float64) Length { return Length{v, UnitPx} }

// IsAuto reports whether l is unset.
func (l Length) IsAuto() bool { return l.Unit == UnitAuto }

// Resolve returns l in px against base. ok is false for auto lengths and
// for percentages of an indefinite base (negative).
func (l Length) Resolve(base float64) (float64, bool) {
	switch l.Unit {
	case UnitPx:
		return l.Value, true
	case UnitPercent:
		if base < 0 {
			return 0, false
		}
		return l.Value * base / 100, true
	}
	return 0, false
}

// or resolves l, returning def when it does not resolve.
func (l Length) or(base, def float64) float64 {
	if v, ok := l.Resolve(base); ok {
		return v
	}
	return def
}

// Edges holds per-side lengths in top, right, bottom, left order.
type Edges [4]Length

const (
	top = iota
	right
	bottom
	left
)

// Style is the computed style of one box.
type Style struct {
	Display       string
	Position      string
	Direction     string
	Wrap          bool
	Justify       string
	AlignItems    string
	AlignSelf     string
	Grow          float64
	Shrink        float64
	Basis         Length
	Width, Height Length
	MinW, MinH    Length
	MaxW, MaxH    Length
	Padding       Edges
	Margin        Edges
	AutoMargin    [4]bool
	Border        Edges
	Inset         Edges
	RowGap        float64
	ColumnGap     float64
	Overflow      string
	Opacity       float64

	Background      color.NRGBA
	BackgroundImage string
	BackgroundSize  string
	BorderColor     color.NRGBA
	Radius          Length
	ObjectFit       string

	// Inherited text properties.
	Color         color.NRGBA
	FontFamily    string
	FontSize      float64
	FontWeight    int
	FontStyle     string
	LineHeight    float64
	LetterSpacing float64
	TextAlign     string
	TextTransform string
	WhiteSpace    string
	TextOverflow  string
	LineClamp     int

	// Vars are the custom properties in scope.
	Vars map[string]string
}

// DefaultFontSize is the root font size used for rem units.
const DefaultFontSize = 16

// RootStyle is the style the tree root inherits from.
func RootStyle() Style {
	return Style{
		Color:      color.NRGBA{0, 0, 0, 255},
		FontFamily: "sans-serif",
		FontSize:   DefaultFontSize,
		FontWeight: 400,
		FontStyle:  "normal",
		TextAlign:  "left",
		WhiteSpace: "normal",
	}
}

// Inherit returns the inherited subset of parent with every box property
// reset to its initial value.
func Inherit(parent Style) Style {
	return Style{
		Display:       "flex",
		Position:      "relative",
		Direction:     "row",
		Justify:       "flex-start",
		AlignItems:    "stretch",
		Shrink:        1,
		Opacity:       1,
		Color:         parent.Color,
		FontFamily:    parent.FontFamily,
		FontSize:      parent.FontSize,
		FontWeight:    parent.FontWeight,
		FontStyle:     parent.FontStyle,
		LineHeight:    parent.LineHeight,
		LetterSpacing: parent.LetterSpacing,
		TextAlign:     parent.TextAlign,
		TextTransform: parent.TextTransform,
		WhiteSpace:    parent.WhiteSpace,
		Vars:          parent.Vars,
	}
}

// unsupported lists properties that have no effect here.
var unsupported = map[string]bool{
	"transform": true, "box-shadow": true, "filter": true, "backdrop-filter": true,
	"text-shadow": true, "clip-path": true, "mask": true, "mask-image": true,
	"grid-template-columns": true, "grid-template-rows": true, "animation": true,
	"transition": true, "mix-blend-mode": true,
}

// ParseStyle computes a box style from declarations and the parent style.
// Unsupported declarations are reported through warn, which may be nil.
func ParseStyle(decls node.Style, parent Style, warn func(string)) Style {
	s := Inherit(parent)
	if warn == nil {
		warn = func(string) {}
	}

	// Custom properties and font-size first: other values depend on them.
	for _, d := range decls {
		if strings.HasPrefix(d.Property, "--") {
			vars := make(map[string]string, len(s.Vars)+1)
			for k, v := range s.Vars {
				vars[k] = v
			}
			vars[d.Property] = d.Value
			s.Vars = vars
		}
	}
	for _, d := range decls {
		if d.Property == "font-size" {
			if l, ok := s.length(s.expand(d.Value), parent.FontSize); ok {
				if v, ok := l.Resolve(parent.FontSize); ok {
					s.FontSize = v
				}
			}
		}
	}

	for _, d := range decls {
		v := s.expand(d.Value)
		switch d.Property {
		case "display":
			switch v {
			case "flex", "inline-flex":
				s.Display = "flex"
			case "none":
				s.Display = "none"
			case "block", "inline-block", "inline", "list-item":
				s.Display = "block"
				s.Direction = "column"
			default:
				warn("unsupported display: " + v)
			}
		case "position":
			if v == "absolute" || v == "relative" || v == "static" {
				s.Position = v
			} else {
				warn("unsupported position: " + v)
			}
		case "flex-direction":
			s.Direction = v
		case "flex-wrap":
			s.Wrap = v == "wrap" || v == "wrap-reverse"
		case "flex":
			s.parseFlex(v)
		case "flex-grow":
			s.Grow = parseFloat(v, 0)
		case "flex-shrink":
			s.Shrink = parseFloat(v, 1)
		case "flex-basis":
			s.Basis, _ = s.length(v, s.FontSize)
		case "justify-content":
			s.Justify = v
		case "align-items":
			s.AlignItems = v
		case "align-self":
			s.AlignSelf = v
		case "width":
			s.Width, _ = s.length(v, s.FontSize)
		case "height":
			s.Height, _ = s.length(v, s.FontSize)
		case "min-width":
			s.MinW, _ = s.length(v, s.FontSize)
		case "min-height":
			s.MinH, _ = s.length(v, s.FontSize)
		case "max-width":
			s.MaxW, _ = s.length(v, s.FontSize)
		case "max-height":
			s.MaxH, _ = s.length(v, s.FontSize)
		case "padding":
			s.Padding = s.edges(v)
		case "padding-top":
			s.Padding[top], _ = s.length(v, s.FontSize)
		case "padding-right":
			s.Padding[right], _ = s.length(v, s.FontSize)
		case "padding-bottom":
			s.Padding[bottom], _ = s.length(v, s.FontSize)
		case "padding-left":
			s.Padding[left], _ = s.length(v, s.FontSize)
		case "margin":
			s.Margin = s.edges(v)
			for i, f := range expandEdges(strings.Fields(v)) {
				s.AutoMargin[i] = f == "auto"
			}
		case "margin-top", "margin-right", "margin-bottom", "margin-left":
			side := sideIndex(strings.TrimPrefix(d.Property, "margin-"))
			s.Margin[side], _ = s.length(v, s.FontSize)
			s.AutoMargin[side] = v == "auto"
		case "top":
			s.Inset[top], _ = s.length(v, s.FontSize)
		case "right":
			s.Inset[right], _ = s.length(v, s.FontSize)
		case "bottom":
			s.Inset[bottom], _ = s.length(v, s.FontSize)
		case "left":
			s.Inset[left], _ = s.length(v, s.FontSize)
		case "inset":
			s.Inset = s.edges(v)
		case "gap":
			parts := strings.Fields(v)
			if len(parts) > 0 {
				s.RowGap = s.px(parts[0])
				s.ColumnGap = s.RowGap
			}
			if len(parts) > 1 {
				s.ColumnGap = s.px(parts[1])
			}
		case "row-gap":
			s.RowGap = s.px(v)
		case "column-gap":
			s.ColumnGap = s.px(v)
		case "overflow":
			s.Overflow = v
		case "opacity":
			if pct, ok := strings.CutSuffix(v, "%"); ok {
				s.Opacity = clamp01(parseFloat(pct, 100) / 100)
			} else {
				s.Opacity = clamp01(parseFloat(v, 1))
			}
		case "background-color":
			if c, ok := ParseColor(v); ok {
				s.Background = c
			}
		case "background":
			s.parseBackground(v)
		case "background-image":
			s.BackgroundImage = v
		case "background-size":
			s.BackgroundSize = v
		case "border":
			s.parseBorder(v, -1)
		case "border-top", "border-right", "border-bottom", "border-left":
			s.parseBorder(v, sideIndex(strings.TrimPrefix(d.Property, "border-")))
		case "border-width":
			s.Border = s.edges(v)
		case "border-color":
			if c, ok := ParseColor(v); ok {
				s.BorderColor = c
			}
		case "border-style":
			if v == "none" {
				s.Border = Edges{}
			}
		case "border-radius":
			s.Radius, _ = s.length(strings.Fields(v + " 0")[0], s.FontSize)
		case "object-fit":
			s.ObjectFit = v
		case "color":
			if c, ok := ParseColor(v); ok {
				s.Color = c
			}
		case "font-family":
			s.FontFamily = v
		case "font-weight":
			s.FontWeight = parseWeight(v, parent.FontWeight)
		case "font-style":
			s.FontStyle = v
		case "line-height":
			s.LineHeight = s.lineHeight(v)
		case "letter-spacing":
			s.LetterSpacing = s.px(v)
		case "text-align":
			s.TextAlign = v
		case "text-transform":
			s.TextTransform = v
		case "white-space":
			s.WhiteSpace = v
		case "text-overflow":
			s.TextOverflow = v
		case "line-clamp", "-webkit-line-clamp":
			s.LineClamp = int(parseFloat(v, 0))
		case "font-size":
		default:
			if unsupported[d.Property] {
				warn("unsupported property: " + d.Property)
			}
		}
	}
	return s
}

// expand substitutes var(--name[, fallback]) references.
func (s *Style) expand(v string) string {
	for i := 0; i < 8 && strings.Contains(v, "var("); i++ {
		start := strings.Index(v, "var(")
		end := matchParen(v, start+3)
		if end < 0 {
			return v
		}
		inner := v[start+4 : end]
		name, fallback, _ := strings.Cut(inner, ",")
		val, ok := s.Vars[strings.TrimSpace(name)]
		if !ok {
			val = strings.TrimSpace(fallback)
		}
		v = v[:start] + val + v[end+1:]
	}
	return strings.TrimSpace(v)
}

func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// length parses a CSS length. em resolves against fontSize, rem against
// the default root size.
func (s *Style) length(v string, fontSize float64) (Length, bool) {
	v = strings.TrimSpace(v)
	switch {
	case v == "" || v == "auto":
		return Auto, v == "auto"
	case strings.HasSuffix(v, "%"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		return Length{f, UnitPercent}, err == nil
	case strings.HasSuffix(v, "rem"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "rem"), 64)
		return Px(f * DefaultFontSize), err == nil
	case strings.HasSuffix(v, "em"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "em"), 64)
		return Px(f * fontSize), err == nil
	case strings.HasSuffix(v, "px"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
		return Px(f), err == nil
	case strings.HasSuffix(v, "pt"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "pt"), 64)
		return Px(f * 4 / 3), err == nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return Auto, false
	}
	return Px(f), true
}

func (s *Style) px(v string) float64 {
	l, _ := s.length(v, s.FontSize)
	return l.or(-1, 0)
}

// edges expands a 1-4 value shorthand.
func (s *Style) edges(v string) Edges {
	var out Edges
	for i, f := range expandEdges(strings.Fields(v)) {
		out[i], _ = s.length(f, s.FontSize)
	}
	return out
}

// expandEdges maps 1-4 shorthand values onto top, right, bottom, left.
func expandEdges(vs []string) [4]string {
	switch len(vs) {
	case 1:
		return [4]string{vs[0], vs[0], vs[0], vs[0]}
	case 2:
		return [4]string{vs[0], vs[1], vs[0], vs[1]}
	case 3:
		return [4]string{vs[0], vs[1], vs[2], vs[1]}
	case 4:
		return [4]string{vs[0], vs[1], vs[2], vs[3]}
	}
	return [4]string{}
}

func (s *Style) parseFlex(v string) {
	switch v {
	case "none":
		s.Grow, s.Shrink, s.Basis = 0, 0, Auto
		return
	case "auto":
		s.Grow, s.Shrink, s.Basis = 1, 1, Auto
		return
	}
	parts := strings.Fields(v)
	if len(parts) == 0 {
		return
	}
	s.Grow = parseFloat(parts[0], 0)
	s.Shrink = 1
	s.Basis = Px(0)
	for _, p := range parts[1:] {
		if f, err := strconv.ParseFloat(p, 64); err == nil {
			s.Shrink = f
		} else if l, ok := s.length(p, s.FontSize); ok {
			s.Basis = l
		}
	}
}

func (s *Style) parseBackground(v string) {
	if strings.Contains(v, "gradient(") || strings.Contains(v, "url(") {
		s.BackgroundImage = v
		return
	}
	if c, ok := ParseColor(v); ok {
		s.Background = c
	}
}

// parseBorder reads "1px solid #ccc" for one side, or all sides when side
// is negative.
func (s *Style) parseBorder(v string, side int) {
	width := Px(0)
	for _, f := range splitOutsideParens(v) {
		if l, ok := s.length(f, s.FontSize); ok && l.Unit == UnitPx {
			width = l
		} else if f == "none" {
			width = Px(0)
		} else if c, ok := ParseColor(f); ok {
			s.BorderColor = c
		} else if f == "solid" || f == "dashed" || f == "dotted" {
			if width.Value == 0 {
				width = Px(1)
			}
		}
	}
	if side < 0 {
		s.Border = Edges{width, width, width, width}
		return
	}
	s.Border[side] = width
}

func (s *Style) lineHeight(v string) float64 {
	if v == "normal" {
		return 0
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f * s.FontSize
	}
	l, _ := s.length(v, s.FontSize)
	if l.Unit == UnitPercent {
		return l.Value * s.FontSize / 100
	}
	return l.or(-1, 0)
}

// LineHeightPx is the used line height.
func (s *Style) LineHeightPx() float64 {
	if s.LineHeight > 0 {
		return s.LineHeight
	}
	return s.FontSize * 1.2
}

// Italic reports whether the text style is italic or oblique.
func (s *Style) Italic() string {
	if s.FontStyle == "italic" || s.FontStyle == "oblique" {
		return "italic"
	}
	return "normal"
}

func sideIndex(name string) int {
	switch name {
	case "top":
		return top
	case "right":
		return right
	case "bottom":
		return bottom
	}
	return left
}

func parseWeight(v string, parent int) int {
	switch v {
	case "normal":
		return 400
	case "bold":
		return 700
	case "bolder":
		return min(parent+300, 900)
	case "lighter":
		return max(parent-300, 100)
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return parent
}

func parseFloat(v string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func clamp01(f float64) float64 {
	return max(0, min(1, f))
}

// splitOutsideParens splits on whitespace that is not inside parentheses.
func splitOutsideParens(v string) []string {
	var out []string
	depth, start := 0, -1
	for i, r := range v {
		switch {
		case r == '(':
			depth++
		case r == ')':
			depth--
		case (r == ' ' || r == '\t') && depth == 0:
			if start >= 0 {
				out = append(out, v[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, v[start:])
	}
	return out
}
