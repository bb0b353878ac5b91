package layout

import (
	"image/color"
	"math"
	"strconv"
	"strings"
)

var namedColors = map[string]color.NRGBA{
	"transparent": {0, 0, 0, 0},
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"blue":        {0, 0, 255, 255},
	"yellow":      {255, 255, 0, 255},
	"orange":      {255, 165, 0, 255},
	"purple":      {128, 0, 128, 255},
	"pink":        {255, 192, 203, 255},
	"gray":        {128, 128, 128, 255},
	"grey":        {128, 128, 128, 255},
	"silver":      {192, 192, 192, 255},
	"navy":        {0, 0, 128, 255},
	"teal":        {0, 128, 128, 255},
	"maroon":      {128, 0, 0, 255},
	"olive":       {128, 128, 0, 255},
	"lime":        {0, 255, 0, 255},
	"aqua":        {0, 255, 255, 255},
	"cyan":        {0, 255, 255, 255},
	"fuchsia":     {255, 0, 255, 255},
	"magenta":     {255, 0, 255, 255},
}

// ParseColor parses hex, rgb(), rgba(), hsl(), hsla() and named colors.
func ParseColor(v string) (color.NRGBA, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if c, ok := namedColors[v]; ok {
		return c, true
	}
	if strings.HasPrefix(v, "#") {
		return parseHex(v[1:])
	}
	name, args, ok := strings.Cut(v, "(")
	if !ok || !strings.HasSuffix(args, ")") {
		return color.NRGBA{}, false
	}
	parts := colorArgs(strings.TrimSuffix(args, ")"))
	if len(parts) < 3 {
		return color.NRGBA{}, false
	}
	alpha := 1.0
	if len(parts) > 3 {
		alpha = parseAlpha(parts[3])
	}
	switch name {
	case "rgb", "rgba":
		var ch [3]uint8
		for i := range 3 {
			p := parts[i]
			var f float64
			if pct, ok := strings.CutSuffix(p, "%"); ok {
				f = parseFloat(pct, 0) * 255 / 100
			} else {
				f = parseFloat(p, 0)
			}
			ch[i] = uint8(math.Round(max(0, min(255, f))))
		}
		return color.NRGBA{ch[0], ch[1], ch[2], uint8(math.Round(alpha * 255))}, true
	case "hsl", "hsla":
		h := parseFloat(strings.TrimSuffix(parts[0], "deg"), 0)
		sat := parseFloat(strings.TrimSuffix(parts[1], "%"), 0) / 100
		l := parseFloat(strings.TrimSuffix(parts[2], "%"), 0) / 100
		r, g, b := hslToRGB(h, sat, l)
		return color.NRGBA{r, g, b, uint8(math.Round(alpha * 255))}, true
	}
	return color.NRGBA{}, false
}

// colorArgs splits "1, 2, 3" and "1 2 3 / 0.5" forms.
func colorArgs(s string) []string {
	s = strings.ReplaceAll(s, "/", " ")
	s = strings.ReplaceAll(s, ",", " ")
	return strings.Fields(s)
}

func parseAlpha(v string) float64 {
	if pct, ok := strings.CutSuffix(v, "%"); ok {
		return clamp01(parseFloat(pct, 100) / 100)
	}
	return clamp01(parseFloat(v, 1))
}

func parseHex(h string) (color.NRGBA, bool) {
	switch len(h) {
	case 3, 4:
		var full strings.Builder
		for _, r := range h {
			full.WriteRune(r)
			full.WriteRune(r)
		}
		return parseHex(full.String())
	case 6, 8:
		n, err := strconv.ParseUint(h, 16, 32)
		if err != nil {
			return color.NRGBA{}, false
		}
		if len(h) == 6 {
			return color.NRGBA{uint8(n >> 16), uint8(n >> 8), uint8(n), 255}, true
		}
		return color.NRGBA{uint8(n >> 24), uint8(n >> 16), uint8(n >> 8), uint8(n)}, true
	}
	return color.NRGBA{}, false
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	h = math.Mod(math.Mod(h, 360)+360, 360) / 360
	if s == 0 {
		v := uint8(math.Round(l * 255))
		return v, v, v
	}
	q := l * (1 + s)
	if l >= 0.5 {
		q = l + s - l*s
	}
	p := 2*l - q
	conv := func(t float64) uint8 {
		switch {
		case t < 0:
			t++
		case t > 1:
			t--
		}
		var v float64
		switch {
		case t < 1.0/6:
			v = p + (q-p)*6*t
		case t < 0.5:
			v = q
		case t < 2.0/3:
			v = p + (q-p)*(2.0/3-t)*6
		default:
			v = p
		}
		return uint8(math.Round(v * 255))
	}
	return conv(h + 1.0/3), conv(h), conv(h - 1.0/3)
}

// Hex formats c as #rrggbb, dropping alpha.
func Hex(c color.NRGBA) string {
	const digits = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{c.R, c.G, c.B} {
		b[1+2*i] = digits[v>>4]
		b[2+2*i] = digits[v&0x0f]
	}
	return string(b)
}

// Stop is one gradient color stop. Offset is in [0,1].
type Stop struct {
	Offset float64
	Color  color.NRGBA
}

// Gradient is a parsed linear-gradient().
type Gradient struct {
	// Angle in degrees, CSS convention: 0 points up, 90 points right.
	Angle float64
	Stops []Stop
}

var gradientKeywords = map[string]float64{
	"to top": 0, "to top right": 45, "to right top": 45, "to right": 90,
	"to bottom right": 135, "to right bottom": 135, "to bottom": 180,
	"to bottom left": 225, "to left bottom": 225, "to left": 270,
	"to top left": 315, "to left top": 315,
}

// ParseLinearGradient parses the first linear-gradient() in v.
func ParseLinearGradient(v string) (Gradient, bool) {
	start := strings.Index(v, "linear-gradient(")
	if start < 0 {
		return Gradient{}, false
	}
	open := start + len("linear-gradient")
	end := matchParen(v, open)
	if end < 0 {
		return Gradient{}, false
	}
	args := splitTopLevel(v[open+1 : end])
	g := Gradient{Angle: 180}
	if len(args) > 0 {
		first := strings.TrimSpace(args[0])
		if a, ok := gradientKeywords[first]; ok {
			g.Angle = a
			args = args[1:]
		} else if d, ok := strings.CutSuffix(first, "deg"); ok {
			g.Angle = parseFloat(d, 180)
			args = args[1:]
		} else if t, ok := strings.CutSuffix(first, "turn"); ok {
			g.Angle = parseFloat(t, 0.5) * 360
			args = args[1:]
		}
	}
	for i, a := range args {
		fields := splitOutsideParens(strings.TrimSpace(a))
		if len(fields) == 0 {
			continue
		}
		c, ok := ParseColor(fields[0])
		if !ok {
			continue
		}
		off := -1.0
		if len(fields) > 1 {
			if pct, ok := strings.CutSuffix(fields[1], "%"); ok {
				off = parseFloat(pct, 0) / 100
			}
		}
		if off < 0 {
			if len(args) > 1 {
				off = float64(i) / float64(len(args)-1)
			} else {
				off = 0
			}
		}
		g.Stops = append(g.Stops, Stop{off, c})
	}
	return g, len(g.Stops) > 0
}

// Vector returns the gradient line endpoints for a w x h box, in box
// coordinates.
func (g Gradient) Vector(w, h float64) (x0, y0, x1, y1 float64) {
	rad := g.Angle * math.Pi / 180
	dx, dy := math.Sin(rad), -math.Cos(rad)
	half := (math.Abs(w*dx) + math.Abs(h*dy)) / 2
	cx, cy := w/2, h/2
	return cx - dx*half, cy - dy*half, cx + dx*half, cy + dy*half
}

// splitTopLevel splits on commas outside parentheses.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// URL extracts the first url(...) target of a background-image value.
func URL(v string) (string, bool) {
	i := strings.Index(v, "url(")
	if i < 0 {
		return "", false
	}
	end := matchParen(v, i+3)
	if end < 0 {
		return "", false
	}
	return strings.Trim(strings.TrimSpace(v[i+4:end]), `"'`), true
}
