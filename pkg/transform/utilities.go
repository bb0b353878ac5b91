package transform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/matzehuels/ogforge/pkg/node"
)

// spacing maps scale-based utility prefixes to the properties they set.
var spacing = map[string][]string{
	"p":      {"padding-top", "padding-right", "padding-bottom", "padding-left"},
	"px":     {"padding-left", "padding-right"},
	"py":     {"padding-top", "padding-bottom"},
	"pt":     {"padding-top"},
	"pr":     {"padding-right"},
	"pb":     {"padding-bottom"},
	"pl":     {"padding-left"},
	"m":      {"margin-top", "margin-right", "margin-bottom", "margin-left"},
	"mx":     {"margin-left", "margin-right"},
	"my":     {"margin-top", "margin-bottom"},
	"mt":     {"margin-top"},
	"mr":     {"margin-right"},
	"mb":     {"margin-bottom"},
	"ml":     {"margin-left"},
	"w":      {"width"},
	"h":      {"height"},
	"size":   {"width", "height"},
	"min-w":  {"min-width"},
	"min-h":  {"min-height"},
	"max-w":  {"max-width"},
	"max-h":  {"max-height"},
	"top":    {"top"},
	"right":  {"right"},
	"bottom": {"bottom"},
	"left":   {"left"},
	"inset":  {"top", "right", "bottom", "left"},
	"gap":    {"gap"},
	"gap-x":  {"column-gap"},
	"gap-y":  {"row-gap"},
	"basis":  {"flex-basis"},
}

// spacingPrefixes is spacing's keys, longest first, so gap-x wins over gap.
var spacingPrefixes = func() []string {
	keys := make([]string, 0, len(spacing))
	for k := range spacing {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

var fontSizes = map[string][2]string{
	"xs": {"12px", "16px"}, "sm": {"14px", "20px"}, "base": {"16px", "24px"},
	"lg": {"18px", "28px"}, "xl": {"20px", "28px"}, "2xl": {"24px", "32px"},
	"3xl": {"30px", "36px"}, "4xl": {"36px", "40px"}, "5xl": {"48px", "1"},
	"6xl": {"60px", "1"}, "7xl": {"72px", "1"}, "8xl": {"96px", "1"}, "9xl": {"128px", "1"},
}

var maxWidths = map[string]string{
	"xs": "320px", "sm": "384px", "md": "448px", "lg": "512px", "xl": "576px",
	"2xl": "672px", "3xl": "768px", "4xl": "896px", "5xl": "1024px",
	"6xl": "1152px", "7xl": "1280px", "prose": "65ch",
}

// Resolve returns the declarations of one utility (without variant
// prefixes). Exact class map entries win over scale rules.
func (m ClassMap) Resolve(utility string) (node.Style, bool) {
	if s, ok := m[utility]; ok {
		return append(node.Style(nil), s...), true
	}
	return resolveRule(utility)
}

func resolveRule(u string) (node.Style, bool) {
	neg := strings.HasPrefix(u, "-")
	u = strings.TrimPrefix(u, "-")

	for _, prefix := range spacingPrefixes {
		if !strings.HasPrefix(u, prefix+"-") {
			continue
		}
		raw := strings.TrimPrefix(u, prefix+"-")
		val, ok := spacingValue(prefix, raw)
		if !ok {
			break
		}
		if neg {
			val = "-" + val
		}
		var s node.Style
		for _, p := range spacing[prefix] {
			s = append(s, node.Declaration{Property: p, Value: val})
		}
		return s, true
	}
	if neg {
		return nil, false
	}

	switch {
	case strings.HasPrefix(u, "text-"):
		v := strings.TrimPrefix(u, "text-")
		if sz, ok := fontSizes[v]; ok {
			return decl("font-size", sz[0], "line-height", sz[1]), true
		}
		if a, ok := arbitrary(v); ok && looksLikeLength(a) {
			return decl("font-size", a), true
		}
		if c, ok := ColorValue(v); ok {
			return decl("color", c), true
		}
	case strings.HasPrefix(u, "bg-"):
		v := strings.TrimPrefix(u, "bg-")
		if a, ok := arbitrary(v); ok && strings.HasPrefix(a, "url(") {
			return decl("background-image", a), true
		}
		if c, ok := ColorValue(v); ok {
			return decl("background-color", c), true
		}
	case strings.HasPrefix(u, "border-"):
		if c, ok := ColorValue(strings.TrimPrefix(u, "border-")); ok {
			return decl("border-color", c), true
		}
	case strings.HasPrefix(u, "opacity-"):
		n, err := strconv.Atoi(strings.TrimPrefix(u, "opacity-"))
		if err == nil && n >= 0 && n <= 100 {
			return decl("opacity", strconv.FormatFloat(float64(n)/100, 'f', -1, 64)), true
		}
	case strings.HasPrefix(u, "rounded-"):
		if a, ok := arbitrary(strings.TrimPrefix(u, "rounded-")); ok {
			return decl("border-radius", a), true
		}
	case strings.HasPrefix(u, "leading-"):
		v := strings.TrimPrefix(u, "leading-")
		if a, ok := arbitrary(v); ok {
			return decl("line-height", a), true
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return decl("line-height", px(n*4)), true
		}
	case strings.HasPrefix(u, "font-["):
		if a, ok := arbitrary(strings.TrimPrefix(u, "font-")); ok {
			if _, err := strconv.Atoi(a); err == nil {
				return decl("font-weight", a), true
			}
			return decl("font-family", a), true
		}
	}
	return nil, false
}

func spacingValue(prefix, raw string) (string, bool) {
	if a, ok := arbitrary(raw); ok {
		return a, true
	}
	switch raw {
	case "px":
		return "1px", true
	case "auto":
		return "auto", true
	case "full":
		return "100%", true
	case "screen":
		if prefix == "h" || prefix == "min-h" || prefix == "max-h" {
			return "100vh", true
		}
		return "100vw", true
	case "min", "max", "fit":
		return raw + "-content", true
	}
	if prefix == "max-w" {
		if v, ok := maxWidths[raw]; ok {
			return v, true
		}
	}
	if num, den, ok := strings.Cut(raw, "/"); ok {
		a, err1 := strconv.ParseFloat(num, 64)
		b, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || b == 0 {
			return "", false
		}
		return strconv.FormatFloat(a/b*100, 'f', -1, 64) + "%", true
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || n < 0 {
		return "", false
	}
	return px(n * 4), true
}

// ColorValue resolves a utility color token such as "blue-500", "white",
// "[#ff0000]" or "black/50".
func ColorValue(token string) (string, bool) {
	name, alpha, hasAlpha := strings.Cut(token, "/")
	var c string
	if a, ok := arbitrary(name); ok {
		if !looksLikeColor(a) {
			return "", false
		}
		c = a
	} else if v, ok := namedColors[name]; ok {
		c = v
	} else {
		i := strings.LastIndex(name, "-")
		if i < 0 {
			return "", false
		}
		shade, err := strconv.Atoi(name[i+1:])
		if err != nil {
			return "", false
		}
		v, ok := palette[name[:i]][shade]
		if !ok {
			return "", false
		}
		c = v
	}
	if !hasAlpha {
		return c, true
	}
	pct, err := strconv.Atoi(alpha)
	if err != nil || !strings.HasPrefix(c, "#") || len(c) != 7 {
		return c, true
	}
	r, _ := strconv.ParseUint(c[1:3], 16, 8)
	g, _ := strconv.ParseUint(c[3:5], 16, 8)
	b, _ := strconv.ParseUint(c[5:7], 16, 8)
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b, strconv.FormatFloat(float64(pct)/100, 'f', -1, 64)), true
}

// arbitrary unwraps "[value]", turning underscores into spaces.
func arbitrary(v string) (string, bool) {
	if len(v) < 3 || v[0] != '[' || v[len(v)-1] != ']' {
		return "", false
	}
	return strings.ReplaceAll(v[1:len(v)-1], "_", " "), true
}

func looksLikeLength(v string) bool {
	for _, unit := range []string{"px", "rem", "em", "%", "vw", "vh"} {
		if strings.HasSuffix(v, unit) {
			return true
		}
	}
	return false
}

func looksLikeColor(v string) bool {
	return strings.HasPrefix(v, "#") || strings.HasPrefix(v, "rgb") || strings.HasPrefix(v, "hsl")
}

func px(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64) + "px"
}
