package transform

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/matzehuels/ogforge/pkg/node"
)

// ClassMap maps utility class names to the declarations they stand for.
// It is normally produced at build time from the site's stylesheet.
type ClassMap map[string]node.Style

// LoadClassMap reads a JSON file shaped {"class": {"property": "value"}}.
// Declarations within a class are ordered by property name.
func LoadClassMap(path string) (ClassMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read class map: %w", err)
	}
	var raw map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode class map %s: %w", path, err)
	}
	m := make(ClassMap, len(raw))
	for class, decls := range raw {
		props := make([]string, 0, len(decls))
		for p := range decls {
			props = append(props, p)
		}
		sort.Strings(props)
		var s node.Style
		for _, p := range props {
			s = append(s, node.Declaration{Property: p, Value: decls[p]})
		}
		m[class] = s
	}
	return m, nil
}

// Merge returns a copy of m with other's entries layered on top.
func (m ClassMap) Merge(other ClassMap) ClassMap {
	out := make(ClassMap, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func decl(pairs ...string) node.Style {
	var s node.Style
	for i := 0; i+1 < len(pairs); i += 2 {
		s = append(s, node.Declaration{Property: pairs[i], Value: pairs[i+1]})
	}
	return s
}

// BuiltinClasses covers the layout utilities that have a fixed meaning.
// Scale-based utilities (spacing, colors, sizes) are resolved by rule.
func BuiltinClasses() ClassMap {
	return ClassMap{
		"flex":         decl("display", "flex"),
		"inline-flex":  decl("display", "flex"),
		"block":        decl("display", "block"),
		"inline-block": decl("display", "block"),
		"hidden":       decl("display", "none"),
		"contents":     decl("display", "contents"),

		"flex-row":         decl("flex-direction", "row"),
		"flex-row-reverse": decl("flex-direction", "row-reverse"),
		"flex-col":         decl("flex-direction", "column"),
		"flex-col-reverse": decl("flex-direction", "column-reverse"),
		"flex-wrap":        decl("flex-wrap", "wrap"),
		"flex-nowrap":      decl("flex-wrap", "nowrap"),
		"flex-1":           decl("flex-grow", "1", "flex-shrink", "1", "flex-basis", "0%"),
		"flex-auto":        decl("flex-grow", "1", "flex-shrink", "1", "flex-basis", "auto"),
		"flex-none":        decl("flex-grow", "0", "flex-shrink", "0", "flex-basis", "auto"),
		"grow":             decl("flex-grow", "1"),
		"grow-0":           decl("flex-grow", "0"),
		"shrink":           decl("flex-shrink", "1"),
		"shrink-0":         decl("flex-shrink", "0"),

		"items-start":    decl("align-items", "flex-start"),
		"items-end":      decl("align-items", "flex-end"),
		"items-center":   decl("align-items", "center"),
		"items-baseline": decl("align-items", "baseline"),
		"items-stretch":  decl("align-items", "stretch"),
		"self-start":     decl("align-self", "flex-start"),
		"self-end":       decl("align-self", "flex-end"),
		"self-center":    decl("align-self", "center"),
		"self-stretch":   decl("align-self", "stretch"),

		"justify-start":   decl("justify-content", "flex-start"),
		"justify-end":     decl("justify-content", "flex-end"),
		"justify-center":  decl("justify-content", "center"),
		"justify-between": decl("justify-content", "space-between"),
		"justify-around":  decl("justify-content", "space-around"),
		"justify-evenly":  decl("justify-content", "space-evenly"),

		"relative": decl("position", "relative"),
		"absolute": decl("position", "absolute"),
		"static":   decl("position", "static"),

		"overflow-hidden":  decl("overflow", "hidden"),
		"overflow-visible": decl("overflow", "visible"),

		"text-left":         decl("text-align", "left"),
		"text-center":       decl("text-align", "center"),
		"text-right":        decl("text-align", "right"),
		"uppercase":         decl("text-transform", "uppercase"),
		"lowercase":         decl("text-transform", "lowercase"),
		"capitalize":        decl("text-transform", "capitalize"),
		"italic":            decl("font-style", "italic"),
		"not-italic":        decl("font-style", "normal"),
		"underline":         decl("text-decoration", "underline"),
		"line-through":      decl("text-decoration", "line-through"),
		"truncate":          decl("overflow", "hidden", "text-overflow", "ellipsis", "white-space", "nowrap"),
		"whitespace-nowrap": decl("white-space", "nowrap"),

		"font-thin":       decl("font-weight", "100"),
		"font-extralight": decl("font-weight", "200"),
		"font-light":      decl("font-weight", "300"),
		"font-normal":     decl("font-weight", "400"),
		"font-medium":     decl("font-weight", "500"),
		"font-semibold":   decl("font-weight", "600"),
		"font-bold":       decl("font-weight", "700"),
		"font-extrabold":  decl("font-weight", "800"),
		"font-black":      decl("font-weight", "900"),
		"font-sans":       decl("font-family", "sans-serif"),
		"font-mono":       decl("font-family", "monospace"),

		"leading-none":    decl("line-height", "1"),
		"leading-tight":   decl("line-height", "1.25"),
		"leading-snug":    decl("line-height", "1.375"),
		"leading-normal":  decl("line-height", "1.5"),
		"leading-relaxed": decl("line-height", "1.625"),
		"leading-loose":   decl("line-height", "2"),

		"tracking-tighter": decl("letter-spacing", "-0.05em"),
		"tracking-tight":   decl("letter-spacing", "-0.025em"),
		"tracking-normal":  decl("letter-spacing", "0em"),
		"tracking-wide":    decl("letter-spacing", "0.025em"),
		"tracking-wider":   decl("letter-spacing", "0.05em"),
		"tracking-widest":  decl("letter-spacing", "0.1em"),

		"rounded-none": decl("border-radius", "0px"),
		"rounded-sm":   decl("border-radius", "2px"),
		"rounded":      decl("border-radius", "4px"),
		"rounded-md":   decl("border-radius", "6px"),
		"rounded-lg":   decl("border-radius", "8px"),
		"rounded-xl":   decl("border-radius", "12px"),
		"rounded-2xl":  decl("border-radius", "16px"),
		"rounded-3xl":  decl("border-radius", "24px"),
		"rounded-full": decl("border-radius", "9999px"),

		"border":   decl("border-width", "1px", "border-style", "solid"),
		"border-0": decl("border-width", "0px"),
		"border-2": decl("border-width", "2px", "border-style", "solid"),
		"border-4": decl("border-width", "4px", "border-style", "solid"),
		"border-8": decl("border-width", "8px", "border-style", "solid"),

		"object-cover":   decl("object-fit", "cover"),
		"object-contain": decl("object-fit", "contain"),
		"object-fill":    decl("object-fit", "fill"),

		"bg-cover":     decl("background-size", "cover"),
		"bg-contain":   decl("background-size", "contain"),
		"bg-center":    decl("background-position", "center"),
		"bg-no-repeat": decl("background-repeat", "no-repeat"),
	}
}
