package vector

import (
	"strings"

	"github.com/matzehuels/ogforge/pkg/fonts"
	"github.com/matzehuels/ogforge/pkg/node"
)

// themeFonts resolves font theme variables that the tree does not define.
var themeFonts = map[string]string{
	"--font-sans":    "ui-sans-serif, system-ui, sans-serif",
	"--font-serif":   "ui-serif, serif",
	"--font-mono":    "ui-monospace, monospace",
	"--default-font": "sans-serif",
}

// referencedFamilies collects the font families named anywhere in the tree,
// expanding var(--font-*) references through custom properties declared in
// the tree or the default theme.
func referencedFamilies(root *node.Node) map[string]bool {
	vars := map[string]string{}
	var values []string
	root.Walk(func(n, _ *node.Node) bool {
		for _, d := range n.Style() {
			switch {
			case strings.HasPrefix(d.Property, "--font"):
				vars[d.Property] = d.Value
			case d.Property == "font-family":
				values = append(values, d.Value)
			}
		}
		if ff := n.Attr("font-family"); ff != "" {
			values = append(values, ff)
		}
		return true
	})

	out := map[string]bool{}
	var add func(v string, depth int)
	add = func(v string, depth int) {
		for _, part := range splitList(v) {
			part = strings.TrimSpace(part)
			if ref, ok := strings.CutPrefix(part, "var("); ok && depth < 4 {
				name, fallback, _ := strings.Cut(strings.TrimSuffix(ref, ")"), ",")
				name = strings.TrimSpace(name)
				if def, ok := vars[name]; ok {
					add(def, depth+1)
				} else if def, ok := themeFonts[name]; ok {
					add(def, depth+1)
				} else if fallback != "" {
					add(fallback, depth+1)
				}
				continue
			}
			for _, fam := range fonts.Families(part) {
				out[strings.ToLower(fam)] = true
			}
		}
	}
	for _, v := range values {
		add(v, 0)
	}
	return out
}

// filterFonts keeps the fonts whose family the tree references, plus the
// default (first) family, which unstyled text uses.
func filterFonts(root *node.Node, set []*fonts.Font) []*fonts.Font {
	if len(set) == 0 {
		return nil
	}
	used := referencedFamilies(root)
	used[strings.ToLower(set[0].Family)] = true
	var out []*fonts.Font
	for _, f := range set {
		if used[strings.ToLower(f.Family)] {
			out = append(out, f)
		}
	}
	return out
}

// splitList splits a comma-separated value, keeping var(...) arguments
// together.
func splitList(v string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, v[start:i])
				start = i + 1
			}
		}
	}
	return append(out, v[start:])
}
