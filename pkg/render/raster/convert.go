package raster

import (
	"encoding/base64"
	"strings"

	"github.com/matzehuels/ogforge/pkg/layout"
	"github.com/matzehuels/ogforge/pkg/node"
)

// unpaintable lists color functions the painter cannot draw. Any
// declaration using one, directly or through a custom property, is dropped
// before styles are computed.
var unpaintable = []string{"color-mix(", "oklch(", "oklab(", "lab(", "lch(", "color("}

// convert turns the normalized tree into container, image and text boxes.
// Elements whose only child is a string collapse into a text box that keeps
// the element's own style, and SVG subtrees become base64 image sources.
func convert(root *node.Node, warn func(string)) *layout.Box {
	parent := layout.RootStyle()
	b := convertNode(root, &parent, warn)
	if b == nil {
		b = &layout.Box{Style: layout.Inherit(parent)}
	}
	return b
}

func convertNode(n *node.Node, parent *layout.Style, warn func(string)) *layout.Box {
	if n.IsText() {
		if strings.TrimSpace(n.Text) == "" {
			return nil
		}
		return layout.NewText(n.Text, parent)
	}
	style := layout.ParseStyle(paintable(n.Style(), parent.Vars, warn), *parent, warn)
	if style.Display == "none" {
		return nil
	}
	switch n.Type {
	case "svg":
		return svgImage(n, style)
	case "img":
		return layout.NewImage(n.Attr("src"), n, style)
	case "br", "script", "style", "template":
		return nil
	}
	if text, ok := soleText(n); ok {
		return &layout.Box{
			Kind:  layout.KindText,
			Tag:   n.Type,
			Style: style,
			Text:  layout.Transform(text, style.TextTransform),
		}
	}
	b := &layout.Box{Kind: layout.KindContainer, Tag: n.Type, Style: style}
	for _, c := range n.Children {
		if cb := convertNode(c, &b.Style, warn); cb != nil {
			b.Children = append(b.Children, cb)
		}
	}
	return b
}

// paintable drops declarations the painter cannot resolve: var()
// references with neither a custom property in scope nor a fallback, and
// unsupported color functions. Custom property declarations are kept.
func paintable(decls node.Style, inherited map[string]string, warn func(string)) node.Style {
	scope := make(map[string]string, len(inherited))
	for k, v := range inherited {
		scope[k] = v
	}
	for _, d := range decls {
		if strings.HasPrefix(d.Property, "--") {
			scope[d.Property] = d.Value
		}
	}
	out := make(node.Style, 0, len(decls))
	for _, d := range decls {
		if strings.HasPrefix(d.Property, "--") {
			out = append(out, d)
			continue
		}
		v, ok := substituteVars(d.Value, scope)
		if !ok || containsAny(strings.ToLower(v), unpaintable) {
			warn("dropped " + d.Property + ": " + d.Value)
			continue
		}
		out = append(out, d)
	}
	return out
}

// substituteVars expands var(--name[, fallback]) references against scope.
// It reports false when a reference has no value and no fallback.
func substituteVars(v string, scope map[string]string) (string, bool) {
	for i := 0; i < 8; i++ {
		start := strings.Index(v, "var(")
		if start < 0 {
			return v, true
		}
		end := closingParen(v, start+3)
		if end < 0 {
			return v, false
		}
		name, fallback, hasFallback := strings.Cut(v[start+4:end], ",")
		val, ok := scope[strings.TrimSpace(name)]
		if !ok {
			if !hasFallback || strings.TrimSpace(fallback) == "" {
				return v, false
			}
			val = strings.TrimSpace(fallback)
		}
		v = v[:start] + val + v[end+1:]
	}
	return v, !strings.Contains(v, "var(")
}

func closingParen(s string, open int) int {
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

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// soleText returns the text of an element with exactly one non-blank text
// child. Elements that align their content keep the anonymous text box so
// the alignment still applies.
func soleText(n *node.Node) (string, bool) {
	if len(n.Children) != 1 || !n.Children[0].IsText() {
		return "", false
	}
	for _, prop := range []string{"justify-content", "align-items"} {
		if _, ok := n.StyleValue(prop); ok {
			return "", false
		}
	}
	text := n.Children[0].Text
	return text, strings.TrimSpace(text) != ""
}

// svgImage sizes an inline SVG like the layout engine does and replaces it
// with an image box whose source is the serialized subtree.
func svgImage(n *node.Node, style layout.Style) *layout.Box {
	b := layout.NewSVG(n, style)
	svg := n.Clone()
	if !svg.HasAttr("xmlns") {
		svg.SetAttr("xmlns", "http://www.w3.org/2000/svg")
	}
	b.Kind = layout.KindImage
	b.Tag = "img"
	b.Node = nil
	b.Src = "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(node.Markup(svg)))
	return b
}
