package emoji

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/matzehuels/ogforge/pkg/node"
)

// definitions are elements that only render when referenced from <defs>.
var definitions = map[string]bool{
	"linearGradient": true, "radialGradient": true, "filter": true,
	"mask": true, "pattern": true, "clipPath": true,
}

var (
	urlRef  = regexp.MustCompile(`url\(\s*['"]?#([^)'"\s]+)['"]?\s*\)`)
	hrefRef = regexp.MustCompile(`^#(.+)$`)
)

// Prepare makes an icon safe to embed next to other icons: every id is
// prefixed with a per-occurrence namespace and stray definitions at the top
// level are moved into a <defs> element.
func Prepare(svg *node.Node, occurrence int) {
	UniquifyIDs(svg, fmt.Sprintf("og-emoji-%d-", occurrence))
	WrapDefs(svg)
}

// UniquifyIDs prefixes every id in the subtree and rewrites url(#id),
// href="#id" and xlink:href="#id" references to match.
func UniquifyIDs(root *node.Node, prefix string) {
	ids := map[string]string{}
	root.Walk(func(n, _ *node.Node) bool {
		if id := n.Attr("id"); id != "" && !n.IsText() {
			ids[id] = prefix + id
			n.SetAttr("id", prefix+id)
		}
		return true
	})
	if len(ids) == 0 {
		return
	}

	rewrite := func(v string) string {
		return urlRef.ReplaceAllStringFunc(v, func(m string) string {
			id := urlRef.FindStringSubmatch(m)[1]
			if renamed, ok := ids[id]; ok {
				return "url(#" + renamed + ")"
			}
			return m
		})
	}
	root.Walk(func(n, _ *node.Node) bool {
		if n.IsText() {
			return false
		}
		for k, v := range n.Props {
			switch val := v.(type) {
			case string:
				if k == "href" || k == "xlink:href" {
					if m := hrefRef.FindStringSubmatch(val); m != nil {
						if renamed, ok := ids[m[1]]; ok {
							n.Props[k] = "#" + renamed
						}
						continue
					}
				}
				if strings.Contains(val, "url(") {
					n.Props[k] = rewrite(val)
				}
			case node.Style:
				for i, d := range val {
					if strings.Contains(d.Value, "url(") {
						val[i].Value = rewrite(d.Value)
					}
				}
			}
		}
		return true
	})
}

// WrapDefs moves top-level definition elements of an <svg> into a <defs>
// child, creating one if needed.
func WrapDefs(svg *node.Node) {
	var defs *node.Node
	var stray []*node.Node
	kept := svg.Children[:0]
	for _, c := range svg.Children {
		switch {
		case c.Type == "defs" && defs == nil:
			defs = c
			kept = append(kept, c)
		case definitions[c.Type]:
			stray = append(stray, c)
		default:
			kept = append(kept, c)
		}
	}
	svg.Children = kept
	if len(stray) == 0 {
		return
	}
	if defs == nil {
		defs = node.NewElement("defs")
		svg.Children = append([]*node.Node{defs}, svg.Children...)
	}
	defs.Children = append(defs.Children, stray...)
}
