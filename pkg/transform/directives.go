package transform

import (
	"context"
	"sort"
	"strings"

	"github.com/matzehuels/ogforge/pkg/node"
	"github.com/matzehuels/ogforge/pkg/render"
)

// Breakpoints maps breakpoint names to their minimum render width in px.
type Breakpoints map[string]int

// DefaultBreakpoints returns the sm/md/lg/xl/2xl scale.
func DefaultBreakpoints() Breakpoints {
	return Breakpoints{"sm": 640, "md": 768, "lg": 1024, "xl": 1280, "2xl": 1536}
}

// Cascade priorities. Dark-mode classes beat responsive ones when both set
// the same property; larger breakpoints beat smaller ones.
const (
	prioBase       = 0
	prioResponsive = 10
	prioDark       = 100
)

var gradientDirections = map[string]string{
	"t": "to top", "tr": "to top right", "r": "to right", "br": "to bottom right",
	"b": "to bottom", "bl": "to bottom left", "l": "to left", "tl": "to top left",
}

// Directives resolves utility classes into inline declarations against the
// render width and color mode. Classes it cannot resolve are kept.
type Directives struct {
	Classes     ClassMap
	Breakpoints Breakpoints
	rank        map[string]int
}

// NewDirectives builds a resolver; nil arguments use the builtins.
func NewDirectives(classes ClassMap, bps Breakpoints) *Directives {
	if classes == nil {
		classes = BuiltinClasses()
	}
	if len(bps) == 0 {
		bps = DefaultBreakpoints()
	}
	names := make([]string, 0, len(bps))
	for name := range bps {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return bps[names[i]] < bps[names[j]] })
	rank := make(map[string]int, len(names))
	for i, name := range names {
		rank[name] = i + 1
	}
	return &Directives{Classes: classes, Breakpoints: bps, rank: rank}
}

func (d *Directives) Filter(n *node.Node) bool {
	return !n.IsText() && (n.HasAttr("class") || n.Type == "div")
}

type resolvedClass struct {
	style node.Style
	prio  int
}

type gradientPart struct {
	value string
	prio  int
	set   bool
}

func (g *gradientPart) offer(v string, prio int) {
	if !g.set || prio >= g.prio {
		g.value, g.prio, g.set = v, prio, true
	}
}

func (d *Directives) Transform(_ context.Context, n *node.Node, rc *render.Context) error {
	width := rc.Options.Width
	dark := rc.Options.Dark()

	var (
		keep     []string
		resolved []resolvedClass
		dir      gradientPart
		from     gradientPart
		via      gradientPart
		to       gradientPart
	)
	for _, cls := range n.Classes() {
		variants, util := splitVariants(cls)
		prio, ok := d.applies(variants, width, dark)
		if !ok {
			continue
		}

		switch {
		case strings.HasPrefix(util, "bg-gradient-to-"):
			if v, ok := gradientDirections[strings.TrimPrefix(util, "bg-gradient-to-")]; ok {
				dir.offer(v, prio)
				continue
			}
		case strings.HasPrefix(util, "from-"):
			if c, ok := ColorValue(strings.TrimPrefix(util, "from-")); ok {
				from.offer(c, prio)
				continue
			}
		case strings.HasPrefix(util, "via-"):
			if c, ok := ColorValue(strings.TrimPrefix(util, "via-")); ok {
				via.offer(c, prio)
				continue
			}
		case strings.HasPrefix(util, "to-"):
			if c, ok := ColorValue(strings.TrimPrefix(util, "to-")); ok {
				to.offer(c, prio)
				continue
			}
		}

		style, ok := d.Classes.Resolve(util)
		if !ok {
			if len(variants) == 0 {
				keep = append(keep, cls)
			}
			continue
		}
		resolved = append(resolved, resolvedClass{style, prio})
	}

	sort.SliceStable(resolved, func(i, j int) bool { return resolved[i].prio < resolved[j].prio })
	var out node.Style
	for _, r := range resolved {
		for _, decl := range r.style {
			out = out.Set(decl.Property, decl.Value)
		}
	}
	if dir.set && from.set {
		stops := []string{dir.value, from.value}
		if via.set {
			stops = append(stops, via.value)
		}
		if to.set {
			stops = append(stops, to.value)
		} else {
			stops = append(stops, "transparent")
		}
		out = out.Set("background-image", "linear-gradient("+strings.Join(stops, ", ")+")")
	}
	for _, decl := range n.Style() {
		out = out.Set(decl.Property, decl.Value)
	}
	if n.Type == "div" {
		if _, ok := out.Get("display"); !ok {
			out = out.Set("display", "flex")
		}
	}

	n.SetStyle(out)
	n.SetClasses(keep)
	return nil
}

// applies evaluates a class's variants. Unknown variants (hover:, focus:,
// print:, ...) never apply since there is no interaction in an image.
func (d *Directives) applies(variants []string, width int, dark bool) (int, bool) {
	prio := prioBase
	for _, v := range variants {
		switch {
		case v == "dark":
			if !dark {
				return 0, false
			}
			prio += prioDark
		case d.Breakpoints[v] > 0:
			if width < d.Breakpoints[v] {
				return 0, false
			}
			prio += prioResponsive + d.rank[v]
		case strings.HasPrefix(v, "max-") && d.Breakpoints[strings.TrimPrefix(v, "max-")] > 0:
			if width >= d.Breakpoints[strings.TrimPrefix(v, "max-")] {
				return 0, false
			}
			prio += prioResponsive
		default:
			return 0, false
		}
	}
	return prio, true
}

// splitVariants splits "dark:lg:bg-[url(a:b)]" into its variants and the
// utility, ignoring colons inside brackets.
func splitVariants(cls string) ([]string, string) {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(cls); i++ {
		switch cls[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 {
				parts = append(parts, cls[start:i])
				start = i + 1
			}
		}
	}
	return parts, cls[start:]
}
