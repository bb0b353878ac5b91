package transform

import (
	"context"

	"github.com/matzehuels/ogforge/pkg/emoji"
	"github.com/matzehuels/ogforge/pkg/node"
	"github.com/matzehuels/ogforge/pkg/render"
)

// svgTextTypes never receive substitutions; their text is SVG content.
var svgTextTypes = map[string]bool{
	"svg": true, "text": true, "tspan": true, "textPath": true, "title": true, "desc": true, "style": true,
}

// Emoji replaces emoji in text children with inline SVG icons from the
// configured set. Every substituted icon gets its own id namespace.
type Emoji struct {
	Resolver *emoji.Resolver
}

// NewEmoji returns the emoji transformer.
func NewEmoji(resolver *emoji.Resolver) *Emoji {
	if resolver == nil {
		resolver = emoji.NewResolver(emoji.Config{Bundled: true})
	}
	return &Emoji{Resolver: resolver}
}

func (e *Emoji) Filter(n *node.Node) bool {
	if n.IsText() || svgTextTypes[n.Type] {
		return false
	}
	for _, c := range n.Children {
		if c.IsText() && emoji.Contains(c.Text) {
			return true
		}
	}
	return false
}

func (e *Emoji) Transform(ctx context.Context, n *node.Node, rc *render.Context) error {
	set := rc.Options.Emojis
	changed := false
	children := make([]*node.Node, 0, len(n.Children))
	for _, c := range n.Children {
		if !c.IsText() || !emoji.Contains(c.Text) {
			children = append(children, c)
			continue
		}
		text := c.Text
		last := 0
		for _, loc := range emoji.Pattern.FindAllStringIndex(text, -1) {
			icon := e.icon(ctx, set, text[loc[0]:loc[1]], rc)
			if icon == nil {
				continue
			}
			if loc[0] > last {
				children = append(children, node.NewText(text[last:loc[0]]))
			}
			children = append(children, icon)
			last = loc[1]
			changed = true
		}
		if last < len(text) {
			children = append(children, node.NewText(text[last:]))
		}
	}
	if !changed {
		return nil
	}
	n.Children = children
	n.SetStyleValue("display", "flex")
	n.SetStyleValue("align-items", "center")
	return nil
}

func (e *Emoji) icon(ctx context.Context, set, seq string, rc *render.Context) *node.Node {
	doc, ok := e.Resolver.Resolve(ctx, set, seq)
	if !ok {
		return nil
	}
	svg, err := node.ParseSVG(doc)
	if err != nil {
		rc.Log().Debug("emoji svg unparseable", "emoji", seq, "err", err)
		return nil
	}
	emoji.Prepare(svg, rc.NextEmojiID())
	svg.SetAttr("width", "1em")
	svg.SetAttr("height", "1em")
	svg.SetStyleValue("margin", "0 0.05em")
	svg.SetStyleValue("vertical-align", "-0.1em")
	return svg
}
