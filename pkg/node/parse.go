package node

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// dropped elements never reach the tree.
var dropped = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"head": true, "meta": true, "link": true, "title": true,
}

// Parse converts an HTML fragment into a tree rooted at a container sized
// width x height with hidden overflow. The root's first element child is
// stretched to fill the canvas.
func Parse(fragment string, width, height int) (*Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}

	root := NewElement("div")
	root.SetStyle(Style{
		{"display", "flex"},
		{"position", "relative"},
		{"width", fmt.Sprintf("%dpx", width)},
		{"height", fmt.Sprintf("%dpx", height)},
		{"overflow", "hidden"},
	})
	for _, hn := range nodes {
		if c := convert(hn, false); c != nil {
			root.Children = append(root.Children, c)
		}
	}

	for _, c := range root.Children {
		if !c.IsText() {
			c.SetStyleValue("width", "100%")
			c.SetStyleValue("height", "100%")
			break
		}
	}
	return root, nil
}

func convert(hn *html.Node, inSVG bool) *Node {
	switch hn.Type {
	case html.TextNode:
		text := collapseSpace(hn.Data)
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return NewText(text)
	case html.ElementNode:
	default:
		return nil
	}

	name := hn.Data
	if dropped[name] {
		return nil
	}
	inSVG = inSVG || name == "svg" || hn.Namespace == "svg"
	if inSVG {
		name = restoreSVGName(name)
	}

	n := NewElement(name)
	for _, a := range hn.Attr {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + key
		}
		if inSVG {
			key = restoreSVGName(key)
		}
		if key == "style" {
			n.SetStyle(ParseStyle(a.Val))
			continue
		}
		n.Props[key] = a.Val
	}

	for c := hn.FirstChild; c != nil; c = c.NextSibling {
		if inSVG && c.Type == html.TextNode {
			// Text inside SVG is only meaningful in <text>/<style>, keep it raw.
			if strings.TrimSpace(c.Data) != "" {
				n.Children = append(n.Children, NewText(c.Data))
			}
			continue
		}
		if child := convert(c, inSVG); child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n
}

func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '\f' {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
