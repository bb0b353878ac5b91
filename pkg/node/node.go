// Package node normalizes server-rendered HTML fragments into the restricted
// element tree consumed by the transform pipeline and the render backends.
//
// A [Node] is either an element ({Type, Props, Children}) or a text node
// (Type == [TextType]). Inline styles live in Props["style"] as an ordered
// [Style]; classes stay in Props["class"] as a space-separated string until
// the transform pipeline resolves them.
package node

import (
	"encoding/json"
	"strings"
)

// TextType is the Type of text nodes.
const TextType = "#text"

// Node is one element or text node. A tree is owned by a single render.
type Node struct {
	Type     string
	Props    map[string]any
	Children []*Node
	Text     string
}

// NewElement creates an element with empty props.
func NewElement(typ string) *Node {
	return &Node{Type: typ, Props: map[string]any{}}
}

// NewText creates a text node.
func NewText(s string) *Node {
	return &Node{Type: TextType, Text: s}
}

// IsText reports whether n is a text node.
func (n *Node) IsText() bool { return n.Type == TextType }

// Attr returns a string attribute, or "".
func (n *Node) Attr(name string) string {
	if n.Props == nil {
		return ""
	}
	s, _ := n.Props[name].(string)
	return s
}

// HasAttr reports whether the attribute is present.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.Props[name]
	return ok
}

// SetAttr sets a string attribute.
func (n *Node) SetAttr(name, value string) {
	if n.Props == nil {
		n.Props = map[string]any{}
	}
	n.Props[name] = value
}

// DelAttr removes an attribute.
func (n *Node) DelAttr(name string) { delete(n.Props, name) }

// Style returns the node's inline style. Style methods may reuse the backing
// array, so write the result back with SetStyle.
func (n *Node) Style() Style {
	if n.Props == nil {
		return nil
	}
	s, _ := n.Props["style"].(Style)
	return s
}

// SetStyle replaces the inline style.
func (n *Node) SetStyle(s Style) {
	if n.Props == nil {
		n.Props = map[string]any{}
	}
	if len(s) == 0 {
		delete(n.Props, "style")
		return
	}
	n.Props["style"] = s
}

// StyleValue returns one declaration value.
func (n *Node) StyleValue(prop string) (string, bool) {
	return n.Style().Get(prop)
}

// SetStyleValue sets one declaration, replacing an existing one in place.
func (n *Node) SetStyleValue(prop, value string) {
	s := n.Style()
	n.SetStyle(s.Set(prop, value))
}

// Classes splits the class attribute.
func (n *Node) Classes() []string {
	return strings.Fields(n.Attr("class"))
}

// SetClasses replaces the class attribute; an empty list removes it.
func (n *Node) SetClasses(classes []string) {
	if len(classes) == 0 {
		n.DelAttr("class")
		return
	}
	n.SetAttr("class", strings.Join(classes, " "))
}

// TextContent concatenates every descendant text node.
func (n *Node) TextContent() string {
	if n.IsText() {
		return n.Text
	}
	var b strings.Builder
	for _, c := range n.Children {
		b.WriteString(c.TextContent())
	}
	return b.String()
}

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(n, parent *Node) bool) {
	walk(n, nil, fn)
}

func walk(n, parent *Node, fn func(n, parent *Node) bool) {
	if !fn(n, parent) {
		return
	}
	for _, c := range n.Children {
		walk(c, n, fn)
	}
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	c := &Node{Type: n.Type, Text: n.Text}
	if n.Props != nil {
		c.Props = make(map[string]any, len(n.Props))
		for k, v := range n.Props {
			if s, ok := v.(Style); ok {
				v = append(Style(nil), s...)
			}
			c.Props[k] = v
		}
	}
	for _, ch := range n.Children {
		c.Children = append(c.Children, ch.Clone())
	}
	return c
}

// MarshalJSON renders elements as {type, props, children} and text nodes as
// plain strings, with styles flattened to objects.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.IsText() {
		return json.Marshal(n.Text)
	}
	props := make(map[string]any, len(n.Props))
	for k, v := range n.Props {
		if s, ok := v.(Style); ok {
			v = s.Map()
		}
		props[k] = v
	}
	return json.Marshal(struct {
		Type     string         `json:"type"`
		Props    map[string]any `json:"props"`
		Children []*Node        `json:"children,omitempty"`
	}{n.Type, props, n.Children})
}
