package node

import (
	"errors"
	"html"
	"sort"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoSVG is returned by ParseSVG when the document has no <svg> element.
var ErrNoSVG = errors.New("no svg element")

// ParseSVG parses a standalone SVG document and returns its <svg> element.
func ParseSVG(doc string) (*Node, error) {
	body := &xhtml.Node{Type: xhtml.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := xhtml.ParseFragment(strings.NewReader(doc), body)
	if err != nil {
		return nil, err
	}
	for _, hn := range nodes {
		if hn.Type == xhtml.ElementNode && hn.Data == "svg" {
			return convert(hn, true), nil
		}
	}
	return nil, ErrNoSVG
}

// Markup serializes a subtree as XML-compatible markup. Attributes are
// written in sorted order so equal trees serialize identically.
func Markup(n *Node) string {
	var b strings.Builder
	writeMarkup(&b, n, true, true)
	return b.String()
}

// HTML serializes a subtree for an HTML parser: empty elements outside SVG
// get explicit end tags, void elements none.
func HTML(n *Node) string {
	var b strings.Builder
	writeMarkup(&b, n, true, false)
	return b.String()
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true, "track": true, "wbr": true,
}

func writeMarkup(b *strings.Builder, n *Node, top, xml bool) {
	if n.IsText() {
		b.WriteString(html.EscapeString(n.Text))
		return
	}
	b.WriteByte('<')
	b.WriteString(n.Type)

	keys := make([]string, 0, len(n.Props))
	for k := range n.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if top && n.Type == "svg" && n.Props["xmlns"] == nil {
		b.WriteString(` xmlns="http://www.w3.org/2000/svg"`)
	}
	for _, k := range keys {
		var v string
		switch val := n.Props[k].(type) {
		case string:
			v = val
		case Style:
			v = val.String()
		default:
			continue
		}
		if k == "xlink:href" {
			k = "href"
		}
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(v))
		b.WriteByte('"')
	}
	if n.Type == "svg" {
		xml = true
	}
	if len(n.Children) == 0 {
		switch {
		case xml:
			b.WriteString("/>")
		case voidElements[n.Type]:
			b.WriteByte('>')
		default:
			b.WriteString("></" + n.Type + ">")
		}
		return
	}
	b.WriteByte('>')
	for _, c := range n.Children {
		writeMarkup(b, c, false, xml)
	}
	b.WriteString("</")
	b.WriteString(n.Type)
	b.WriteByte('>')
}
