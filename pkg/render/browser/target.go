package browser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/matzehuels/ogforge/pkg/errors"
	"github.com/matzehuels/ogforge/pkg/fonts"
	"github.com/matzehuels/ogforge/pkg/node"
	"github.com/matzehuels/ogforge/pkg/render"
)

// Capture sources.
const (
	sourceHTML = "html"
	sourceURL  = "url"
	sourceTree = "tree"
)

// target is what the browser loads: a URL or an HTML document.
type target struct {
	source string
	url    string
	html   string
	// tree is set when the document was built from the render tree.
	tree *node.Node
}

// resolveTarget picks the capture source: literal HTML, then an explicit
// screenshot URL, then the transformed tree.
func resolveTarget(ctx context.Context, rc *render.Context) (target, error) {
	o := rc.Options
	if o.HTML != "" {
		html := o.HTML
		if !strings.Contains(strings.ToLower(html), "<html") {
			html = document(html, rc.Fonts, rc.Width(), rc.Height())
		}
		return target{source: sourceHTML, html: html}, nil
	}
	if o.Screenshot != nil && o.Screenshot.URL != "" {
		u, err := absoluteURL(rc.SiteURL, o.Screenshot.URL)
		if err != nil {
			return target{}, err
		}
		return target{source: sourceURL, url: u}, nil
	}
	tree, err := rc.Tree(ctx)
	if err != nil {
		return target{}, err
	}
	return target{
		source: sourceTree,
		html:   document(node.HTML(tree), rc.Fonts, rc.Width(), rc.Height()),
		tree:   tree,
	}, nil
}

func absoluteURL(site, u string) (string, error) {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u, nil
	}
	if site == "" {
		return "", errors.BadRequest("screenshot url %q is relative and no site url is configured", u)
	}
	return strings.TrimSuffix(site, "/") + "/" + strings.TrimPrefix(u, "/"), nil
}

// document wraps body in a page that embeds the font set and pins the
// viewport size.
func document(body string, set []*fonts.Font, width, height int) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>`)
	for _, f := range set {
		style := f.Style
		if style == "" {
			style = "normal"
		}
		fmt.Fprintf(&b, `@font-face{font-family:%q;src:url(data:%s;base64,%s);font-weight:%d;font-style:%s}`,
			f.Family, fontMIME(f.Data), f.Base64(), f.Weight, style)
	}
	fmt.Fprintf(&b, `html,body{margin:0;padding:0;width:%dpx;height:%dpx;overflow:hidden}`, width, height)
	b.WriteString(`</style></head><body>`)
	b.WriteString(body)
	b.WriteString(`</body></html>`)
	return b.String()
}

func fontMIME(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("wOF2")):
		return "font/woff2"
	case bytes.HasPrefix(data, []byte("wOFF")):
		return "font/woff"
	case bytes.HasPrefix(data, []byte("OTTO")):
		return "font/otf"
	}
	return "font/ttf"
}

// captureInfo is the debug view of a capture.
type captureInfo struct {
	Source   string   `json:"source"`
	URL      string   `json:"url,omitempty"`
	Selector string   `json:"selector,omitempty"`
	Mask     []string `json:"mask,omitempty"`
	Delay    int      `json:"delay,omitempty"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Bytes    int      `json:"htmlBytes,omitempty"`
}

func (t target) info(rc *render.Context) captureInfo {
	info := captureInfo{
		Source: t.source,
		URL:    t.url,
		Width:  rc.Width(),
		Height: rc.Height(),
		Bytes:  len(t.html),
	}
	if s := rc.Options.Screenshot; s != nil {
		info.Selector, info.Mask, info.Delay = s.Selector, s.Mask, s.Delay
	}
	return info
}
