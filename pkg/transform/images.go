package transform

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"image"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	// Decoders for natural-size detection.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/matzehuels/ogforge/pkg/httputil"
	"github.com/matzehuels/ogforge/pkg/node"
	"github.com/matzehuels/ogforge/pkg/render"
	"github.com/matzehuels/ogforge/pkg/render/bitmap"
)

var cssURL = regexp.MustCompile(`url\(\s*(['"]?)([^'")]+)(['"]?)\s*\)`)

// Images rewrites image references so the backend can load them: local
// files are inlined as data URIs in dev and prerender, everything else
// becomes an absolute URL. Missing width/height are derived from the
// natural size, preserving the aspect ratio. Failed lookups leave the node
// untouched.
type Images struct {
	// PublicDir is the directory that serves root-relative assets.
	PublicDir string
	Client    *httputil.Client
}

// NewImages returns the image transformer.
func NewImages(publicDir string, client *httputil.Client) *Images {
	if client == nil {
		client = httputil.NewClient(httputil.DefaultTimeout)
	}
	return &Images{PublicDir: publicDir, Client: client}
}

func (i *Images) Filter(n *node.Node) bool {
	if n.IsText() {
		return false
	}
	if n.Type == "img" && n.Attr("src") != "" {
		return true
	}
	bg, ok := n.StyleValue("background-image")
	return ok && strings.Contains(bg, "url(")
}

func (i *Images) Transform(ctx context.Context, n *node.Node, rc *render.Context) error {
	if n.Type == "img" {
		src, data := i.rewrite(ctx, n.Attr("src"), rc)
		n.SetAttr("src", src)
		i.size(ctx, n, src, data)
	}
	if bg, ok := n.StyleValue("background-image"); ok {
		bg = cssURL.ReplaceAllStringFunc(bg, func(m string) string {
			sub := cssURL.FindStringSubmatch(m)
			src, _ := i.rewrite(ctx, sub[2], rc)
			return "url(" + sub[1] + src + sub[3] + ")"
		})
		n.SetStyleValue("background-image", bg)
	}
	return nil
}

// rewrite returns the loadable form of src and, when it had to read the
// bytes anyway, the image data.
func (i *Images) rewrite(_ context.Context, src string, rc *render.Context) (string, []byte) {
	switch {
	case strings.HasPrefix(src, "data:"):
		data, _ := bitmap.DecodeDataURI(src)
		return src, data
	case strings.HasPrefix(src, "//"):
		return "https:" + src, nil
	case isAbsolute(src):
		return src, nil
	}

	if rc.Mode != render.ModeRuntime && i.PublicDir != "" {
		if data, err := os.ReadFile(i.localPath(src, rc.BasePath)); err == nil {
			return dataURI(src, data), data
		}
	}
	return absoluteURL(rc.SiteURL, rc.BasePath, src), nil
}

func (i *Images) localPath(src, basePath string) string {
	p := strings.SplitN(src, "?", 2)[0]
	if !strings.HasPrefix(p, "/") {
		p = path.Join(path.Dir("/"+strings.TrimPrefix(basePath, "/")), p)
	}
	return filepath.Join(i.PublicDir, filepath.FromSlash(path.Clean(p)))
}

// size fills in a missing width or height from the natural dimensions.
func (i *Images) size(ctx context.Context, n *node.Node, src string, data []byte) {
	w, hasW := dimension(n, "width")
	h, hasH := dimension(n, "height")
	if hasW && hasH {
		return
	}
	if data == nil && isAbsolute(src) {
		resp, err := i.Client.Fetch(ctx, src)
		if err != nil || !resp.OK() {
			return
		}
		data = resp.Body
	}
	nw, nh, ok := naturalSize(data)
	if !ok || nw == 0 || nh == 0 {
		return
	}
	switch {
	case hasW:
		h = w * nh / nw
	case hasH:
		w = h * nw / nh
	default:
		w, h = nw, nh
	}
	n.SetAttr("width", formatFloat(w))
	n.SetAttr("height", formatFloat(h))
}

func dimension(n *node.Node, prop string) (float64, bool) {
	v := n.Attr(prop)
	if sv, ok := n.StyleValue(prop); ok {
		v = sv
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
	return f, err == nil && f > 0
}

var (
	svgViewBox = regexp.MustCompile(`viewBox\s*=\s*["']\s*[-\d.]+[\s,]+[-\d.]+[\s,]+([\d.]+)[\s,]+([\d.]+)`)
	svgWidth   = regexp.MustCompile(`<svg[^>]*\swidth\s*=\s*["']([\d.]+)`)
	svgHeight  = regexp.MustCompile(`<svg[^>]*\sheight\s*=\s*["']([\d.]+)`)
)

func naturalSize(data []byte) (float64, float64, bool) {
	if len(data) == 0 {
		return 0, 0, false
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return float64(cfg.Width), float64(cfg.Height), true
	}
	head := string(data[:min(len(data), 4096)])
	if !strings.Contains(head, "<svg") {
		return 0, 0, false
	}
	wm, hm := svgWidth.FindStringSubmatch(head), svgHeight.FindStringSubmatch(head)
	if wm != nil && hm != nil {
		w, _ := strconv.ParseFloat(wm[1], 64)
		h, _ := strconv.ParseFloat(hm[1], 64)
		return w, h, true
	}
	if m := svgViewBox.FindStringSubmatch(head); m != nil {
		w, _ := strconv.ParseFloat(m[1], 64)
		h, _ := strconv.ParseFloat(m[2], 64)
		return w, h, true
	}
	return 0, 0, false
}

func isAbsolute(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// absoluteURL resolves src against the site URL (or the page path when src
// is relative) and appends a content-independent cache-buster.
func absoluteURL(site, basePath, src string) string {
	base, err := url.Parse(strings.TrimSuffix(site, "/") + "/" + strings.TrimPrefix(basePath, "/"))
	if err != nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	abs := base.ResolveReference(ref)
	sum := sha256.Sum256([]byte(src))
	q := abs.Query()
	q.Set("v", hex.EncodeToString(sum[:])[:8])
	abs.RawQuery = q.Encode()
	return abs.String()
}

func dataURI(name string, data []byte) string {
	ct := mime.TypeByExtension(path.Ext(strings.SplitN(name, "?", 2)[0]))
	if ct == "" {
		ct = "application/octet-stream"
	}
	ct = strings.SplitN(ct, ";", 2)[0]
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
