package transform

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/ogforge/pkg/emoji"
	"github.com/matzehuels/ogforge/pkg/node"
	"github.com/matzehuels/ogforge/pkg/options"
	"github.com/matzehuels/ogforge/pkg/render"
)

func newContext(width int, colorMode string) *render.Context {
	return &render.Context{
		BasePath: "/blog/hello",
		SiteURL:  "https://example.com",
		Mode:     render.ModeRuntime,
		Options:  &options.Options{Width: width, Height: 630, ColorMode: colorMode, Emojis: "noto"},
	}
}

func styleOf(t *testing.T, n *node.Node, prop string) string {
	t.Helper()
	v, _ := n.StyleValue(prop)
	return v
}

func TestDirectives(t *testing.T) {
	tests := []struct {
		name      string
		class     string
		style     string
		width     int
		colorMode string
		prop      string
		want      string
		keep      []string
	}{
		{"responsive overrides base", "hidden lg:flex", "", 1200, "light", "display", "flex", nil},
		{"breakpoint not reached", "hidden lg:flex", "", 800, "light", "display", "none", nil},
		{"dark mode applies", "bg-white dark:bg-black", "", 1200, "dark", "background-color", "#000000", nil},
		{"light mode ignores dark", "bg-white dark:bg-black", "", 1200, "light", "background-color", "#ffffff", nil},
		{"dark beats responsive", "lg:bg-red-500 dark:bg-blue-500", "", 1200, "dark", "background-color", "#3b82f6", nil},
		{"larger breakpoint wins", "md:p-2 xl:p-8 sm:p-1", "", 1280, "light", "padding-top", "32px", nil},
		{"gap is numeric px", "gap-4", "", 1200, "light", "gap", "16px", nil},
		{"inline style wins", "text-red-500", "color: green", 1200, "light", "color", "green", nil},
		{"unknown class kept", "text-lg custom-thing", "", 1200, "light", "font-size", "18px", []string{"custom-thing"}},
		{"hover variant dropped", "hover:bg-black bg-white", "", 1200, "light", "background-color", "#ffffff", nil},
		{"arbitrary value", "w-[320px]", "", 1200, "light", "width", "320px", nil},
		{"fraction", "w-1/2", "", 1200, "light", "width", "50%", nil},
		{"div defaults to flex", "", "", 1200, "light", "display", "flex", nil},
	}
	d := NewDirectives(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := node.NewElement("div")
			if tt.class != "" {
				n.SetAttr("class", tt.class)
			}
			if tt.style != "" {
				n.SetStyle(node.ParseStyle(tt.style))
			}
			if !d.Filter(n) {
				t.Fatal("Filter() = false")
			}
			if err := d.Transform(context.Background(), n, newContext(tt.width, tt.colorMode)); err != nil {
				t.Fatal(err)
			}
			if got := styleOf(t, n, tt.prop); got != tt.want {
				t.Errorf("%s = %q, want %q (style %v)", tt.prop, got, tt.want, n.Style())
			}
			if got := n.Classes(); len(got) != len(tt.keep) || (len(got) > 0 && got[0] != tt.keep[0]) {
				t.Errorf("classes = %v, want %v", got, tt.keep)
			}
		})
	}
}

func TestDirectivesIdempotent(t *testing.T) {
	d := NewDirectives(nil, nil)
	n := node.NewElement("div")
	n.SetAttr("class", "hidden lg:flex p-4 bg-slate-900 dark:bg-white")
	rc := newContext(1200, "dark")
	if err := d.Transform(context.Background(), n, rc); err != nil {
		t.Fatal(err)
	}
	first := n.Style().String()
	if err := d.Transform(context.Background(), n, rc); err != nil {
		t.Fatal(err)
	}
	if second := n.Style().String(); first != second {
		t.Errorf("second pass changed style:\n%s\n%s", first, second)
	}
}

func TestDirectivesGradient(t *testing.T) {
	n := node.NewElement("div")
	n.SetAttr("class", "bg-gradient-to-r from-blue-500 to-purple-600")
	if err := NewDirectives(nil, nil).Transform(context.Background(), n, newContext(1200, "light")); err != nil {
		t.Fatal(err)
	}
	want := "linear-gradient(to right, #3b82f6, #9333ea)"
	if got := styleOf(t, n, "background-image"); got != want {
		t.Errorf("background-image = %q, want %q", got, want)
	}
}

func TestEntities(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     string
	}{
		{"escaped markup stays text", `<p data-v-123abc>Use &amp;lt;div&amp;gt; tags</p>`, "Use &lt;div&gt; tags"},
		{"single reference", `<p data-island-uid="7">Tom &amp; Jerry</p>`, "Tom & Jerry"},
		{"numeric reference", `<p>&#169; 2024</p>`, "© 2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := node.Parse(tt.fragment, 1200, 630)
			if err != nil {
				t.Fatal(err)
			}
			p := NewPipeline(Sync(Entities{}))
			for run := 1; run <= 2; run++ {
				if err := p.Run(context.Background(), root, newContext(1200, "light")); err != nil {
					t.Fatal(err)
				}
				para := root.Children[0]
				if para.HasAttr("data-v-123abc") || para.HasAttr("data-island-uid") {
					t.Errorf("run %d: debug attributes kept: %v", run, para.Props)
				}
				if got := para.Children[0].Text; got != tt.want {
					t.Errorf("run %d: text = %q, want %q", run, got, tt.want)
				}
			}
		})
	}
}

type countingTransformer struct {
	calls   atomic.Int32
	running atomic.Int32
	peak    atomic.Int32
}

func (c *countingTransformer) Filter(n *node.Node) bool { return n.Type == "img" }

func (c *countingTransformer) Transform(_ context.Context, n *node.Node, _ *render.Context) error {
	cur := c.running.Add(1)
	defer c.running.Add(-1)
	for {
		p := c.peak.Load()
		if cur <= p || c.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	c.calls.Add(1)
	n.SetAttr("seen", "1")
	return nil
}

func TestPipelineAsyncGroup(t *testing.T) {
	root := node.NewElement("div")
	for range 10 {
		root.Children = append(root.Children, node.NewElement("img"))
	}
	ct := &countingTransformer{}
	p := NewPipeline(Async(ct))
	p.Limit = 2
	if err := p.Run(context.Background(), root, newContext(1200, "light")); err != nil {
		t.Fatal(err)
	}
	if got := ct.calls.Load(); got != 10 {
		t.Errorf("calls = %d, want 10", got)
	}
	if got := ct.peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
	for _, c := range root.Children {
		if c.Attr("seen") != "1" {
			t.Fatal("node not transformed")
		}
	}
}

func TestImagesInlineLocal(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "logo.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 200, 100))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	img := node.NewElement("img")
	img.SetAttr("src", "/logo.png")
	img.SetAttr("width", "100")

	rc := newContext(1200, "light")
	rc.Mode = render.ModeDev
	tr := NewImages(dir, nil)
	if !tr.Filter(img) {
		t.Fatal("Filter() = false")
	}
	if err := tr.Transform(context.Background(), img, rc); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(img.Attr("src"), "data:image/png;base64,") {
		t.Errorf("src = %.40q", img.Attr("src"))
	}
	if got := img.Attr("height"); got != "50" {
		t.Errorf("height = %q, want 50", got)
	}
}

func TestImagesAbsolutize(t *testing.T) {
	n := node.NewElement("div")
	n.SetStyleValue("background-image", "url('/bg.png')")
	img := node.NewElement("img")
	img.SetAttr("src", "cover.jpg")
	img.SetAttr("width", "10")
	img.SetAttr("height", "10")

	tr := NewImages("", nil)
	rc := newContext(1200, "light")
	for _, target := range []*node.Node{n, img} {
		if err := tr.Transform(context.Background(), target, rc); err != nil {
			t.Fatal(err)
		}
	}
	bg, _ := n.StyleValue("background-image")
	if !strings.HasPrefix(bg, "url('https://example.com/bg.png?v=") {
		t.Errorf("background-image = %q", bg)
	}
	if src := img.Attr("src"); !strings.HasPrefix(src, "https://example.com/blog/cover.jpg?v=") {
		t.Errorf("src = %q", src)
	}
}

func TestEmojiDisjointIDs(t *testing.T) {
	p := node.NewElement("p")
	p.Children = []*node.Node{node.NewText("Launch 😀 and 😀 done")}

	tr := NewEmoji(emoji.NewResolver(emoji.Config{Bundled: true}))
	if !tr.Filter(p) {
		t.Fatal("Filter() = false")
	}
	rc := newContext(1200, "light")
	if err := NewPipeline(Async(tr)).Run(context.Background(), p, rc); err != nil {
		t.Fatal(err)
	}

	var svgs []*node.Node
	for _, c := range p.Children {
		if c.Type == "svg" {
			svgs = append(svgs, c)
		}
	}
	if len(svgs) != 2 {
		t.Fatalf("got %d svg children, want 2: %v", len(svgs), p.Children)
	}
	ids := map[string]int{}
	for i, s := range svgs {
		s.Walk(func(n, _ *node.Node) bool {
			if id := n.Attr("id"); id != "" {
				if prev, ok := ids[id]; ok && prev != i {
					t.Errorf("id %q shared between icons", id)
				}
				ids[id] = i
			}
			return true
		})
	}
	if len(ids) == 0 {
		t.Error("expected namespaced ids")
	}
	if got := styleOf(t, p, "align-items"); got != "center" {
		t.Errorf("align-items = %q", got)
	}
	if p.Children[0].Text != "Launch " || p.Children[len(p.Children)-1].Text != " done" {
		t.Errorf("surrounding text lost: %v", p.Children)
	}
}
