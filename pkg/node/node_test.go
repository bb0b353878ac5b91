package node

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestParseStyle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Style
	}{
		{
			name: "data uri with semicolon",
			in:   `background-image:url("data:image/svg+xml;utf8,<svg/>");display:flex`,
			want: Style{
				{"background-image", `url("data:image/svg+xml;utf8,<svg/>")`},
				{"display", "flex"},
			},
		},
		{
			name: "base64 uri unquoted",
			in:   "background:url(data:image/png;base64,AAAA); color: red;",
			want: Style{{"background", "url(data:image/png;base64,AAAA)"}, {"color", "red"}},
		},
		{
			name: "ampersand entity",
			in:   "background-image:url(https://x.dev/a.png?w=1&amp;h=2)",
			want: Style{{"background-image", "url(https://x.dev/a.png?w=1&h=2)"}},
		},
		{
			name: "font family quotes",
			in:   `font-family: "Inter", 'Noto Sans', sans-serif`,
			want: Style{{"font-family", "Inter, Noto Sans, sans-serif"}},
		},
		{
			name: "empty and malformed",
			in:   ";;color:;nope;Width: 10px",
			want: Style{{"width", "10px"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseStyle(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseStyle(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	root, err := Parse(`<div class="flex p-4" style="color:red">
		<h1>Hello   World</h1>
		<script>alert(1)</script>
	</div>`, 1200, 630)
	if err != nil {
		t.Fatal(err)
	}

	if w, _ := root.StyleValue("width"); w != "1200px" {
		t.Errorf("root width = %q", w)
	}
	if o, _ := root.StyleValue("overflow"); o != "hidden" {
		t.Errorf("root overflow = %q", o)
	}
	if len(root.Children) != 1 {
		t.Fatalf("root children = %d, want 1", len(root.Children))
	}

	div := root.Children[0]
	if w, _ := div.StyleValue("width"); w != "100%" {
		t.Errorf("first child width = %q, want 100%%", w)
	}
	if c, _ := div.StyleValue("color"); c != "red" {
		t.Errorf("inline style lost: %v", div.Style())
	}
	if got := div.Classes(); !reflect.DeepEqual(got, []string{"flex", "p-4"}) {
		t.Errorf("Classes() = %v", got)
	}
	if len(div.Children) != 1 || div.Children[0].Type != "h1" {
		t.Fatalf("script should be dropped and whitespace removed: %+v", div.Children)
	}
	if got := div.Children[0].TextContent(); got != "Hello World" {
		t.Errorf("TextContent() = %q", got)
	}
}

func TestParseSVGAttributes(t *testing.T) {
	root, err := Parse(`<svg viewbox="0 0 10 10" preserveaspectratio="none"><lineargradient id="g" gradientunits="userSpaceOnUse"></lineargradient><use xlink:href="#g"/></svg>`, 100, 100)
	if err != nil {
		t.Fatal(err)
	}
	svg := root.Children[0]
	for _, attr := range []string{"viewBox", "preserveAspectRatio"} {
		if !svg.HasAttr(attr) {
			t.Errorf("missing %s in %v", attr, svg.Props)
		}
	}
	grad := svg.Children[0]
	if grad.Type != "linearGradient" || !grad.HasAttr("gradientUnits") {
		t.Errorf("gradient = %s %v", grad.Type, grad.Props)
	}
}

func TestUnsupportedSVG(t *testing.T) {
	root, _ := Parse(`<div><a href="/">link</a><svg><text>x</text><g><text>y</text><foreignObject></foreignObject></g></svg></div>`, 100, 100)
	got := UnsupportedSVG(root)
	want := []string{"text", "foreignObject"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UnsupportedSVG() = %v, want %v", got, want)
	}
}

func TestMarshalJSON(t *testing.T) {
	n := NewElement("div")
	n.SetStyleValue("display", "flex")
	n.Children = append(n.Children, NewText("hi"))

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.Contains(s, `"style":{"display":"flex"}`) || !strings.Contains(s, `"children":["hi"]`) {
		t.Errorf("MarshalJSON() = %s", s)
	}
}

func TestClone(t *testing.T) {
	n := NewElement("div")
	n.SetStyleValue("color", "red")
	c := n.Clone()
	c.SetStyleValue("color", "blue")
	if v, _ := n.StyleValue("color"); v != "red" {
		t.Error("Clone should not share styles")
	}
}

func TestParseSVGAndMarkup(t *testing.T) {
	svg, err := ParseSVG(`<svg viewBox="0 0 10 10"><circle cx="5" cy="5" r="4" fill="red"/></svg>`)
	if err != nil {
		t.Fatal(err)
	}
	got := Markup(svg)
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><circle cx="5" cy="5" fill="red" r="4"/></svg>`
	if got != want {
		t.Errorf("Markup() = %s\nwant      %s", got, want)
	}

	if _, err := ParseSVG(`<div></div>`); err != ErrNoSVG {
		t.Errorf("ParseSVG(div) = %v, want ErrNoSVG", err)
	}
}

func TestHTML(t *testing.T) {
	root := NewElement("div")
	img := NewElement("img")
	img.SetAttr("src", "a.png")
	svg := NewElement("svg")
	svg.Children = []*Node{NewElement("rect")}
	root.Children = []*Node{NewElement("span"), img, svg}

	got := HTML(root)
	want := `<div><span></span><img src="a.png"><svg><rect/></svg></div>`
	if got != want {
		t.Errorf("HTML() = %s\nwant    %s", got, want)
	}
}
