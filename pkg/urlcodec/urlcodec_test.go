package urlcodec

import (
	"reflect"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts map[string]any
	}{
		{"empty", map[string]any{}},
		{"sizes", map[string]any{"width": 1200, "height": 630}},
		{"component with props", map[string]any{
			"component": "Banner",
			"props":     map[string]any{"title": "Hello World", "dark": true, "count": 3},
		}},
		{"reserved characters", map[string]any{
			"props": map[string]any{"title": "a_b, c+d 100%", "snake_key": "x"},
		}},
		{"numeric looking string", map[string]any{
			"props": map[string]any{"year": "2024", "flag": "true"},
		}},
		{"slash value", map[string]any{"url": "https://example.com/blog"}},
		{"prop colliding with option key", map[string]any{
			"width": 800,
			"props": map[string]any{"width": "wide", "w": 1},
		}},
		{"float", map[string]any{"props": map[string]any{"ratio": 1.5}}},
		{"leading underscore value", map[string]any{"props": map[string]any{"k": "_x"}}},
		{"prop named like the hash marker", map[string]any{"props": map[string]any{"o": "x"}}},
		{"prop starting with the hash marker", map[string]any{"props": map[string]any{"o_x": "v"}}},
		{"trailing underscore key", map[string]any{"props": map[string]any{"a_": "x"}}},
		{"double trailing underscore key", map[string]any{"props": map[string]any{"a__": "_x", "a": "__"}}},
		{"percent-like key", map[string]any{"props": map[string]any{"a%5F": "y"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg, hash := Encode(tt.opts)
			if hash != "" {
				t.Fatalf("unexpected hash mode for %q", seg)
			}
			got, h, err := Decode(seg)
			if err != nil {
				t.Fatalf("Decode(%q) error: %v", seg, err)
			}
			if h != "" {
				t.Fatalf("Decode returned hash %q", h)
			}
			if !reflect.DeepEqual(got, tt.opts) {
				t.Errorf("Decode(Encode(x)) = %#v, want %#v (segment %q)", got, tt.opts, seg)
			}
		})
	}
}

func TestEncodeAliases(t *testing.T) {
	seg, _ := Encode(map[string]any{
		"width":     1200,
		"height":    630,
		"component": "Banner",
		"props":     map[string]any{"title": "Hello World"},
	})
	want := "w_1200,h_630,c_Banner,title_Hello+World"
	if seg != want {
		t.Errorf("Encode() = %q, want %q", seg, want)
	}
}

func TestHashMode(t *testing.T) {
	long := strings.Repeat("x", 250)
	a := map[string]any{"component": "Banner", "props": map[string]any{"title": long, "sub": "y"}}
	b := map[string]any{"props": map[string]any{"sub": "y", "title": long}, "component": "Banner"}

	seg, hash := Encode(a)
	if !strings.HasPrefix(seg, "o_") || seg != "o_"+hash {
		t.Fatalf("Encode() = %q, %q; want o_<hash>", seg, hash)
	}
	if len(hash) != HashLen {
		t.Errorf("hash length = %d", len(hash))
	}
	if Hash(b) != hash {
		t.Error("Hash should not depend on key insertion order")
	}

	opts, h, err := Decode(seg)
	if err != nil || opts != nil || h != hash {
		t.Errorf("Decode(hash segment) = %v, %q, %v", opts, h, err)
	}
}

func TestHashIgnoresRequestKeys(t *testing.T) {
	base := map[string]any{"width": 1200}
	withPath := map[string]any{"width": 1200, "path": "/blog", "purge": true, "_query": "x"}
	if Hash(base) != Hash(withPath) {
		t.Error("path, purge and internal keys should not affect the hash")
	}
	if Hash(base) == Hash(map[string]any{"width": 1201}) {
		t.Error("different options should hash differently")
	}
}

func TestDecodeCoercion(t *testing.T) {
	got, _, err := Decode("w_1200,dark_true,ratio_0.5,name_Bob")
	if err != nil {
		t.Fatal(err)
	}
	props := got["props"].(map[string]any)
	if got["width"] != 1200 || props["dark"] != true || props["ratio"] != 0.5 || props["name"] != "Bob" {
		t.Errorf("Decode() = %#v", got)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, seg := range []string{"novalue", "k_%zz", "k_b64:!!!"} {
		if _, _, err := Decode(seg); err == nil {
			t.Errorf("Decode(%q) should fail", seg)
		}
	}
}

func TestDecodeHashMode(t *testing.T) {
	tests := []struct {
		segment  string
		wantHash string
	}{
		{"o_0123456789", "0123456789"},
		{"p.o_x", ""},
		{"o__x_v", ""},
		{"o_x,w_10", ""},
	}
	for _, tt := range tests {
		t.Run(tt.segment, func(t *testing.T) {
			_, h, err := Decode(tt.segment)
			if err != nil {
				t.Fatalf("Decode(%q) error: %v", tt.segment, err)
			}
			if h != tt.wantHash {
				t.Errorf("Decode(%q) hash = %q, want %q", tt.segment, h, tt.wantHash)
			}
		})
	}
}
