package fonts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/gobold"

	"github.com/matzehuels/ogforge/pkg/cache"
	"github.com/matzehuels/ogforge/pkg/options"
)

func TestMatch(t *testing.T) {
	set := Builtin()
	tests := []struct {
		family     string
		weight     int
		style      string
		wantFamily string
		wantWeight int
		wantStyle  string
	}{
		{"Go", 700, "normal", "Go", 700, "normal"},
		{"Go", 600, "normal", "Go", 500, "normal"},
		{"'Inter', sans-serif", 400, "", "Go", 400, "normal"},
		{"monospace", 400, "", "Go Mono", 400, "normal"},
		{"Unknown", 800, "italic", "Go", 700, "italic"},
	}
	for _, tt := range tests {
		f := Match(set, tt.family, tt.weight, tt.style)
		if f.Family != tt.wantFamily || f.Weight != tt.wantWeight || f.Style != tt.wantStyle {
			t.Errorf("Match(%q, %d, %q) = %s %d %s", tt.family, tt.weight, tt.style, f.Family, f.Weight, f.Style)
		}
	}
}

func TestFace(t *testing.T) {
	f := Builtin()[0]
	face, err := Face(f, 32)
	if err != nil {
		t.Fatal(err)
	}
	if face.Metrics().Height <= 0 {
		t.Error("face should have a positive line height")
	}
}

func TestResolver_DirLoader(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Brand-700.ttf"), gobold.TTF, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Broken.ttf"), []byte("not a font"), 0644); err != nil {
		t.Fatal(err)
	}

	store := cache.NewMemoryStorage()
	r := NewResolver(store, nil, DirLoader{Dir: dir})
	got := r.Resolve(context.Background(), []options.FontSpec{
		{Family: "Brand", Weight: 700},
		{Family: "Broken"},
		{Family: "Missing", Weight: 400},
	})

	if len(got) != 1+len(Builtin()) {
		t.Fatalf("Resolve() returned %d fonts, want the one valid font plus builtins", len(got))
	}
	if got[0].Family != "Brand" || got[0].Weight != 700 {
		t.Errorf("first font = %s %d", got[0].Family, got[0].Weight)
	}
	if store.Len() != 1 {
		t.Errorf("font cache entries = %d, want 1", store.Len())
	}
}

func TestResolver_HTTPLoader(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(gobold.TTF)
	}))
	defer srv.Close()

	r := NewResolver(nil, nil, HTTPLoader{})
	spec := []options.FontSpec{{Family: "Remote", Weight: 700, Src: srv.URL + "/remote.ttf"}}
	r.Resolve(context.Background(), spec)
	got := r.Resolve(context.Background(), spec)

	if got[0].Family != "Remote" {
		t.Errorf("first font = %s", got[0].Family)
	}
	if hits != 1 {
		t.Errorf("font fetched %d times, want 1 (cached)", hits)
	}
}

func TestResolver_ReusesParsedFonts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Local-700.ttf"), gobold.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewResolver(nil, nil, DirLoader{Dir: dir})
	spec := []options.FontSpec{{Family: "Local", Weight: 700}}
	first := r.Resolve(context.Background(), spec)
	second := r.Resolve(context.Background(), spec)
	if first[0] != second[0] {
		t.Error("resolving the same spec twice should return the same font")
	}
}
