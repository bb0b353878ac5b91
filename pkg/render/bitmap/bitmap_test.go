package bitmap

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matzehuels/ogforge/pkg/httputil"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLoadSources(t *testing.T) {
	data := pngBytes(t, 4, 2, color.White)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()
	client := httputil.NewClient(httputil.DefaultTimeout)
	ctx := context.Background()

	tests := []struct {
		name    string
		src     string
		wantW   int
		wantErr bool
	}{
		{"data uri", "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), 4, false},
		{"remote", srv.URL + "/a.png", 4, false},
		{"svg", `data:image/svg+xml,%3Csvg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"%3E%3Crect width="10" height="10"/%3E%3C/svg%3E`, 20, false},
		{"missing", srv.URL + "/missing.png", 0, true},
		{"relative", "/logo.png", 0, true},
		{"malformed", "data:image/png;base64", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Load(ctx, client, tt.src, 20, 20)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && img.Bounds().Dx() != tt.wantW {
				t.Errorf("width = %d, want %d", img.Bounds().Dx(), tt.wantW)
			}
		})
	}
}

func TestFit(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	tests := []struct {
		fit        string
		w, h       int
		wantW      int
		wantH      int
		wantOffset image.Point
	}{
		{"cover", 100, 100, 100, 100, image.Point{}},
		{"contain", 100, 100, 100, 50, image.Pt(0, 25)},
		{"fill", 50, 80, 50, 80, image.Point{}},
	}
	for _, tt := range tests {
		out, off := Fit(src, tt.w, tt.h, tt.fit)
		if out.Bounds().Dx() != tt.wantW || out.Bounds().Dy() != tt.wantH || off != tt.wantOffset {
			t.Errorf("Fit(%s) = %v %v", tt.fit, out.Bounds(), off)
		}
	}
}

func TestRoundedMask(t *testing.T) {
	m := RoundedMask(20, 20, 10, 1)
	if m.AlphaAt(0, 0).A != 0 {
		t.Error("corner should be transparent")
	}
	if m.AlphaAt(10, 10).A != 255 {
		t.Error("center should be opaque")
	}
	half := RoundedMask(4, 4, 0, 0.5)
	if a := half.AlphaAt(0, 0).A; a != 128 {
		t.Errorf("alpha = %d, want 128", a)
	}
}
