// Package bitmap holds the raster helpers shared by the image backends:
// decoding image sources, rasterizing SVG documents and fitting images into
// boxes.
package bitmap

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"net/url"
	"strings"

	// Decoders for embedded raster images.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/ogforge/pkg/httputil"
)

var (
	// ErrMalformedDataURI is returned for data: sources without a payload.
	ErrMalformedDataURI = errors.New("malformed data uri")
	// ErrUnsupportedSource is returned for sources that are neither data
	// URIs nor http(s) URLs.
	ErrUnsupportedSource = errors.New("unsupported image source")
)

// DecodeDataURI returns the payload of a data: URI.
func DecodeDataURI(uri string) ([]byte, error) {
	head, body, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(head, "data:") {
		return nil, ErrMalformedDataURI
	}
	if strings.HasSuffix(head, ";base64") {
		return base64.StdEncoding.DecodeString(body)
	}
	s, err := url.PathUnescape(body)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// Fetch returns the bytes behind src, a data URI or an http(s) URL.
func Fetch(ctx context.Context, client *httputil.Client, src string) ([]byte, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		return DecodeDataURI(src)
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		resp, err := client.Fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, fmt.Errorf("fetch %s: status %d", src, resp.StatusCode)
		}
		return resp.Body, nil
	}
	return nil, ErrUnsupportedSource
}

// IsSVG reports whether data looks like an SVG document.
func IsSVG(data []byte) bool {
	head := bytes.TrimSpace(data[:min(len(data), 512)])
	return bytes.HasPrefix(head, []byte("<svg")) ||
		(bytes.HasPrefix(head, []byte("<?xml")) && bytes.Contains(data, []byte("<svg")))
}

// Load fetches and decodes src. SVG sources are rasterized at w x h.
func Load(ctx context.Context, client *httputil.Client, src string, w, h int) (image.Image, error) {
	data, err := Fetch(ctx, client, src)
	if err != nil {
		return nil, err
	}
	if IsSVG(data) {
		return RasterizeSVG(string(data), max(w, 1), max(h, 1))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// RasterizeSVG renders an SVG document scaled to w x h.
func RasterizeSVG(doc string, w, h int) (*image.RGBA, error) {
	layer := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := DrawSVG(layer, doc, 1); err != nil {
		return nil, err
	}
	return layer, nil
}

// DrawSVG renders an SVG document over the whole of dst.
func DrawSVG(dst *image.RGBA, doc string, opacity float64) error {
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return nil
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(doc), oksvg.IgnoreErrorMode)
	if err != nil {
		return fmt.Errorf("parse svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), opacity)
	return nil
}

// Fit scales img into a w x h box per CSS object-fit. The returned offset
// positions the result inside the box.
func Fit(img image.Image, w, h int, fit string) (*image.NRGBA, image.Point) {
	switch fit {
	case "cover":
		return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos), image.Point{}
	case "contain", "scale-down":
		out := imaging.Fit(img, w, h, imaging.Lanczos)
		return out, image.Pt((w-out.Bounds().Dx())/2, (h-out.Bounds().Dy())/2)
	case "none":
		return imaging.CropCenter(img, w, h), image.Point{}
	}
	return imaging.Resize(img, w, h, imaging.Lanczos), image.Point{}
}

// Composite draws src onto dst at pt with rounded corners and opacity.
func Composite(dst draw.Image, src image.Image, pt image.Point, radius, opacity float64) {
	b := src.Bounds()
	mask := RoundedMask(b.Dx(), b.Dy(), radius, opacity)
	draw.DrawMask(dst, b.Sub(b.Min).Add(pt), src, b.Min, mask, image.Point{}, draw.Over)
}

// RoundedMask returns an alpha mask with rounded corners scaled by opacity.
func RoundedMask(w, h int, radius, opacity float64) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	a := uint8(max(0, min(1, opacity))*255 + 0.5)
	r := min(radius, float64(min(w, h))/2)
	for y := range h {
		for x := range w {
			if r > 0 && outsideCorner(float64(x)+0.5, float64(y)+0.5, float64(w), float64(h), r) {
				continue
			}
			mask.Pix[y*mask.Stride+x] = a
		}
	}
	return mask
}

func outsideCorner(x, y, w, h, r float64) bool {
	cx, cy := x, y
	switch {
	case x < r:
		cx = r
	case x > w-r:
		cx = w - r
	}
	switch {
	case y < r:
		cy = r
	case y > h-r:
		cy = h - r
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy > r*r
}
