// Package fonts resolves font descriptors to binary font data.
//
// Fonts come from loaders (a local directory, remote URLs) and are cached by
// (family, weight, style, src) in the font cache tier. The Go fonts from
// golang.org/x/image/font/gofont are always available as the fallback set,
// so a render never runs without a usable face.
package fonts

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FallbackFamily is the family name of the bundled Go fonts.
const FallbackFamily = "Go"

// Font is a resolved font with its binary data.
type Font struct {
	Family   string
	Weight   int
	Style    string
	Src      string
	Data     []byte
	CacheKey string

	parseOnce sync.Once
	parsed    *opentype.Font
	parseErr  error

	b64Once sync.Once
	b64     string
}

// Parsed returns the parsed font, computed once.
func (f *Font) Parsed() (*opentype.Font, error) {
	f.parseOnce.Do(func() {
		f.parsed, f.parseErr = opentype.Parse(f.Data)
		if f.parseErr != nil {
			f.parseErr = fmt.Errorf("parse font %s %d: %w", f.Family, f.Weight, f.parseErr)
		}
	})
	return f.parsed, f.parseErr
}

// Base64 returns the font data as a base64 string, cached after first use.
func (f *Font) Base64() string {
	f.b64Once.Do(func() {
		f.b64 = base64.StdEncoding.EncodeToString(f.Data)
	})
	return f.b64
}

// Italic reports whether the font is an italic face.
func (f *Font) Italic() bool { return f.Style == "italic" }

var (
	builtinOnce sync.Once
	builtin     []*Font
)

// Builtin returns the bundled Go fonts.
func Builtin() []*Font {
	builtinOnce.Do(func() {
		add := func(family string, weight int, style string, data []byte) {
			builtin = append(builtin, &Font{
				Family:   family,
				Weight:   weight,
				Style:    style,
				Src:      "builtin",
				Data:     data,
				CacheKey: fmt.Sprintf("builtin:%s:%d:%s", family, weight, style),
			})
		}
		add(FallbackFamily, 400, "normal", goregular.TTF)
		add(FallbackFamily, 500, "normal", gomedium.TTF)
		add(FallbackFamily, 700, "normal", gobold.TTF)
		add(FallbackFamily, 400, "italic", goitalic.TTF)
		add(FallbackFamily, 700, "italic", gobolditalic.TTF)
		add("Go Mono", 400, "normal", gomono.TTF)
	})
	return builtin
}

// Match picks the font closest to the request: same family (case
// insensitive) first, then the nearest weight, preferring the same style.
// It falls back to the bundled fonts when the family is absent.
func Match(set []*Font, family string, weight int, style string) *Font {
	if weight == 0 {
		weight = 400
	}
	if style == "" {
		style = "normal"
	}
	for _, fam := range splitFamilies(family) {
		if f := closest(set, fam, weight, style); f != nil {
			return f
		}
	}
	if f := closest(set, FallbackFamily, weight, style); f != nil {
		return f
	}
	if f := closest(Builtin(), FallbackFamily, weight, style); f != nil {
		return f
	}
	return Builtin()[0]
}

func closest(set []*Font, family string, weight int, style string) *Font {
	var best *Font
	bestScore := 1 << 30
	for _, f := range set {
		if !strings.EqualFold(f.Family, family) {
			continue
		}
		score := abs(f.Weight - weight)
		if f.Style != style {
			score += 1000
		}
		if score < bestScore {
			best, bestScore = f, score
		}
	}
	return best
}

// splitFamilies turns a CSS font-family list into names, mapping generic
// families onto the bundled fallback.
func splitFamilies(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		name := strings.Trim(strings.TrimSpace(part), `"'`)
		switch strings.ToLower(name) {
		case "":
			continue
		case "sans-serif", "serif", "system-ui", "ui-sans-serif", "ui-serif":
			name = FallbackFamily
		case "monospace", "ui-monospace":
			name = "Go Mono"
		}
		out = append(out, name)
	}
	return out
}

// Families returns the distinct non-generic family names of a CSS
// font-family value.
func Families(v string) []string {
	return splitFamilies(v)
}

// Face returns a new sized face for f. Faces keep glyph buffers and must
// not be shared between goroutines.
func Face(f *Font, size float64) (font.Face, error) {
	parsed, err := f.Parsed()
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
