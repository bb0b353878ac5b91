// Package options defines the render options of one OG image and the
// layered merge that produces them.
//
// Options are assembled from raw JSON-shaped layers, highest precedence
// first: query overrides, the payload extracted from the origin page, the
// matching route rule, and the global defaults. Once resolved they are never
// re-merged.
package options

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/ogforge/pkg/urlcodec"
)

// =============================================================================
// Default Values - Single Source of Truth
// =============================================================================

const (
	DefaultWidth              = 1200
	DefaultHeight             = 630
	DefaultRenderer           = "vector"
	DefaultExtension          = "png"
	DefaultEmojis             = "noto"
	DefaultCacheMaxAgeSeconds = 60 * 60 * 24 * 3
	DefaultComponent          = "Fallback"
)

// Color modes.
const (
	ColorModeLight = "light"
	ColorModeDark  = "dark"
)

// Extensions lists every output extension the service can produce.
var Extensions = []string{"png", "jpeg", "jpg", "svg", "html"}

// Raw is one JSON-shaped layer of options.
type Raw map[string]any

// Options are the resolved render options.
type Options struct {
	Width              int            `json:"width"`
	Height             int            `json:"height"`
	Component          string         `json:"component,omitempty"`
	Props              map[string]any `json:"props,omitempty"`
	Renderer           string         `json:"renderer,omitempty"`
	Extension          string         `json:"extension,omitempty"`
	Emojis             string         `json:"emojis,omitempty"`
	Fonts              []FontSpec     `json:"fonts,omitempty"`
	CacheMaxAgeSeconds int            `json:"cacheMaxAgeSeconds"`
	URL                string         `json:"url,omitempty"`
	ColorMode          string         `json:"colorMode,omitempty"`
	HTML               string         `json:"html,omitempty"`
	Screenshot         *Screenshot    `json:"screenshot,omitempty"`
}

// Screenshot configures the browser backend.
type Screenshot struct {
	// URL overrides the page to load; defaults to the base page.
	URL string `json:"url,omitempty"`
	// Selector captures one element instead of the viewport.
	Selector string `json:"selector,omitempty"`
	// Mask hides matching elements before capture.
	Mask []string `json:"mask,omitempty"`
	// Delay waits this many milliseconds after the page is idle.
	Delay int `json:"delay,omitempty"`
}

// FontSpec names one font to load. It unmarshals from an object or from the
// short string form "Family:weight[:style]".
type FontSpec struct {
	Family string `json:"family"`
	Weight int    `json:"weight,omitempty"`
	Style  string `json:"style,omitempty"`
	Src    string `json:"src,omitempty"`
}

// UnmarshalJSON accepts both "Inter:700" and {"family":"Inter","weight":700}.
func (f *FontSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseFontSpec(s)
		if err != nil {
			return err
		}
		*f = parsed
		return nil
	}
	type plain FontSpec
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = FontSpec(p)
	return nil
}

// ParseFontSpec parses "Family:weight[:style]".
func ParseFontSpec(s string) (FontSpec, error) {
	parts := strings.Split(s, ":")
	spec := FontSpec{Family: strings.TrimSpace(parts[0]), Weight: 400, Style: "normal"}
	if spec.Family == "" {
		return FontSpec{}, fmt.Errorf("font spec %q: empty family", s)
	}
	if len(parts) > 1 && parts[1] != "" {
		w, err := strconv.Atoi(parts[1])
		if err != nil {
			return FontSpec{}, fmt.Errorf("font spec %q: bad weight: %w", s, err)
		}
		spec.Weight = w
	}
	if len(parts) > 2 && parts[2] != "" {
		spec.Style = parts[2]
	}
	return spec, nil
}

// Defaults returns the global default layer.
func Defaults() Raw {
	return Raw{
		"width":              DefaultWidth,
		"height":             DefaultHeight,
		"renderer":           DefaultRenderer,
		"extension":          DefaultExtension,
		"emojis":             DefaultEmojis,
		"cacheMaxAgeSeconds": DefaultCacheMaxAgeSeconds,
		"colorMode":          ColorModeLight,
	}
}

// Merge combines layers, highest precedence first. Props are merged key by
// key; every other field is taken whole from the first layer that sets it.
// Nil layers are skipped.
func Merge(layers ...Raw) Raw {
	out := Raw{}
	props := map[string]any{}
	for i := len(layers) - 1; i >= 0; i-- {
		for k, v := range layers[i] {
			if v == nil {
				continue
			}
			if k == "props" {
				if m, ok := v.(map[string]any); ok {
					for pk, pv := range m {
						props[pk] = pv
					}
					continue
				}
			}
			out[k] = v
		}
	}
	if len(props) > 0 {
		out["props"] = props
	}
	return out
}

// FromRaw decodes a merged layer into Options and applies defaults for any
// zero field.
func FromRaw(r Raw) (*Options, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	var o Options
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	o.SetDefaults()
	return &o, nil
}

// ParseJSON decodes a JSON object into a Raw layer.
func ParseJSON(data []byte) (Raw, error) {
	var r Raw
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// SetDefaults fills unset fields.
func (o *Options) SetDefaults() {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Renderer == "" {
		o.Renderer = DefaultRenderer
	}
	if o.Extension == "" {
		o.Extension = DefaultExtension
	}
	if o.Extension == "jpg" {
		o.Extension = "jpeg"
	}
	if o.Emojis == "" {
		o.Emojis = DefaultEmojis
	}
	if o.ColorMode == "" {
		o.ColorMode = ColorModeLight
	}
	if o.Props == nil {
		o.Props = map[string]any{}
	}
}

// Validate checks the resolved options.
func (o *Options) Validate() error {
	if o.Width > 4096 || o.Height > 4096 {
		return fmt.Errorf("size %dx%d exceeds 4096", o.Width, o.Height)
	}
	if !slices.Contains(Extensions, o.Extension) {
		return fmt.Errorf("unknown extension %q", o.Extension)
	}
	if o.ColorMode != ColorModeLight && o.ColorMode != ColorModeDark {
		return fmt.Errorf("unknown color mode %q", o.ColorMode)
	}
	if o.CacheMaxAgeSeconds < 0 {
		return fmt.Errorf("negative cacheMaxAgeSeconds")
	}
	return nil
}

// Dark reports whether dark-mode directives apply.
func (o *Options) Dark() bool { return o.ColorMode == ColorModeDark }

// Raw converts the options back into a layer.
func (o *Options) Raw() Raw {
	data, _ := json.Marshal(o)
	var r Raw
	_ = json.Unmarshal(data, &r)
	return r
}

// Hash is the deterministic digest of the options, used for build-cache and
// prerender-options keys.
func (o *Options) Hash() string {
	return urlcodec.Hash(o.Raw())
}

// PropString returns a prop as a string, or "" when absent.
func (o *Options) PropString(key string) string {
	v, ok := o.Props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// NormalizeExtension maps request extensions onto their canonical form.
// It returns "" for unknown extensions.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "jpg" {
		return "jpeg"
	}
	if slices.Contains(Extensions, ext) {
		return ext
	}
	return ""
}

// ContentType returns the MIME type served for a canonical extension.
func ContentType(ext string) string {
	switch ext {
	case "png":
		return "image/png"
	case "jpeg":
		return "image/jpeg"
	case "svg":
		return "image/svg+xml"
	case "html":
		return "text/html; charset=utf-8"
	case "json":
		return "application/json"
	}
	return "application/octet-stream"
}
