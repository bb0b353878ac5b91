package resolver

import (
	"path"
	"regexp"
	"strings"

	"github.com/matzehuels/ogforge/pkg/errors"
	"github.com/matzehuels/ogforge/pkg/options"
)

// Kind is the route variant a request path addresses.
type Kind int

const (
	// KindImage is /<base>/image/<renderer>/og.<ext>.
	KindImage Kind = iota
	// KindStatic is /<base>/static/<renderer>/og.<ext>.
	KindStatic
	// KindDebug is /<base>/debug.json.
	KindDebug
	// KindCompact is /_og/<d|s>/<encoded>.<ext>.
	KindCompact
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindStatic:
		return "static"
	case KindDebug:
		return "debug"
	case KindCompact:
		return "compact"
	}
	return "unknown"
}

// CompactPrefix starts every compact URL.
const CompactPrefix = "/_og/"

// DebugSuffix ends every diagnostics URL.
const DebugSuffix = "/debug.json"

var routePattern = regexp.MustCompile(`^(.*)/(image|static)/([^/]+)/og\.([^/.]+)$`)

// Target is a parsed request path.
type Target struct {
	Kind     Kind
	BasePath string
	// Renderer is named by the path; empty for debug and compact routes.
	Renderer string
	// Extension is canonical ("jpg" becomes "jpeg"); empty for debug routes.
	Extension string
	// Segment is the encoded options of a compact route.
	Segment string
	// Static marks the prerendered variant.
	Static bool
}

// ParsePath splits a request path into its base page and route variant.
// Unknown extensions are bad requests; paths that are no image route at all
// are not found.
func ParsePath(p string) (Target, error) {
	if rest, ok := strings.CutPrefix(p, CompactPrefix); ok {
		return parseCompact(rest)
	}
	if base, ok := strings.CutSuffix(p, DebugSuffix); ok {
		return Target{Kind: KindDebug, BasePath: cleanBase(base)}, nil
	}
	m := routePattern.FindStringSubmatch(p)
	if m == nil {
		return Target{}, errors.NotFound("no image route at %q", p)
	}
	ext := options.NormalizeExtension(m[4])
	if ext == "" {
		return Target{}, errors.BadRequest("unknown extension %q", m[4])
	}
	t := Target{Kind: KindImage, BasePath: cleanBase(m[1]), Renderer: m[3], Extension: ext}
	if m[2] == "static" {
		t.Kind, t.Static = KindStatic, true
	}
	return t, nil
}

func parseCompact(rest string) (Target, error) {
	variant, file, ok := strings.Cut(rest, "/")
	if !ok || (variant != "d" && variant != "s") || strings.Contains(file, "/") {
		return Target{}, errors.NotFound("no image route at %q", CompactPrefix+rest)
	}
	dot := strings.LastIndexByte(file, '.')
	if dot < 0 {
		return Target{}, errors.BadRequest("missing extension in %q", file)
	}
	ext := options.NormalizeExtension(file[dot+1:])
	if ext == "" {
		return Target{}, errors.BadRequest("unknown extension %q", file[dot+1:])
	}
	return Target{
		Kind:      KindCompact,
		BasePath:  "/",
		Extension: ext,
		Segment:   file[:dot],
		Static:    variant == "s",
	}, nil
}

// cleanBase normalizes a page path: leading slash, no trailing slash, "/"
// for the root.
func cleanBase(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// ImageURL is the runtime image path for a page.
func ImageURL(basePath, renderer, ext string, static bool) string {
	variant := "image"
	if static {
		variant = "static"
	}
	base := strings.TrimSuffix(cleanBase(basePath), "/")
	return base + "/" + variant + "/" + renderer + "/og." + ext
}
