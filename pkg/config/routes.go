package config

import (
	"strings"

	"github.com/matzehuels/ogforge/pkg/options"
)

// RouteRule attaches options to pages by path. Pattern is an exact path or
// a prefix ending in /**, which matches the prefix itself and everything
// below it.
type RouteRule struct {
	Pattern string      `toml:"pattern" yaml:"pattern"`
	Options options.Raw `toml:"options" yaml:"options"`
	// Disabled turns images off for matching pages.
	Disabled bool `toml:"disabled" yaml:"disabled"`
}

// Matches reports whether the rule applies to path.
func (r RouteRule) Matches(path string) bool {
	prefix, ok := strings.CutSuffix(r.Pattern, "/**")
	if !ok {
		return trimSlash(r.Pattern) == trimSlash(path)
	}
	prefix = trimSlash(prefix)
	path = trimSlash(path)
	return path == prefix || strings.HasPrefix(path, prefix+"/") || prefix == ""
}

// specificity orders matching rules: exact beats glob, longer beats shorter.
func (r RouteRule) specificity() int {
	if !strings.HasSuffix(r.Pattern, "/**") {
		return 1 << 20
	}
	return len(r.Pattern)
}

// Route returns the most specific rule matching path.
func (c *Config) Route(path string) (RouteRule, bool) {
	var best RouteRule
	found := false
	for _, r := range c.Routes {
		if r.Matches(path) && (!found || r.specificity() > best.specificity()) {
			best, found = r, true
		}
	}
	return best, found
}

func trimSlash(p string) string {
	if p == "/" {
		return ""
	}
	return strings.TrimSuffix(p, "/")
}
