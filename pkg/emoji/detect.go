package emoji

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	pict = `[\x{231A}\x{231B}\x{2328}\x{23CF}\x{23E9}-\x{23F3}\x{23F8}-\x{23FA}` +
		`\x{24C2}\x{25AA}\x{25AB}\x{25B6}\x{25C0}\x{25FB}-\x{25FE}` +
		`\x{2600}-\x{27BF}\x{2934}\x{2935}\x{2B05}-\x{2B07}\x{2B1B}\x{2B1C}\x{2B50}\x{2B55}` +
		`\x{3030}\x{303D}\x{3297}\x{3299}` +
		`\x{1F000}-\x{1F1E5}\x{1F200}-\x{1F3FA}\x{1F400}-\x{1FAFF}]`
	// text-default symbols only count when the emoji selector follows.
	textDefault = `[\x{00A9}\x{00AE}\x{203C}\x{2049}\x{2122}\x{2139}\x{2194}-\x{2199}\x{21A9}\x{21AA}]\x{FE0F}`
	modifier    = `(?:\x{FE0F}|[\x{1F3FB}-\x{1F3FF}])?`
	flag        = `[\x{1F1E6}-\x{1F1FF}]{2}`
	keycap      = `[0-9#*]\x{FE0F}?\x{20E3}`
	tags        = `[\x{E0020}-\x{E007F}]*`
	element     = `(?:` + pict + modifier + `|` + textDefault + `)`
)

// Pattern matches one emoji: flag pairs, keycaps, and pictographs with
// optional modifiers joined by ZWJ. Bare digits, '#' and '*' never match.
var Pattern = regexp.MustCompile(flag + `|` + keycap + `|` + element + `(?:\x{200D}` + element + `)*` + tags)

// Contains reports whether s holds at least one emoji.
func Contains(s string) bool { return Pattern.MatchString(s) }

// Codepoints returns the dash-joined lowercase hex code points of s.
func Codepoints(s string) string {
	parts := make([]string, 0, len(s))
	for _, r := range s {
		parts = append(parts, fmt.Sprintf("%x", r))
	}
	return strings.Join(parts, "-")
}

// BaseForm strips a trailing variation selector.
func BaseForm(seq string) string {
	return strings.TrimSuffix(seq, "-fe0f")
}

// Candidates returns the icon names tried for an emoji, in order: the
// curated name, the raw code point sequence, then the u-prefixed sequence.
// The base form (without a trailing variation selector) is tried before the
// full sequence.
func Candidates(emoji string) []string {
	full := Codepoints(emoji)
	base := BaseForm(full)

	var out []string
	seen := map[string]bool{}
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	add(names[base])
	add(names[full])
	add(names[strings.ReplaceAll(full, "-fe0f", "")])
	add(base)
	add(full)
	add("u" + base)
	add("u" + full)
	return out
}
