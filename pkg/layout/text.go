package layout

import (
	"strings"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/matzehuels/ogforge/pkg/fonts"
)

// Line is one laid-out line of text. X is relative to the content box;
// Baseline is relative to the content box top.
type Line struct {
	Text     string
	X        float64
	Baseline float64
	Width    float64
}

// Shaper measures text against a font set. It is not safe for concurrent
// use; each layout run owns one.
type Shaper struct {
	fonts []*fonts.Font
	buf   sfnt.Buffer
}

// NewShaper returns a shaper over set. An empty set uses the bundled fonts.
func NewShaper(set []*fonts.Font) *Shaper {
	if len(set) == 0 {
		set = fonts.Builtin()
	}
	return &Shaper{fonts: set}
}

// Font returns the font used for s.
func (sh *Shaper) Font(s *Style) *fonts.Font {
	return fonts.Match(sh.fonts, s.FontFamily, s.FontWeight, s.Italic())
}

// Width returns the advance width of text in style s, including
// letter-spacing and kerning.
func (sh *Shaper) Width(text string, s *Style) float64 {
	f, err := sh.Font(s).Parsed()
	if err != nil {
		return float64(len([]rune(text))) * s.FontSize * 0.5
	}
	ppem := fixed.Int26_6(s.FontSize * 64)
	var (
		total fixed.Int26_6
		prev  sfnt.GlyphIndex
		n     int
	)
	for i, r := range text {
		idx, err := f.GlyphIndex(&sh.buf, r)
		if err != nil {
			continue
		}
		if i > 0 {
			if k, err := f.Kern(&sh.buf, prev, idx, ppem, font.HintingNone); err == nil {
				total += k
			}
		}
		adv, err := f.GlyphAdvance(&sh.buf, idx, ppem, font.HintingNone)
		if err == nil {
			total += adv
		}
		prev = idx
		n++
	}
	w := float64(total) / 64
	if n > 1 {
		w += s.LetterSpacing * float64(n-1)
	}
	return w
}

// Ascent returns the font ascent at the style's size.
func (sh *Shaper) Ascent(s *Style) float64 {
	f, err := sh.Font(s).Parsed()
	if err != nil {
		return s.FontSize * 0.8
	}
	m, err := f.Metrics(&sh.buf, fixed.Int26_6(s.FontSize*64), font.HintingNone)
	if err != nil {
		return s.FontSize * 0.8
	}
	return float64(m.Ascent) / 64
}

// Descent returns the font descent at the style's size.
func (sh *Shaper) Descent(s *Style) float64 {
	f, err := sh.Font(s).Parsed()
	if err != nil {
		return s.FontSize * 0.2
	}
	m, err := f.Metrics(&sh.buf, fixed.Int26_6(s.FontSize*64), font.HintingNone)
	if err != nil {
		return s.FontSize * 0.2
	}
	return float64(m.Descent) / 64
}

// Transform applies text-transform.
func Transform(text, mode string) string {
	switch mode {
	case "uppercase":
		return strings.ToUpper(text)
	case "lowercase":
		return strings.ToLower(text)
	case "capitalize":
		prev := ' '
		return strings.Map(func(r rune) rune {
			defer func() { prev = r }()
			if unicode.IsSpace(prev) {
				return unicode.ToTitle(r)
			}
			return r
		}, text)
	}
	return text
}

const ellipsis = "…"

// Wrap breaks text into lines no wider than maxW. A negative maxW means
// no limit. Words longer than a line stay whole.
func (sh *Shaper) Wrap(text string, s *Style, maxW float64) []Line {
	nowrap := s.WhiteSpace == "nowrap" || s.WhiteSpace == "pre"
	var paragraphs []string
	if s.WhiteSpace == "pre" || s.WhiteSpace == "pre-wrap" || s.WhiteSpace == "pre-line" {
		paragraphs = strings.Split(text, "\n")
	} else {
		paragraphs = []string{text}
	}

	var lines []Line
	for _, para := range paragraphs {
		words := strings.Fields(para)
		if nowrap || maxW < 0 {
			line := strings.Join(words, " ")
			if s.WhiteSpace == "pre" {
				line = para
			}
			lines = append(lines, Line{Text: line, Width: sh.Width(line, s)})
			continue
		}
		if len(words) == 0 {
			lines = append(lines, Line{})
			continue
		}
		cur := words[0]
		for _, w := range words[1:] {
			next := cur + " " + w
			if sh.Width(next, s) <= maxW+0.01 {
				cur = next
				continue
			}
			lines = append(lines, Line{Text: cur, Width: sh.Width(cur, s)})
			cur = w
		}
		lines = append(lines, Line{Text: cur, Width: sh.Width(cur, s)})
	}

	if s.LineClamp > 0 && len(lines) > s.LineClamp {
		lines = lines[:s.LineClamp]
		last := &lines[len(lines)-1]
		last.Text = sh.truncate(last.Text+" "+ellipsis, s, maxW)
		last.Width = sh.Width(last.Text, s)
	}
	if s.TextOverflow == "ellipsis" && maxW >= 0 && len(lines) == 1 && lines[0].Width > maxW+0.01 {
		lines[0].Text = sh.truncate(lines[0].Text, s, maxW)
		lines[0].Width = sh.Width(lines[0].Text, s)
	}
	return lines
}

// truncate shortens text until text+ellipsis fits in maxW.
func (sh *Shaper) truncate(text string, s *Style, maxW float64) string {
	text = strings.TrimSuffix(text, " "+ellipsis)
	if maxW < 0 || sh.Width(text+ellipsis, s) <= maxW {
		return text + ellipsis
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		cand := strings.TrimRightFunc(string(runes), unicode.IsSpace) + ellipsis
		if sh.Width(cand, s) <= maxW {
			return cand
		}
	}
	return ellipsis
}

// MaxContent is the width of the widest unwrapped line.
func (sh *Shaper) MaxContent(text string, s *Style) float64 {
	var w float64
	for _, l := range sh.Wrap(text, s, -1) {
		w = max(w, l.Width)
	}
	return w
}
