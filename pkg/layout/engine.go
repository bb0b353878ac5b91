package layout

import (
	"strings"

	"github.com/matzehuels/ogforge/pkg/fonts"
)

// Engine lays out box trees. An engine is not safe for concurrent use.
type Engine struct {
	shaper   *Shaper
	warnings []string
	seen     map[string]bool
	heights  map[heightKey]float64
	widths   map[widthKey]float64
}

type heightKey struct {
	b         *Box
	w, cw, ch float64
}

type widthKey struct {
	b  *Box
	cw float64
}

// New returns an engine measuring text with set.
func New(set []*fonts.Font) *Engine {
	return &Engine{shaper: NewShaper(set)}
}

// Shaper returns the engine's text shaper.
func (e *Engine) Shaper() *Shaper { return e.shaper }

// Layout sizes root to width x height, lays out the whole tree and converts
// every position to absolute canvas coordinates. It returns the layout
// warnings collected along the way.
func (e *Engine) Layout(root *Box, width, height float64) []string {
	e.warnings, e.seen = nil, map[string]bool{}
	e.heights = map[heightKey]float64{}
	e.widths = map[widthKey]float64{}

	root.X, root.Y, root.W, root.H = 0, 0, width, height
	e.arrange(root)
	translate(root, 0, 0)
	return e.warnings
}

// Warn records a warning once.
func (e *Engine) Warn(msg string) {
	if e.seen == nil {
		e.seen = map[string]bool{}
	}
	if !e.seen[msg] {
		e.seen[msg] = true
		e.warnings = append(e.warnings, msg)
	}
}

func translate(b *Box, ox, oy float64) {
	b.X += ox
	b.Y += oy
	for _, c := range b.Children {
		translate(c, b.X, b.Y)
	}
}

// arrange lays out b's content for its final size.
func (e *Engine) arrange(b *Box) {
	switch b.Kind {
	case KindContainer:
		e.flex(b, b.W, b.H, true)
	case KindText:
		e.setLines(b)
	}
}

func (e *Engine) insets(b *Box, base float64) [4]float64 {
	var out [4]float64
	for i := range out {
		out[i] = b.Style.Padding[i].or(base, 0) + b.Style.Border[i].or(-1, 0)
	}
	return out
}

func margins(b *Box, base float64) (px [4]float64, auto [4]bool) {
	for i, m := range b.Style.Margin {
		if b.Style.AutoMargin[i] {
			auto[i] = true
			continue
		}
		px[i] = m.or(base, 0)
	}
	return px, auto
}

func clampLen(v float64, lo, hi Length, base float64) float64 {
	if mx, ok := hi.Resolve(base); ok {
		v = min(v, mx)
	}
	if mn, ok := lo.Resolve(base); ok {
		v = max(v, mn)
	}
	return max(v, 0)
}

// maxContent returns the border-box width b wants without wrapping.
func (e *Engine) maxContent(b *Box, cw float64) float64 {
	key := widthKey{b, cw}
	if w, ok := e.widths[key]; ok {
		return w
	}
	w := e.computeMaxContent(b, cw)
	e.widths[key] = w
	return w
}

func (e *Engine) computeMaxContent(b *Box, cw float64) float64 {
	s := &b.Style
	if w, ok := s.Width.Resolve(cw); ok {
		return clampLen(w, s.MinW, s.MaxW, cw)
	}
	ins := e.insets(b, cw)
	var w float64
	switch b.Kind {
	case KindText:
		w = e.shaper.MaxContent(b.Text, s)
	case KindImage, KindSVG:
		w, _ = replacedSize(b, cw, -1)
	default:
		row := isRow(s.Direction)
		n := 0
		for _, c := range b.Children {
			if c.Style.Position == "absolute" {
				continue
			}
			m, _ := margins(c, -1)
			cwid := e.maxContent(c, -1) + m[left] + m[right]
			if row {
				w += cwid
			} else {
				w = max(w, cwid)
			}
			n++
		}
		if row && n > 1 {
			w += s.ColumnGap * float64(n-1)
		}
	}
	return clampLen(w+ins[left]+ins[right], s.MinW, s.MaxW, cw)
}

// heightFor returns the border-box height of b at border-box width w.
func (e *Engine) heightFor(b *Box, w, cw, ch float64) float64 {
	key := heightKey{b, w, cw, ch}
	if h, ok := e.heights[key]; ok {
		return h
	}
	h := e.computeHeight(b, w, cw, ch)
	e.heights[key] = h
	return h
}

func (e *Engine) computeHeight(b *Box, w, cw, ch float64) float64 {
	s := &b.Style
	if h, ok := s.Height.Resolve(ch); ok {
		return clampLen(h, s.MinH, s.MaxH, ch)
	}
	ins := e.insets(b, cw)
	switch b.Kind {
	case KindText:
		lines := e.shaper.Wrap(b.Text, s, max(0, w-ins[left]-ins[right]))
		h := float64(len(lines))*s.LineHeightPx() + ins[top] + ins[bottom]
		return clampLen(h, s.MinH, s.MaxH, ch)
	case KindImage, KindSVG:
		iw, ih := b.IntrinsicW, b.IntrinsicH
		if iw > 0 && ih > 0 {
			return clampLen(w*ih/iw, s.MinH, s.MaxH, ch)
		}
		return clampLen(ih, s.MinH, s.MaxH, ch)
	}
	return e.flex(b, w, -1, false)
}

// replacedSize resolves an image's size from its style and natural aspect.
func replacedSize(b *Box, cw, ch float64) (float64, float64) {
	w, wok := b.Style.Width.Resolve(cw)
	h, hok := b.Style.Height.Resolve(ch)
	var ratio float64
	if b.IntrinsicW > 0 && b.IntrinsicH > 0 {
		ratio = b.IntrinsicW / b.IntrinsicH
	}
	switch {
	case wok && hok:
	case wok:
		if ratio > 0 {
			h = w / ratio
		}
	case hok:
		w = h * ratio
	default:
		w, h = b.IntrinsicW, b.IntrinsicH
	}
	return w, h
}

func isRow(dir string) bool { return dir == "" || strings.HasPrefix(dir, "row") }

type item struct {
	b          *Box
	margin     [4]float64
	auto       [4]bool
	base, main float64
	cross      float64
	crossSet   bool
}

// mainStart, mainEnd, crossStart and crossEnd map flex axes to sides.
func axes(row bool) (ms, me, cs, ce int) {
	if row {
		return left, right, top, bottom
	}
	return top, bottom, left, right
}

func (e *Engine) alignOf(parent, c *Box) string {
	if a := c.Style.AlignSelf; a != "" && a != "auto" {
		return a
	}
	return parent.Style.AlignItems
}

// flex lays out b's in-flow children inside a w x h border box (h < 0 when
// the height is content-driven) and returns the used border-box height.
// With final set, children are arranged recursively and absolutely
// positioned children are placed.
func (e *Engine) flex(b *Box, w, h float64, final bool) float64 {
	s := &b.Style
	ins := e.insets(b, w)
	iw := max(0, w-ins[left]-ins[right])
	ih := -1.0
	if h >= 0 {
		ih = max(0, h-ins[top]-ins[bottom])
	}

	row := isRow(s.Direction)
	reverse := strings.HasSuffix(s.Direction, "-reverse")
	ms, me, cs, ce := axes(row)
	innerMain, innerCross := iw, ih
	mainGap, crossGap := s.ColumnGap, s.RowGap
	if !row {
		innerMain, innerCross = ih, iw
		mainGap, crossGap = s.RowGap, s.ColumnGap
	}
	if s.Wrap && !row {
		e.Warn("flex-wrap is only supported for rows")
	}

	var items []*item
	for _, c := range b.Children {
		if c.Style.Position == "absolute" {
			continue
		}
		it := &item{b: c}
		it.margin, it.auto = margins(c, iw)
		cst := &c.Style

		if !row {
			if v, ok := cst.Width.Resolve(iw); ok {
				it.cross = clampLen(v, cst.MinW, cst.MaxW, iw)
				it.crossSet = true
			} else {
				avail := iw - it.margin[left] - it.margin[right]
				if e.alignOf(b, c) == "stretch" && !it.auto[left] && !it.auto[right] && c.Kind != KindImage && c.Kind != KindSVG {
					it.cross = clampLen(avail, cst.MinW, cst.MaxW, iw)
				} else {
					it.cross = clampLen(min(e.maxContent(c, iw), max(avail, 0)), cst.MinW, cst.MaxW, iw)
				}
			}
		}

		mainLen, minL, maxL := cst.Width, cst.MinW, cst.MaxW
		if !row {
			mainLen, minL, maxL = cst.Height, cst.MinH, cst.MaxH
		}
		if v, ok := cst.Basis.Resolve(innerMain); ok {
			it.base = v
		} else if v, ok := mainLen.Resolve(innerMain); ok {
			it.base = v
		} else if row {
			it.base = e.maxContent(c, iw)
		} else {
			it.base = e.heightFor(c, it.cross, iw, ih)
		}
		it.main = clampLen(it.base, minL, maxL, innerMain)
		items = append(items, it)
	}

	lines := [][]*item{items}
	if s.Wrap && row && innerMain >= 0 && len(items) > 1 {
		lines = nil
		var cur []*item
		var used float64
		for _, it := range items {
			size := it.main + it.margin[ms] + it.margin[me]
			if len(cur) > 0 && used+mainGap+size > innerMain+0.01 {
				lines = append(lines, cur)
				cur, used = nil, 0
			}
			if len(cur) > 0 {
				used += mainGap
			}
			cur = append(cur, it)
			used += size
		}
		lines = append(lines, cur)
	}

	lineCross := make([]float64, len(lines))
	for li, line := range lines {
		e.resolveFlexible(line, innerMain, mainGap, row, ms, me)
		for _, it := range line {
			c := it.b
			cst := &c.Style
			if row {
				if v, ok := cst.Height.Resolve(ih); ok {
					it.cross = clampLen(v, cst.MinH, cst.MaxH, ih)
					it.crossSet = true
				} else {
					it.cross = e.heightFor(c, it.main, iw, ih)
				}
			}
			lineCross[li] = max(lineCross[li], it.cross+it.margin[cs]+it.margin[ce])
		}
		if len(lines) == 1 && innerCross >= 0 {
			lineCross[li] = innerCross
		}
		for _, it := range line {
			c := it.b
			if e.alignOf(b, c) != "stretch" || it.crossSet || it.auto[cs] || it.auto[ce] {
				continue
			}
			if c.Kind == KindImage || c.Kind == KindSVG {
				continue
			}
			if row {
				it.cross = clampLen(lineCross[li]-it.margin[cs]-it.margin[ce], c.Style.MinH, c.Style.MaxH, ih)
			}
		}
	}

	var totalCross float64
	for i, lc := range lineCross {
		totalCross += lc
		if i > 0 {
			totalCross += crossGap
		}
	}

	var maxUsedMain float64
	crossPos := 0.0
	for li, line := range lines {
		used := lineUsed(line, mainGap, ms, me)
		maxUsedMain = max(maxUsedMain, used)
		extent := innerMain
		if extent < 0 {
			extent = used
		}
		free := extent - used

		autos := 0
		for _, it := range line {
			if it.auto[ms] {
				autos++
			}
			if it.auto[me] {
				autos++
			}
		}
		var autoShare float64
		if free > 0 && autos > 0 {
			autoShare = free / float64(autos)
			free = 0
		}
		start, between := justify(s.Justify, max(free, 0), len(line))
		if free < 0 && (s.Justify == "center") {
			start = free / 2
		}

		pos := start
		for _, it := range line {
			c := it.b
			if it.auto[ms] {
				pos += autoShare
			}
			pos += it.margin[ms]
			mainPos := pos
			pos += it.main + it.margin[me] + mainGap + between
			if it.auto[me] {
				pos += autoShare
			}
			if reverse {
				mainPos = extent - mainPos - it.main
			}

			avail := lineCross[li] - it.cross - it.margin[cs] - it.margin[ce]
			var off float64
			switch {
			case it.auto[cs] && it.auto[ce]:
				off = avail / 2
			case it.auto[cs]:
				off = avail
			case it.auto[ce]:
			default:
				switch e.alignOf(b, c) {
				case "flex-end", "end":
					off = avail
				case "center":
					off = avail / 2
				}
			}
			crossOff := crossPos + it.margin[cs] + off

			if row {
				c.X, c.Y = ins[left]+mainPos, ins[top]+crossOff
				c.W, c.H = it.main, it.cross
			} else {
				c.X, c.Y = ins[left]+crossOff, ins[top]+mainPos
				c.W, c.H = it.cross, it.main
			}
		}
		crossPos += lineCross[li] + crossGap
	}

	usedH := h
	if h < 0 {
		content := totalCross
		if !row {
			content = maxUsedMain
		}
		usedH = clampLen(content+ins[top]+ins[bottom], s.MinH, s.MaxH, -1)
	}

	if final {
		for _, it := range items {
			e.arrange(it.b)
		}
		for _, c := range b.Children {
			if c.Style.Position == "absolute" {
				e.placeAbsolute(c, b, w, usedH)
			}
		}
	}
	return usedH
}

func lineUsed(line []*item, gap float64, ms, me int) float64 {
	var used float64
	for i, it := range line {
		used += it.main + it.margin[ms] + it.margin[me]
		if i > 0 {
			used += gap
		}
	}
	return used
}

// resolveFlexible distributes free space by flex-grow, or removes overflow
// by flex-shrink weighted with the base size.
func (e *Engine) resolveFlexible(line []*item, innerMain, gap float64, row bool, ms, me int) {
	if innerMain < 0 {
		return
	}
	free := innerMain - lineUsed(line, gap, ms, me)
	minOf := func(it *item) (Length, Length) {
		if row {
			return it.b.Style.MinW, it.b.Style.MaxW
		}
		return it.b.Style.MinH, it.b.Style.MaxH
	}
	switch {
	case free > 0:
		var grow float64
		for _, it := range line {
			grow += it.b.Style.Grow
		}
		if grow == 0 {
			return
		}
		for _, it := range line {
			lo, hi := minOf(it)
			it.main = clampLen(it.main+free*it.b.Style.Grow/grow, lo, hi, innerMain)
		}
	case free < 0:
		var weight float64
		for _, it := range line {
			weight += it.b.Style.Shrink * it.base
		}
		if weight == 0 {
			return
		}
		for _, it := range line {
			lo, hi := minOf(it)
			it.main = clampLen(it.main+free*it.b.Style.Shrink*it.base/weight, lo, hi, innerMain)
		}
	}
}

// justify returns the offset of the first item and the extra space between
// items for justify-content.
func justify(mode string, free float64, n int) (start, between float64) {
	if n == 0 {
		return 0, 0
	}
	switch mode {
	case "flex-end", "end", "right":
		return free, 0
	case "center":
		return free / 2, 0
	case "space-between":
		if n == 1 {
			return 0, 0
		}
		return 0, free / float64(n-1)
	case "space-around":
		each := free / float64(n)
		return each / 2, each
	case "space-evenly":
		each := free / float64(n+1)
		return each, each
	}
	return 0, 0
}

// placeAbsolute positions c against the padding box of parent.
func (e *Engine) placeAbsolute(c, parent *Box, pw, ph float64) {
	bw := parent.BorderWidth()
	cbW := max(0, pw-bw[left]-bw[right])
	cbH := max(0, ph-bw[top]-bw[bottom])
	st := &c.Style
	m, _ := margins(c, cbW)

	l, lok := st.Inset[left].Resolve(cbW)
	r, rok := st.Inset[right].Resolve(cbW)
	t, tok := st.Inset[top].Resolve(cbH)
	btm, bok := st.Inset[bottom].Resolve(cbH)

	w, wok := st.Width.Resolve(cbW)
	switch {
	case wok:
		w = clampLen(w, st.MinW, st.MaxW, cbW)
	case lok && rok:
		w = clampLen(cbW-l-r-m[left]-m[right], st.MinW, st.MaxW, cbW)
	default:
		w = min(e.maxContent(c, cbW), cbW)
	}
	h, hok := st.Height.Resolve(cbH)
	switch {
	case hok:
		h = clampLen(h, st.MinH, st.MaxH, cbH)
	case tok && bok:
		h = clampLen(cbH-t-btm-m[top]-m[bottom], st.MinH, st.MaxH, cbH)
	default:
		h = e.heightFor(c, w, cbW, cbH)
	}

	ins := e.insets(parent, pw)
	x := ins[left] + m[left]
	switch {
	case lok:
		x = bw[left] + l + m[left]
	case rok:
		x = pw - bw[right] - r - w - m[right]
	}
	y := ins[top] + m[top]
	switch {
	case tok:
		y = bw[top] + t + m[top]
	case bok:
		y = ph - bw[bottom] - btm - h - m[bottom]
	}
	c.X, c.Y, c.W, c.H = x, y, w, h
	e.arrange(c)
}

// setLines wraps a text box for its final width and positions each line.
func (e *Engine) setLines(b *Box) {
	s := &b.Style
	ins := e.insets(b, b.W)
	cw := max(0, b.W-ins[left]-ins[right])
	b.Font = e.shaper.Font(s)
	b.Lines = e.shaper.Wrap(b.Text, s, cw)

	lh := s.LineHeightPx()
	asc, desc := e.shaper.Ascent(s), e.shaper.Descent(s)
	lead := (lh - (asc + desc)) / 2
	for i := range b.Lines {
		ln := &b.Lines[i]
		switch s.TextAlign {
		case "center":
			ln.X = (cw - ln.Width) / 2
		case "right", "end":
			ln.X = cw - ln.Width
		}
		ln.Baseline = float64(i)*lh + lead + asc
	}
}
