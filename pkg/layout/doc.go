// Package layout is a small flexbox engine for OG image trees.
//
// It covers the subset of CSS that social cards use in practice: flex rows
// and columns (grow, shrink, basis, wrap, gap), justify/align, padding,
// margin (including auto), borders, absolute positioning, percentage sizes,
// and wrapped text measured with real font metrics. Anything outside that
// subset is reported as a warning and ignored; a layout never fails.
//
// Inputs are [Box] trees built from a normalized node tree with [Build] (or
// by a backend's own converter). [Engine.Layout] fills in absolute
// geometry and text lines:
//
//	root := layout.Build(tree)
//	warnings := layout.New(fontSet).Layout(root, 1200, 630)
//	for _, b := range root.Flatten() {
//	    // paint b at b.X, b.Y with size b.W x b.H
//	}
package layout
