package node

// svgNames restores the case of SVG element and attribute names that HTML
// parsing lowercases.
var svgNames = map[string]string{
	// attributes
	"viewbox":             "viewBox",
	"preserveaspectratio": "preserveAspectRatio",
	"gradienttransform":   "gradientTransform",
	"gradientunits":       "gradientUnits",
	"patternunits":        "patternUnits",
	"patterncontentunits": "patternContentUnits",
	"patterntransform":    "patternTransform",
	"clippathunits":       "clipPathUnits",
	"maskunits":           "maskUnits",
	"maskcontentunits":    "maskContentUnits",
	"filterunits":         "filterUnits",
	"primitiveunits":      "primitiveUnits",
	"spreadmethod":        "spreadMethod",
	"stddeviation":        "stdDeviation",
	"markerwidth":         "markerWidth",
	"markerheight":        "markerHeight",
	"markerunits":         "markerUnits",
	"refx":                "refX",
	"refy":                "refY",
	"pathlength":          "pathLength",
	"textlength":          "textLength",
	"lengthadjust":        "lengthAdjust",
	"startoffset":         "startOffset",
	"basefrequency":       "baseFrequency",
	"numoctaves":          "numOctaves",
	"stitchtiles":         "stitchTiles",
	"tablevalues":         "tableValues",
	"kernelmatrix":        "kernelMatrix",
	"surfacescale":        "surfaceScale",
	"specularexponent":    "specularExponent",
	"diffuseconstant":     "diffuseConstant",
	"xchannelselector":    "xChannelSelector",
	"ychannelselector":    "yChannelSelector",
	"edgemode":            "edgeMode",
	"attributename":       "attributeName",
	"keytimes":            "keyTimes",
	"keysplines":          "keySplines",
	"repeatcount":         "repeatCount",
	// elements
	"lineargradient":    "linearGradient",
	"radialgradient":    "radialGradient",
	"clippath":          "clipPath",
	"textpath":          "textPath",
	"foreignobject":     "foreignObject",
	"fegaussianblur":    "feGaussianBlur",
	"feoffset":          "feOffset",
	"feblend":           "feBlend",
	"fecolormatrix":     "feColorMatrix",
	"fecomposite":       "feComposite",
	"feflood":           "feFlood",
	"femerge":           "feMerge",
	"femergenode":       "feMergeNode",
	"fedropshadow":      "feDropShadow",
	"feturbulence":      "feTurbulence",
	"fedisplacementmap": "feDisplacementMap",
	"animatetransform":  "animateTransform",
}

func restoreSVGName(name string) string {
	if fixed, ok := svgNames[name]; ok {
		return fixed
	}
	return name
}

// unsupportedSVG are SVG children the render backends cannot draw.
var unsupportedSVG = map[string]bool{
	"text": true, "tspan": true, "textPath": true,
	"foreignObject": true, "switch": true, "a": true,
}

// UnsupportedSVG returns the distinct unsupported element names found inside
// any <svg> subtree, in first-seen order.
func UnsupportedSVG(root *Node) []string {
	var found []string
	seen := map[string]bool{}
	var visit func(n *Node, inSVG bool)
	visit = func(n *Node, inSVG bool) {
		if n.IsText() {
			return
		}
		if inSVG && unsupportedSVG[n.Type] && !seen[n.Type] {
			seen[n.Type] = true
			found = append(found, n.Type)
		}
		inSVG = inSVG || n.Type == "svg"
		for _, c := range n.Children {
			visit(c, inSVG)
		}
	}
	visit(root, false)
	return found
}
