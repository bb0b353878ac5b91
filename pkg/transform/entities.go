package transform

import (
	"context"
	"strings"

	"github.com/matzehuels/ogforge/pkg/node"
	"github.com/matzehuels/ogforge/pkg/render"
)

// Entities is the first pass over a parsed tree. It strips framework debug
// attributes (data-v-*, data-v-inspector, data-island-uid).
//
// Character references are decoded by [node.Parse], exactly once. Text such
// as "&lt;div&gt;" in the tree is what the page meant to show and must not
// be decoded again.
type Entities struct{}

func (Entities) Filter(n *node.Node) bool {
	return !n.IsText() && len(n.Props) > 0
}

func (Entities) Transform(_ context.Context, n *node.Node, _ *render.Context) error {
	for k := range n.Props {
		if isDebugAttr(k) {
			delete(n.Props, k)
		}
	}
	return nil
}

func isDebugAttr(k string) bool {
	return strings.HasPrefix(k, "data-v-") || k == "data-v-inspector" || k == "data-island-uid"
}
