package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	ogerrors "github.com/matzehuels/ogforge/pkg/errors"
	"github.com/matzehuels/ogforge/pkg/islands"
	"github.com/matzehuels/ogforge/pkg/node"
	"github.com/matzehuels/ogforge/pkg/options"
	"github.com/matzehuels/ogforge/pkg/render"
)

// BuildTree renders the component of rc (or its literal html) and returns
// the normalized, transformed tree. It is the [render.TreeBuilder] of every
// context the runner prepares.
func (r *Runner) BuildTree(ctx context.Context, rc *render.Context) (*node.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fragment, err := r.Fragment(ctx, rc.Options)
	if err != nil {
		return nil, err
	}

	root, err := node.Parse(fragment, rc.Width(), rc.Height())
	if err != nil {
		return nil, ogerrors.Wrap(ogerrors.ErrCodeRender, err, "normalize %s", component(rc.Options))
	}
	if tags := node.UnsupportedSVG(root); len(tags) > 0 {
		name := component(rc.Options)
		rc.Warn(ctx, unsupportedSVGWarning(name, tags), "component", name, "elements", tags)
	}
	if err := r.Transforms.Run(ctx, root, rc); err != nil {
		return nil, ogerrors.Wrap(ogerrors.ErrCodeRender, err, "transform %s", rc.BasePath)
	}
	return root, nil
}

// Fragment returns the HTML an image is built from: the literal html
// option, or the island render of the component.
func (r *Runner) Fragment(ctx context.Context, o *options.Options) (string, error) {
	if o.HTML != "" {
		return o.HTML, nil
	}
	name := component(o)
	html, err := r.Islands.Render(ctx, name, o.Props)
	if errors.Is(err, islands.ErrComponentNotFound) {
		return "", ogerrors.BadRequest("unknown component %q", name)
	}
	if err != nil {
		return "", ogerrors.Wrap(ogerrors.ErrCodeRender, err, "render component %s", name)
	}
	return html, nil
}

func component(o *options.Options) string {
	if o.Component == "" {
		return options.DefaultComponent
	}
	return o.Component
}

// unsupportedSVGWarning names the component and every unsupported SVG
// element found in it.
func unsupportedSVGWarning(component string, tags []string) string {
	quoted := make([]string, len(tags))
	for i, tag := range tags {
		quoted[i] = "<" + tag + ">"
	}
	return fmt.Sprintf("component %s: svg elements %s are not supported and will not be drawn", component, strings.Join(quoted, ", "))
}
