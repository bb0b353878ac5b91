// Package transform applies the ordered rule list that turns a normalized
// node tree into something every backend can draw.
//
// A [Transformer] is a (Filter, Transform) pair. Transformers are grouped;
// groups run in registration order. Inside a synchronous group every
// matching transformer runs inline during one depth-first walk. An
// asynchronous group first collects every match across the whole tree, then
// runs them concurrently and waits for all of them before the next group
// starts. Each transformer touches only the node it was given.
//
// The canonical order is debug-attribute cleanup, style directive
// resolution, image absolutization and emoji substitution:
//
//	p := transform.NewPipeline(
//	    transform.Sync(transform.Entities{}),
//	    transform.Sync(transform.NewDirectives(classes, breakpoints)),
//	    transform.Async(transform.NewImages(publicDir, client)),
//	    transform.Async(transform.NewEmoji(resolver)),
//	)
//	err := p.Run(ctx, root, rc)
package transform

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/ogforge/pkg/node"
	"github.com/matzehuels/ogforge/pkg/render"
)

// Transformer is one rule of the pipeline.
type Transformer interface {
	Filter(n *node.Node) bool
	Transform(ctx context.Context, n *node.Node, rc *render.Context) error
}

// Group is a set of transformers scheduled together.
type Group struct {
	Async        bool
	Transformers []Transformer
}

// Sync groups transformers that run inline during the walk.
func Sync(ts ...Transformer) Group { return Group{Transformers: ts} }

// Async groups transformers whose matches run concurrently.
func Async(ts ...Transformer) Group { return Group{Async: true, Transformers: ts} }

// Pipeline is an ordered list of groups.
type Pipeline struct {
	Groups []Group
	// Limit caps concurrent async work; zero means unbounded.
	Limit int
}

// NewPipeline returns a pipeline running groups in order.
func NewPipeline(groups ...Group) *Pipeline {
	return &Pipeline{Groups: groups, Limit: 16}
}

// Run applies every group to the tree rooted at root. The first error aborts
// the run.
func (p *Pipeline) Run(ctx context.Context, root *node.Node, rc *render.Context) error {
	for _, g := range p.Groups {
		var err error
		if g.Async {
			err = p.runAsync(ctx, g, root, rc)
		} else {
			err = runSync(ctx, g, root, rc)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func runSync(ctx context.Context, g Group, n *node.Node, rc *render.Context) error {
	for _, t := range g.Transformers {
		if t.Filter(n) {
			if err := t.Transform(ctx, n, rc); err != nil {
				return err
			}
		}
	}
	for _, c := range n.Children {
		if err := runSync(ctx, g, c, rc); err != nil {
			return err
		}
	}
	return nil
}

type job struct {
	t Transformer
	n *node.Node
}

func (p *Pipeline) runAsync(ctx context.Context, g Group, root *node.Node, rc *render.Context) error {
	var jobs []job
	root.Walk(func(n, _ *node.Node) bool {
		for _, t := range g.Transformers {
			if t.Filter(n) {
				jobs = append(jobs, job{t, n})
			}
		}
		return true
	})
	if len(jobs) == 0 {
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	if p.Limit > 0 {
		eg.SetLimit(p.Limit)
	}
	for _, j := range jobs {
		eg.Go(func() error {
			return j.t.Transform(egCtx, j.n, rc)
		})
	}
	return eg.Wait()
}
