// Package pipeline runs one OG image render end to end.
//
// The stages are:
//
//  1. Resolve: request path and query become a [render.Context]
//  2. Tree: the component is rendered to HTML, normalized into a node tree
//     and passed through the transform pipeline
//  3. Render: the selected backend turns the tree into image bytes
//
// Stage 3 sits behind two caches: the image tier (shared, TTL from the
// options, honoured only in production-like modes) and the build cache
// (on disk, used for static routes and prerender runs). Renders are
// detached from request cancellation so a finished render always fills the
// cache.
//
// # Usage
//
//	runner, err := pipeline.NewRunner(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer runner.Close()
//
//	rc, err := runner.Resolve(ctx, req)
//	if err != nil {
//	    return err
//	}
//	result, err := runner.Render(ctx, rc)
package pipeline

import (
	"time"
)

// Result contains the outputs of one render.
type Result struct {
	// Data is the encoded image.
	Data []byte

	// ContentType is the MIME type for the extension.
	ContentType string

	// Headers are the cache headers to send with Data.
	Headers map[string]string

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which caches served the result.
	CacheInfo CacheInfo
}

// Stats contains render statistics.
type Stats struct {
	RenderTime time.Duration
	Size       int
}

// CacheInfo tracks cache hits for each cache in front of the backend.
type CacheInfo struct {
	ImageHit bool // Whether the image tier served the bytes
	BuildHit bool // Whether the build cache served the bytes
}

// Hit reports whether no backend ran.
func (c CacheInfo) Hit() bool { return c.ImageHit || c.BuildHit }
