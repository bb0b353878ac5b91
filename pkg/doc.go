// Package pkg provides the core libraries for ogforge, an Open Graph image
// renderer.
//
// # Overview
//
// ogforge turns a page's component markup into a social-preview image. The
// pkg directory is organized into four main areas:
//
//  1. Request handling ([resolver], [urlcodec], [options], [config])
//  2. Tree building ([islands], [node], [transform], [emoji], [fonts])
//  3. Backends ([render], [render/vector], [render/raster], [render/browser])
//  4. Infrastructure ([cache], [httputil], [observability], [errors])
//
// [pipeline] ties them together and [server] exposes the pipeline over HTTP.
//
// # Architecture
//
// The typical data flow for one image:
//
//	GET /blog/hello/image/vector/og.png
//	         ↓
//	    [resolver] (path, query, page payload, route rules → render.Context)
//	         ↓
//	    [islands] + [node] (component HTML → normalized tree)
//	         ↓
//	    [transform] (entities, utility classes, images, emoji)
//	         ↓
//	    [render] backend (tree → PNG/JPEG/SVG/HTML)
//	         ↓
//	    [cache] (image tier, build cache)
//
// # Quick Start
//
// Serve images for a site:
//
//	cfg, _ := config.Load("ogforge.toml")
//	runner, _ := pipeline.NewRunner(ctx, cfg, logger)
//	defer runner.Close()
//	_ = server.New(runner, logger).ListenAndServe(ctx, cfg.Listen)
//
// Render one image without a server:
//
//	req, _ := http.NewRequest(http.MethodGet, "/blog/hello/image/vector/og.png", nil)
//	rc, _ := runner.Resolve(ctx, req)
//	result, _ := runner.Render(ctx, rc)
//	os.WriteFile("og.png", result.Data, 0o644)
//
// # Storage
//
// [cache] opens every tier from one driver name: memory, fs, redis (shared
// payload and image tiers) or mongo (font and emoji assets). The build cache
// always lives on disk so static images survive restarts.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                 # All tests
//	go test ./pkg/resolver/...        # Specific package
//
// [resolver]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/resolver
// [urlcodec]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/urlcodec
// [options]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/options
// [config]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/config
// [islands]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/islands
// [node]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/node
// [transform]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/transform
// [emoji]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/emoji
// [fonts]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/fonts
// [render]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/render
// [render/vector]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/render/vector
// [render/raster]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/render/raster
// [render/browser]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/render/browser
// [cache]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/cache
// [httputil]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/errors
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/pipeline
// [server]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/server
package pkg
