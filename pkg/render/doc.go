// Package render defines the renderer contract and the per-request render
// context shared by every backend.
//
// # Overview
//
// A [Renderer] has exactly four methods: Name, SupportedFormats,
// CreateImage and Debug. Three backends implement it, each in its own
// subpackage and each owning its own tree conversion:
//
//   - [vector]: flex-subset layout written as SVG, rasterized to PNG/JPEG
//   - [raster]: a simplified container/image/text tree painted directly
//   - [browser]: a headless browser screenshot
//
// # Render Context
//
// A [Context] is created once per request by the resolver and passed by
// reference through the transform pipeline and the backend. Its options are
// final: nothing re-merges them after creation.
//
//	rc := &render.Context{Options: opts, Renderer: r, Build: builder}
//	data, err := r.CreateImage(ctx, rc)
//
// # Shared Handles
//
// Process-lifetime singletons (the raster painter, the browser connection)
// are held in a [Lazy], which shares one in-flight construction among
// racing callers and can be reset when the handle dies.
//
// [vector]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/render/vector
// [raster]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/render/raster
// [browser]: https://pkg.go.dev/github.com/matzehuels/ogforge/pkg/render/browser
package render
