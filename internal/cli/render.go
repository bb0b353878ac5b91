package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	ogerrors "github.com/matzehuels/ogforge/pkg/errors"
	"github.com/matzehuels/ogforge/pkg/options"
	"github.com/matzehuels/ogforge/pkg/resolver"
)

// renderFlags holds flags for the render command.
type renderFlags struct {
	output   string
	renderer string
	format   string
	options  string
	props    []string
	static   bool
	debug    bool
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render [page-path]",
		Short: "Render one OG image to a file",
		Long: `Render one OG image to a file.

The page path is resolved exactly like an image request would be: options
given with --options and --prop win over the page's embedded payload, which
wins over the configured route rules and defaults.`,
		Example: `  # Render the image for a page served by the configured origin
  ogforge render /blog/hello -o hello.png

  # Render literal options without an origin
  ogforge render --options '{"component":"BlogPost","props":{"title":"Hi"}}' -f svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page := "/"
			if len(args) == 1 {
				page = args[0]
			}
			return c.runRender(cmd.Context(), page, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file, or - for stdout (default: og.<format>)")
	cmd.Flags().StringVarP(&flags.renderer, "renderer", "r", options.DefaultRenderer, "renderer: vector, raster, browser")
	cmd.Flags().StringVarP(&flags.format, "format", "f", options.DefaultExtension, "output format: png, jpeg, svg, html")
	cmd.Flags().StringVar(&flags.options, "options", "", "options as a JSON object")
	cmd.Flags().StringArrayVarP(&flags.props, "prop", "p", nil, "component prop or option override as key=value (repeatable)")
	cmd.Flags().BoolVar(&flags.static, "static", false, "use the build cache like a static route")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "print render diagnostics as JSON instead of writing the image")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, page string, flags renderFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer closeRunner(ctx, runner)

	query, err := renderQuery(flags.options, flags.props)
	if err != nil {
		return err
	}
	req, err := imageRequest(ctx, page, flags.renderer, flags.format, flags.static, query)
	if err != nil {
		return err
	}
	rc, err := runner.Resolve(ctx, req)
	if err != nil {
		return userError(err)
	}

	if flags.debug {
		diag, err := runner.Debug(ctx, rc)
		if err != nil {
			return userError(err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diag)
	}

	spinner := newSpinner(ctx, fmt.Sprintf("Rendering %s with %s...", rc.BasePath, rc.Renderer.Name()))
	spinner.Start()
	result, err := runner.Render(ctx, rc)
	if err != nil {
		spinner.StopWithError("Render failed")
		return userError(err)
	}
	spinner.Stop()

	out := flags.output
	if out == "" {
		out = "og." + rc.Extension
	}
	if out == "-" {
		_, err := os.Stdout.Write(result.Data)
		return err
	}
	if err := writeImage(out, result.Data); err != nil {
		return err
	}

	printSuccess("Rendered %s", rc.BasePath)
	printFile(out)
	printStats(result.Stats.Size, result.Stats.RenderTime, result.CacheInfo.Hit())
	for _, w := range rc.Warnings() {
		printWarning("%s", w)
	}
	return nil
}

// renderQuery builds the request query from --options and --prop.
func renderQuery(rawOptions string, props []string) (url.Values, error) {
	q := url.Values{}
	if rawOptions != "" {
		if _, err := options.ParseJSON([]byte(rawOptions)); err != nil {
			return nil, fmt.Errorf("invalid --options: %w", err)
		}
		q.Set(resolver.QueryOptions, rawOptions)
	}
	for _, p := range props {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --prop %q: want key=value", p)
		}
		q.Add(key, value)
	}
	return q, nil
}

// imageRequest builds the image request a browser would send for page.
func imageRequest(ctx context.Context, page, renderer, ext string, static bool, query url.Values) (*http.Request, error) {
	norm := options.NormalizeExtension(ext)
	if norm == "" {
		return nil, fmt.Errorf("unknown format %q (want one of %s)", ext, strings.Join(options.Extensions, ", "))
	}
	target := resolver.ImageURL(page, renderer, norm, static)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
}

// writeImage writes data to path, creating parent directories.
func writeImage(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// userError drops the error code prefix for terminal output while keeping
// the chain intact for errors.Is.
func userError(err error) error {
	var e *ogerrors.Error
	if !errors.As(err, &e) {
		return err
	}
	return &cliError{err: e}
}

type cliError struct{ err *ogerrors.Error }

func (e *cliError) Error() string {
	msg := e.err.Message
	if e.err.Cause != nil {
		msg += ": " + e.err.Cause.Error()
	}
	return msg
}

func (e *cliError) Unwrap() error { return e.err }
