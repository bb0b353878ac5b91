package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/ogforge/pkg/config"
	"github.com/matzehuels/ogforge/pkg/options"
	"github.com/matzehuels/ogforge/pkg/pipeline"
	"github.com/matzehuels/ogforge/pkg/render"
)

// ManifestFile is written to the output directory after a prerender run.
const ManifestFile = "og-manifest.json"

// prerenderFlags holds flags for the prerender command.
type prerenderFlags struct {
	from        string
	out         string
	renderer    string
	format      string
	concurrency int
}

// ManifestEntry records where one route's image was written.
type ManifestEntry struct {
	Path    string `json:"path"`
	Image   string `json:"image"`
	Compact string `json:"compact,omitempty"`
	Size    int    `json:"size"`
	Cached  bool   `json:"cached"`
	Error   string `json:"error,omitempty"`
}

// prerenderCommand creates the prerender command.
func (c *CLI) prerenderCommand() *cobra.Command {
	var flags prerenderFlags

	cmd := &cobra.Command{
		Use:   "prerender [page-path...]",
		Short: "Render OG images for a list of routes ahead of deployment",
		Long: `Render OG images for a list of routes ahead of deployment.

Routes come from the arguments, from --from (one path per line, # starts a
comment), or, when neither is given, from the exact route rules in the config.
Each image is written under --out at its static URL, so the directory can be
deployed next to the site. Options are remembered for the rest of the run
and renders go through the build cache, so unchanged images are reused.`,
		Example: `  ogforge prerender /blog/hello /blog/world --out dist
  ogforge prerender --from routes.txt --out dist -f jpeg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPrerender(cmd.Context(), args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.from, "from", "", "file with one page path per line")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "dist", "output directory")
	cmd.Flags().StringVarP(&flags.renderer, "renderer", "r", options.DefaultRenderer, "renderer: vector, raster, browser")
	cmd.Flags().StringVarP(&flags.format, "format", "f", options.DefaultExtension, "output format: png, jpeg, svg")
	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "j", runtime.GOMAXPROCS(0), "renders in flight")

	return cmd
}

func (c *CLI) runPrerender(ctx context.Context, args []string, flags prerenderFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	routes, err := prerenderRoutes(args, flags.from, cfg)
	if err != nil {
		return err
	}
	if len(routes) == 0 {
		return fmt.Errorf("no routes to prerender: pass page paths, --from, or exact route rules in the config")
	}

	runner, err := c.newRunner(ctx, cfg, render.ModePrerender)
	if err != nil {
		return err
	}
	defer closeRunner(ctx, runner)

	prog := newProgress(loggerFromContext(ctx))
	spinner := newSpinner(ctx, fmt.Sprintf("Prerendering %d routes...", len(routes)))
	spinner.Start()

	entries := make([]ManifestEntry, len(routes))
	var finished atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(max(flags.concurrency, 1))
	for i, route := range routes {
		g.Go(func() error {
			entries[i] = prerenderOne(ctx, runner, route, flags)
			spinner.SetMessage("Prerendering %d/%d routes...", finished.Add(1), len(routes))
			return nil
		})
	}
	_ = g.Wait()
	spinner.Stop()

	if err := writeManifest(filepath.Join(flags.out, ManifestFile), entries); err != nil {
		return err
	}

	var failed int
	for _, e := range entries {
		if e.Error != "" {
			failed++
			printError("%s: %s", e.Path, e.Error)
			continue
		}
		printFile(e.Image)
		printStats(e.Size, 0, e.Cached)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d routes failed", failed, len(routes))
	}
	prog.done(fmt.Sprintf("Prerendered %d routes", len(routes)))
	printSuccess("Prerendered %s images into %s", StyleNumber.Render(fmt.Sprint(len(routes))), flags.out)
	printNextStep("Manifest", filepath.Join(flags.out, ManifestFile))
	return nil
}

// prerenderOne renders one route and writes it under flags.out. Failures are
// reported in the entry so other routes keep going.
func prerenderOne(ctx context.Context, runner *pipeline.Runner, route string, flags prerenderFlags) ManifestEntry {
	entry := ManifestEntry{Path: route}
	fail := func(err error) ManifestEntry {
		entry.Error = userError(err).Error()
		loggerFromContext(ctx).Warn("prerender failed", "path", route, "error", err)
		return entry
	}

	req, err := imageRequest(ctx, route, flags.renderer, flags.format, true, nil)
	if err != nil {
		return fail(err)
	}
	rc, err := runner.Resolve(ctx, req)
	if err != nil {
		return fail(err)
	}
	raw := rc.Options.Raw()
	if err := runner.Resolver.Remember(ctx, rc.BasePath, raw); err != nil {
		loggerFromContext(ctx).Warn("remember options", "path", route, "error", err)
	}

	result, err := runner.Render(ctx, rc)
	if err != nil {
		return fail(err)
	}
	out := filepath.Join(flags.out, filepath.FromSlash(strings.TrimPrefix(req.URL.Path, "/")))
	if err := writeImage(out, result.Data); err != nil {
		return fail(err)
	}

	entry.Image = out
	entry.Size = result.Stats.Size
	entry.Cached = result.CacheInfo.Hit()
	if compact, err := runner.Resolver.CompactURL(ctx, raw, rc.Extension, true); err == nil {
		entry.Compact = compact
	}
	return entry
}

// prerenderRoutes collects page paths from args, the --from file, and the
// config's exact route rules, in that order of preference.
func prerenderRoutes(args []string, from string, cfg *config.Config) ([]string, error) {
	routes := slices.Clone(args)
	if from != "" {
		f, err := os.Open(from)
		if err != nil {
			return nil, fmt.Errorf("open routes file: %w", err)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			routes = append(routes, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read routes file: %w", err)
		}
	}
	if len(routes) == 0 {
		for _, rule := range cfg.Routes {
			if rule.Disabled || strings.Contains(rule.Pattern, "*") {
				continue
			}
			routes = append(routes, rule.Pattern)
		}
	}
	slices.Sort(routes)
	return slices.Compact(routes), nil
}

func writeManifest(path string, entries []ManifestEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return writeImage(path, append(data, '\n'))
}
