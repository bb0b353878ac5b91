package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ogforge/pkg/render"
	"github.com/matzehuels/ogforge/pkg/server"
)

// serveFlags holds command-line overrides for the serve command.
type serveFlags struct {
	listen string
	origin string
	dev    bool
	debug  bool
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve OG images over HTTP",
		Long: `Serve OG images over HTTP.

Images are available next to every page:

  /<page>/image/<renderer>/og.<ext>     runtime image
  /<page>/static/<renderer>/og.<ext>    build-cached image
  /_og/d/<encoded-options>.<ext>        compact URL

Options come from the ?options= query, the page's embedded
<script id="og-image-options"> payload, and the configured route rules.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if flags.listen != "" {
				cfg.Listen = flags.listen
			}
			if flags.origin != "" {
				cfg.Origin = flags.origin
			}
			if flags.debug {
				cfg.Debug = true
			}
			var mode render.Mode
			if flags.dev {
				mode = render.ModeDev
			}

			runner, err := c.newRunner(ctx, cfg, mode)
			if err != nil {
				return err
			}
			defer closeRunner(ctx, runner)

			printSuccess("Serving OG images on %s", StyleLink.Render(listenURL(cfg.Listen)))
			printKeyValue("mode", string(cfg.Mode))
			printKeyValue("target", cfg.Target)
			printKeyValue("renderers", strings.Join(runner.Registry.Names(), ", "))
			if origin := cfg.OriginURL(); origin != "" {
				printKeyValue("origin", origin)
			}
			return server.New(runner, loggerFromContext(ctx)).ListenAndServe(ctx, cfg.Listen)
		},
	}

	cmd.Flags().StringVarP(&flags.listen, "listen", "l", "", "listen address (default from config, "+`":8080"`+")")
	cmd.Flags().StringVar(&flags.origin, "origin", "", "origin that serves the pages (default: site_url)")
	cmd.Flags().BoolVar(&flags.dev, "dev", false, "development mode: no image caching, template reload, debug endpoints")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "expose debug headers and /debug.json without dev mode")

	return cmd
}

// listenURL turns a listen address into a clickable URL.
func listenURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return fmt.Sprintf("http://%s", addr)
}
