// Package cli implements the ogforge command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/ogforge/pkg/buildinfo"
	"github.com/matzehuels/ogforge/pkg/config"
	"github.com/matzehuels/ogforge/pkg/pipeline"
	"github.com/matzehuels/ogforge/pkg/render"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = "ogforge"
)

// configFiles are looked up in the working directory when --config is not set.
var configFiles = []string{"ogforge.toml", "ogforge.yaml", "ogforge.yml"}

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	getenv     func(string) string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		getenv: os.Getenv,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "ogforge renders Open Graph images for web pages",
		Long:         `ogforge renders social-preview images from component markup. It serves them on demand over HTTP, renders single images to disk, and pre-renders whole sites ahead of deployment.`,
		Version:      buildinfo.Get().Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			registerHooks(c.Logger)
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (.toml or .yaml; defaults to ./ogforge.toml when present)")

	// Register all subcommands
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.prerenderCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// versionCommand prints the build information and the renderers this
// build ships.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := buildinfo.Get()
			fmt.Fprintln(cmd.OutOrStdout(), appName+" "+info.Version)
			printKeyValue("commit", info.ShortCommit())
			printKeyValue("built", info.Date)
			printKeyValue("go", info.GoVersion)
			printKeyValue("renderers", strings.Join(config.Renderers, ", "))
			printKeyValue("cache", info.CacheVersion())
		},
	}
}

// =============================================================================
// Config & Runner Factory
// =============================================================================

// loadConfig reads the configuration named by --config, or the first
// default config file present in the working directory.
func (c *CLI) loadConfig() (*config.Config, error) {
	path := c.configPath
	if path == "" {
		for _, name := range configFiles {
			if _, err := os.Stat(name); err == nil {
				path = name
				break
			}
		}
	}
	cfg, err := config.LoadWithEnv(path, c.getenv)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if path != "" {
		c.Logger.Debug("loaded config", "path", path, "mode", cfg.Mode, "target", cfg.Target)
	}
	return cfg, nil
}

// newRunner creates a pipeline runner for cfg, forcing mode when set.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config, mode render.Mode) (*pipeline.Runner, error) {
	if mode != "" && cfg.Mode != mode {
		cfg.Mode = mode
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return pipeline.NewRunner(ctx, cfg, loggerFromContext(ctx))
}

// closeRunner logs a failed close instead of masking the command's error.
func closeRunner(ctx context.Context, r *pipeline.Runner) {
	if err := r.Close(); err != nil && !errors.Is(err, context.Canceled) {
		loggerFromContext(ctx).Warn("close runner", "error", err)
	}
}
