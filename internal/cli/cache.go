package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ogforge/pkg/cache"
	"github.com/matzehuels/ogforge/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the image, payload and build caches",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var buildOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the configured cache tiers and the build cache",
		Long: `Clear the configured cache tiers and the build cache.

Shared tiers (redis) and asset tiers (mongo) are cleared through their
drivers, so running this against a production config empties the caches
every instance uses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return clearCaches(cmd.Context(), cfg, buildOnly)
		},
	}

	cmd.Flags().BoolVar(&buildOnly, "build-only", false, "only clear the on-disk build cache")

	return cmd
}

func clearCaches(ctx context.Context, cfg *config.Config, buildOnly bool) error {
	dir := cfg.BuildDir()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		printInfo("Build cache is empty")
	} else {
		builds, err := cache.NewBuildCache(dir)
		if err != nil {
			return fmt.Errorf("open build cache: %w", err)
		}
		if err := builds.Clear(); err != nil {
			return fmt.Errorf("clear build cache: %w", err)
		}
		printSuccess("Cleared build cache")
		printDetail("Directory: %s", dir)
	}
	if buildOnly {
		return nil
	}

	tiers, err := cache.NewTiers(ctx, cfg.Tiers())
	if err != nil {
		return err
	}
	defer tiers.Close()
	if err := tiers.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache tiers: %w", err)
	}
	printSuccess("Cleared cache tiers")
	printDetail("Shared: %s · Assets: %s", cfg.Cache.Shared.Driver, cfg.Cache.Assets.Driver)
	return nil
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			dir, err := filepath.Abs(cfg.CacheDir)
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}
