package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/autofuse/pkg/cache"
	"github.com/matzehuels/autofuse/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the fusion result cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached fusion results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := c.newCache(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cc.Close()

			switch cc := cc.(type) {
			case *cache.FileCache:
				if err := cc.Clear(); err != nil {
					return fmt.Errorf("clear %s: %w", cc.Dir(), err)
				}
				printSuccess(c.out, "Cleared cache")
				printDetail(c.out, "Directory: %s", cc.Dir())
			case *cache.RedisCache:
				if err := cc.Clear(cmd.Context()); err != nil {
					return fmt.Errorf("clear redis cache: %w", err)
				}
				printSuccess(c.out, "Cleared redis cache")
			default:
				printInfo(c.out, "Caching is disabled")
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache location",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch c.Config.Cache.Backend {
			case config.CacheRedis:
				fmt.Fprintln(c.out, c.Config.Cache.RedisURL)
				return nil
			case config.CacheNone:
				printInfo(c.out, "Caching is disabled")
				return nil
			}
			dir, err := c.cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(c.out, dir)
			return nil
		},
	}
}
