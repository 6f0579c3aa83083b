package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/panbanda/depaudit/internal/cache"
	"github.com/urfave/cli/v2"
)

func cacheCmd() *cli.Command {
	flags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
			},
		}
	}

	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the extraction cache",
		Subcommands: []*cli.Command{
			{
				Name:      "stats",
				Usage:     "Show the number and size of cached entries",
				ArgsUsage: "[path]",
				Flags: append(flags(), &cli.BoolFlag{
					Name:  "json",
					Usage: "Print the statistics as JSON",
				}),
				Action: runCacheStats,
			},
			{
				Name:      "clear",
				Usage:     "Remove every cached entry",
				ArgsUsage: "[path]",
				Flags:     flags(),
				Action:    runCacheClear,
			},
		},
	}
}

// openCache opens the cache directory configured for the project, whether or
// not cache.enabled is set, so stale entries can still be inspected.
func openCache(c *cli.Context) (*cache.Cache, error) {
	root, err := getRoot(c)
	if err != nil {
		return nil, err
	}
	result, err := loadConfigResult(c)
	if err != nil {
		return nil, err
	}
	cfg := result.Config
	return cache.New(cache.ResolveDir(root, cfg.Cache.Dir), cfg.Cache.TTL, true)
}

func runCacheStats(c *cli.Context) error {
	ch, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := ch.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(c.App.Writer, "Cache directory: %s\n", stats.Dir)
	fmt.Fprintf(c.App.Writer, "Entries:         %d\n", stats.Entries)
	fmt.Fprintf(c.App.Writer, "Total size:      %d bytes\n", stats.TotalSize)
	return nil
}

func runCacheClear(c *cli.Context) error {
	ch, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := ch.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}
	if err := ch.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	color.New(color.FgGreen).Fprintf(c.App.Writer, "Removed %d cache entries from %s\n", stats.Entries, stats.Dir)
	return nil
}
