package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/panbanda/depaudit/internal/cache"
	"github.com/panbanda/depaudit/internal/output"
	"github.com/panbanda/depaudit/pkg/audit"
	"github.com/panbanda/depaudit/pkg/config"
	"github.com/panbanda/depaudit/pkg/watch"
	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	flags := append(auditFlags(), &cli.DurationFlag{
		Name:  "debounce",
		Value: watch.DefaultDebounce,
		Usage: "Quiet period before re-running the audit",
	})
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch source files and package.json, re-running the audit on change",
		ArgsUsage: "[path]",
		Flags:     flags,
		Before:    applyColorFlag,
		Action:    runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	root, err := getRoot(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c, root)
	if err != nil {
		return err
	}
	format := output.ParseFormat(cfg.Output.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := newWatchRunner(c, root, cfg, format)
	if err != nil {
		return err
	}

	watcher, err := watch.NewWatcher(root, cfg, c.Duration("debounce"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()
	watcher.SetOutput(c.App.ErrWriter)

	if err := runner.run(ctx, nil); err != nil {
		return err
	}
	watcher.SetCallback(func(changed []string) {
		if err := runner.run(ctx, changed); err != nil && !errors.Is(err, context.Canceled) {
			color.New(color.FgRed).Fprintf(c.App.ErrWriter, "Audit error: %v\n", err)
		}
	})

	err = watcher.Start(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(c.App.ErrWriter, "\nStopping watch...")
		return nil
	}
	return err
}

// watchRunner re-runs the audit for each batch of changes. With cache.enabled
// set, extraction results persist in the on-disk cache so unchanged files are
// not re-tokenized, and entries for deleted files are dropped.
type watchRunner struct {
	c      *cli.Context
	root   string
	cfg    *config.Config
	format output.Format
	cache  *cache.Cache
}

func newWatchRunner(c *cli.Context, root string, cfg *config.Config, format output.Format) (*watchRunner, error) {
	r := &watchRunner{c: c, root: root, cfg: cfg, format: format}
	if cfg.Cache.Enabled {
		ch, err := cache.New(cache.ResolveDir(root, cfg.Cache.Dir), cfg.Cache.TTL, true)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		r.cache = ch
	}
	return r, nil
}

func (r *watchRunner) run(ctx context.Context, changed []string) error {
	if len(changed) > 0 {
		color.New(color.FgCyan).Fprintf(r.c.App.ErrWriter, "\n[%s] changed: %s\n",
			time.Now().Format("15:04:05"), strings.Join(changed, ", "))
	}

	r.dropRemoved(changed)

	opts := []audit.Option{audit.WithConfig(r.cfg)}
	if r.cache != nil {
		opts = append(opts, audit.WithCache(r.cache))
	}
	report, err := audit.Validate(ctx, r.root, opts...)
	if err != nil {
		return err
	}

	formatter := output.NewWriterFormatter(r.format, r.c.App.Writer, r.cfg.Output.Color)
	if err := formatter.Output(output.NewAuditReport(report, output.AuditOptions{Verbose: r.cfg.Output.Verbose})); err != nil {
		return err
	}
	if r.format == output.FormatText {
		if report.HasFindings() {
			formatter.Warning("fingerprint %s", report.Fingerprint)
		} else {
			formatter.Success("fingerprint %s", report.Fingerprint)
		}
	}
	return nil
}

// dropRemoved invalidates cache entries for changed paths that no longer exist.
func (r *watchRunner) dropRemoved(changed []string) {
	if r.cache == nil {
		return
	}
	for _, rel := range changed {
		if _, err := os.Stat(filepath.Join(r.root, filepath.FromSlash(rel))); !os.IsNotExist(err) {
			continue
		}
		if err := r.cache.Invalidate(rel); err != nil {
			color.New(color.FgYellow).Fprintf(r.c.App.ErrWriter, "cache: %v\n", err)
		}
	}
}
