package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/panbanda/depaudit/internal/output"
	"github.com/panbanda/depaudit/internal/progress"
	"github.com/panbanda/depaudit/internal/remote"
	"github.com/panbanda/depaudit/pkg/audit"
	"github.com/panbanda/depaudit/pkg/config"
	"github.com/panbanda/depaudit/pkg/models"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

// errIssuesFound is returned when --fail-on-issues is set and the audit has findings.
var errIssuesFound = errors.New("dependency issues found")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "depaudit",
		Usage:     "Audit JavaScript/TypeScript imports against package.json",
		Version:   version,
		ArgsUsage: "[path | owner/repo[@ref] | git-url]",
		Description: `depaudit scans a project's .js, .jsx, .ts and .tsx files, extracts their
imports and reports unused imported bindings, unresolved relative imports,
declared dependencies that are never imported, imported packages that are
never declared, and packages whose declared versions disagree.

A GitHub owner/repo shorthand or a git URL is cloned and audited in place
of a local path.`,
		Flags:  auditFlags(),
		Before: applyColorFlag,
		Action: runAuditCmd,
		Commands: []*cli.Command{
			auditCmd(),
			configCmd(),
			initCmd(),
			reportCmd(),
			cacheCmd(),
			watchCmd(),
			mcpCmd(),
		},
	}
}

// auditFlags are accepted both globally and by the commands that run an audit.
func auditFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file (TOML, YAML, or JSON)",
			EnvVars: []string{"DEPAUDIT_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, markdown, toon, yaml",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write output to file",
		},
		&cli.BoolFlag{
			Name:  "installed",
			Usage: "Compare declared versions with node_modules instead of across dependency groups",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-dir",
			Usage: "Additional directory name to skip (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "ext",
			Usage: "File extension to scan, replacing the configured list (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable colored output",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "List every scanned file and all warnings",
		},
		&cli.BoolFlag{
			Name:  "fail-on-issues",
			Usage: "Exit with an error when any issue is found",
		},
	}
}

func auditCmd() *cli.Command {
	return &cli.Command{
		Name:      "audit",
		Aliases:   []string{"check"},
		Usage:     "Audit a project's dependencies (default command)",
		ArgsUsage: "[path | owner/repo[@ref] | git-url]",
		Flags:     auditFlags(),
		Before:    applyColorFlag,
		Action:    runAuditCmd,
	}
}

// Flag lookups walk the context lineage so that a flag given before or
// after the subcommand name is honoured either way.

func stringFlag(c *cli.Context, name string) string {
	for _, ctx := range c.Lineage() {
		if ctx.IsSet(name) {
			return ctx.String(name)
		}
	}
	return c.String(name)
}

func boolFlag(c *cli.Context, name string) bool {
	for _, ctx := range c.Lineage() {
		if ctx.IsSet(name) {
			return ctx.Bool(name)
		}
	}
	return c.Bool(name)
}

func sliceFlag(c *cli.Context, name string) []string {
	for _, ctx := range c.Lineage() {
		if ctx.IsSet(name) {
			return ctx.StringSlice(name)
		}
	}
	return nil
}

func applyColorFlag(c *cli.Context) error {
	if boolFlag(c, "no-color") {
		color.NoColor = true
	}
	return nil
}

// getRoot returns the project root from the first positional argument,
// defaulting to the current directory.
func getRoot(c *cli.Context) (string, error) {
	root := "."
	if c.Args().Len() > 1 {
		return "", fmt.Errorf("expected at most one path, got %d", c.Args().Len())
	}
	if c.Args().Len() == 1 {
		root = c.Args().First()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid path %s: %w", root, err)
	}
	return abs, nil
}

// resolveRoot is getRoot for commands that also accept a remote repository
// (owner/repo[@ref] or a git URL). A remote is cloned into a temp directory
// that the returned cleanup removes.
func resolveRoot(ctx context.Context, c *cli.Context) (string, func(), error) {
	noop := func() {}
	if c.Args().Len() == 1 {
		src, err := remote.Parse(c.Args().First())
		if err != nil {
			return "", noop, err
		}
		if src != nil {
			var progressOut io.Writer
			var spinner *progress.Tracker
			if boolFlag(c, "verbose") {
				fmt.Fprintf(c.App.ErrWriter, "Cloning %s...\n", src.URL)
				progressOut = c.App.ErrWriter
			} else {
				spinner = progress.NewSpinnerTo(c.App.ErrWriter, "Cloning "+src.URL)
				progressOut = spinnerWriter{spinner}
			}
			err := src.Clone(ctx, progressOut, true)
			if spinner != nil {
				if err != nil {
					spinner.FinishError(err)
				} else {
					spinner.FinishSuccess()
				}
			}
			if err != nil {
				_ = src.Cleanup()
				return "", noop, err
			}
			return src.CloneDir, func() { _ = src.Cleanup() }, nil
		}
	}
	root, err := getRoot(c)
	return root, noop, err
}

// spinnerWriter advances a spinner for each chunk of transport progress.
type spinnerWriter struct{ t *progress.Tracker }

func (w spinnerWriter) Write(p []byte) (int, error) {
	w.t.Tick()
	return len(p), nil
}

// loadConfig loads --config, or searches root, then applies flag overrides.
func loadConfig(c *cli.Context, root string) (*config.Config, error) {
	opts := []config.LoadOption{config.WithSearchDir(root)}
	if path := stringFlag(c, "config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}
	cfg := result.Config

	if dirs := sliceFlag(c, "exclude-dir"); len(dirs) > 0 {
		cfg.Exclude.Dirs = append(cfg.Exclude.Dirs, dirs...)
	}
	if exts := sliceFlag(c, "ext"); len(exts) > 0 {
		cfg.Scan.Extensions = normalizeExtensions(exts)
	}
	if boolFlag(c, "installed") {
		cfg.Audit.InstalledVersions = true
	}
	if boolFlag(c, "verbose") {
		cfg.Output.Verbose = true
	}
	if boolFlag(c, "fail-on-issues") {
		cfg.Audit.FailOnIssues = true
	}
	if format := stringFlag(c, "format"); format != "" {
		cfg.Output.Format = format
	}
	if boolFlag(c, "no-color") {
		cfg.Output.Color = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// normalizeExtensions accepts "ts" as well as ".ts".
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		if e == "" {
			continue
		}
		if e[0] != '.' {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func runAuditCmd(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, cleanup, err := resolveRoot(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := loadConfig(c, root)
	if err != nil {
		return err
	}

	format := output.ParseFormat(cfg.Output.Format)
	outPath := stringFlag(c, "output")

	opts := []audit.Option{audit.WithConfig(cfg)}
	var tracker *progress.Tracker
	if format == output.FormatText && outPath == "" {
		opts = append(opts, audit.WithProgress(func(current, total int) {
			if current == 0 {
				tracker = progress.NewTrackerTo(c.App.ErrWriter, "Auditing imports...", total)
				return
			}
			tracker.Tick()
		}))
	}

	report, err := audit.Validate(ctx, root, opts...)
	if tracker != nil {
		if err != nil {
			tracker.FinishError(err)
		} else {
			tracker.FinishSuccess()
		}
	}
	if err != nil {
		return err
	}

	if err := writeReport(c, report, cfg, format, outPath); err != nil {
		return err
	}

	if cfg.Audit.FailOnIssues && report.HasFindings() {
		return errIssuesFound
	}
	return nil
}

func newFormatter(c *cli.Context, format output.Format, outPath string, colored bool) (*output.Formatter, error) {
	if outPath == "" {
		return output.NewWriterFormatter(format, c.App.Writer, colored), nil
	}
	return output.NewFormatter(format, outPath, colored)
}

func writeReport(c *cli.Context, report *models.ProjectReport, cfg *config.Config, format output.Format, outPath string) error {
	formatter, err := newFormatter(c, format, outPath, cfg.Output.Color)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if err := formatter.Output(output.NewAuditReport(report, output.AuditOptions{Verbose: cfg.Output.Verbose})); err != nil {
		return err
	}

	if format == output.FormatText && !cfg.Output.Verbose && len(report.Warnings) > 0 {
		formatter.Warning("%d warning(s); rerun with --verbose to list them", len(report.Warnings))
	}
	if outPath != "" {
		color.New(color.FgGreen).Fprintf(c.App.ErrWriter, "Report written to %s\n", outPath)
	}
	return nil
}
