package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/panbanda/depaudit/internal/report"
	"github.com/panbanda/depaudit/pkg/audit"
	"github.com/urfave/cli/v2"
)

const defaultReportFile = "depaudit-report.html"

func reportOutputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "HTML file to write (- for stdout)",
		Value:   defaultReportFile,
	}
}

func reportCmd() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Generate an HTML dependency report",
		Subcommands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "Audit a project and write the HTML report",
				ArgsUsage: "[path | owner/repo[@ref] | git-url]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to config file (TOML, YAML, or JSON)",
						EnvVars: []string{"DEPAUDIT_CONFIG"},
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
					reportOutputFlag(),
				},
				Action: runReportGenerate,
			},
			{
				Name:      "render",
				Usage:     "Render a report saved with --format json as HTML",
				ArgsUsage: "<report.json>",
				Flags:     []cli.Flag{reportOutputFlag()},
				Action:    runReportRender,
			},
		},
	}
}

func runReportGenerate(c *cli.Context) error {
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

	result, err := audit.Validate(ctx, root, audit.WithConfig(cfg))
	if err != nil {
		return err
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		return fmt.Errorf("load report template: %w", err)
	}
	meta := report.Metadata{
		Root:            c.Args().First(),
		GeneratedAt:     time.Now(),
		DepauditVersion: version,
	}
	if meta.Root == "" {
		meta.Root = root
	}

	outPath := stringFlag(c, "output")
	if outPath == "-" {
		return renderer.Render(result, meta, c.App.Writer)
	}
	if err := renderer.RenderToFile(result, meta, outPath); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(c.App.ErrWriter, "Report written to %s\n", outPath)
	return nil
}

func runReportRender(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected one JSON report path, got %d", c.Args().Len())
	}
	renderer, err := report.NewRenderer()
	if err != nil {
		return fmt.Errorf("load report template: %w", err)
	}
	meta := report.Metadata{DepauditVersion: version}

	outPath := stringFlag(c, "output")
	if outPath == "-" {
		return renderer.RenderFile(c.Args().First(), meta, c.App.Writer)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := renderer.RenderFile(c.Args().First(), meta, f); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(c.App.ErrWriter, "Report written to %s\n", outPath)
	return nil
}
