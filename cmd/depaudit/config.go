package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/panbanda/depaudit/pkg/config"
	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"
)

func configCmd() *cli.Command {
	configFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file",
		}
	}

	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Validate a configuration file",
				ArgsUsage: "[path]",
				Description: `Validates a depaudit configuration file for syntax errors and invalid values.

Examples:
  depaudit config validate                   # Validates default config locations
  depaudit config validate -c depaudit.toml  # Validates specific file`,
				Flags:  []cli.Flag{configFlag()},
				Action: runConfigValidate,
			},
			{
				Name:      "show",
				Usage:     "Show the effective configuration",
				ArgsUsage: "[path]",
				Description: `Shows the merged configuration from defaults and config file.

Examples:
  depaudit config show                  # Show effective config
  depaudit config show -c depaudit.toml # Show config from specific file`,
				Flags:  []cli.Flag{configFlag()},
				Action: runConfigShow,
			},
		},
	}
}

func loadConfigResult(c *cli.Context) (*config.LoadResult, error) {
	root, err := getRoot(c)
	if err != nil {
		return nil, err
	}
	opts := []config.LoadOption{config.WithSearchDir(root)}
	if path := stringFlag(c, "config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	return config.LoadConfig(opts...)
}

func runConfigValidate(c *cli.Context) error {
	result, err := loadConfigResult(c)
	if err != nil {
		color.New(color.FgRed).Fprintln(c.App.ErrWriter, "Configuration validation failed:")
		fmt.Fprintf(c.App.ErrWriter, "  - %s\n", err)
		return err
	}

	if result.Source != "" {
		color.New(color.FgGreen).Fprintf(c.App.Writer, "Configuration valid: %s\n", result.Source)
	} else {
		color.New(color.FgYellow).Fprintln(c.App.Writer, "No config file found. Default configuration is valid.")
	}
	return nil
}

func runConfigShow(c *cli.Context) error {
	result, err := loadConfigResult(c)
	if err != nil {
		return err
	}

	if result.Source != "" {
		fmt.Fprintf(c.App.Writer, "# Configuration from: %s\n\n", result.Source)
	} else {
		fmt.Fprintln(c.App.Writer, "# Default configuration (no config file found)")
	}

	content, err := toml.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(c.App.Writer, string(content))
	return nil
}
