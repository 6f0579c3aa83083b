package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/panbanda/depaudit/internal/mcpserver"
	"github.com/urfave/cli/v2"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes the dependency
audit as tools that LLMs can invoke.

To use with an MCP client, add to its config:
  {
    "mcpServers": {
      "depaudit": {
        "command": "depaudit",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - audit_dependencies    Unused, missing and mismatched dependencies of a project
  - analyze_file_imports  Import declarations and unused bindings of one file`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:   "manifest",
				Usage:  "Print the MCP registry server.json",
				Action: runMCPManifestCmd,
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return mcpserver.NewServer(version).Run(ctx)
}

func runMCPManifestCmd(c *cli.Context) error {
	data, err := mcpserver.GenerateManifest(version)
	if err != nil {
		return fmt.Errorf("failed to generate manifest: %w", err)
	}
	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}
